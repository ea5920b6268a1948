package determinism

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreloop/internal/domain"
	"scoreloop/internal/storage"
)

func ledger(t *testing.T, rows ...map[string]any) []storage.Record {
	t.Helper()
	out := make([]storage.Record, len(rows))
	for i, r := range rows {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		out[i] = storage.Record{Stream: "ai_decisions.jsonl", LineNo: i + 1, Raw: b}
	}
	return out
}

func decision(trade string, tsMs int64, snapshot string, allow bool) map[string]any {
	code := domain.CodeAllow
	size := 1.0
	if !allow {
		code = domain.CodeBlock
		size = 0
	}
	return map[string]any{
		"schema_version":  domain.DecisionSchemaEnforced,
		"event_type":      domain.EventTypeDecision,
		"ts_ms":           tsMs,
		"trade_id":        trade,
		"account_label":   "main",
		"symbol":          "BTCUSDT",
		"timeframe":       "5m",
		"policy_hash":     "abcd",
		"decision_code":   code,
		"allow":           allow,
		"size_multiplier": size,
		"snapshot_id":     snapshot,
	}
}

func TestVerify_BenignSnapshotVariant(t *testing.T) {
	recs := ledger(t,
		decision("T1", 1000, "sb_a", true),
		decision("T2", 1500, "sb_a", false),
		decision("T1", 2000, "sb_b", true),
	)

	rep := NewGuard().Verify(recs)

	assert.True(t, rep.Pass())
	assert.Equal(t, 3, rep.RowsIn)
	assert.Equal(t, 2, rep.UniqueKeys)
	assert.Equal(t, 1, rep.DupeKeys)
	assert.Equal(t, 1, rep.BenignSnapshotVariantKeys)
	assert.Zero(t, rep.TrueConflictKeys)
	assert.Equal(t, 2, rep.MaxDupeCount)
	require.Len(t, rep.BenignVariantsSample, 1)
	assert.Equal(t, Key{AccountLabel: "main", TradeID: "T1"}, rep.BenignVariantsSample[0].Key)

	require.Len(t, rep.Deduped, 2)
	assert.Equal(t, 2, rep.Deduped[0].LineNo)
	assert.Equal(t, 3, rep.Deduped[1].LineNo, "later T1 row kept")
	assert.Equal(t, "sb_b", rep.Deduped[1].Str("snapshot_id"))
}

func TestVerify_TrueConflict(t *testing.T) {
	recs := ledger(t,
		decision("T1", 1000, "sb_a", true),
		decision("T2", 1500, "sb_a", false),
		decision("T1", 2000, "sb_b", false),
	)

	rep := NewGuard().Verify(recs)

	assert.False(t, rep.Pass())
	assert.Equal(t, 1, rep.TrueConflictKeys)
	assert.Zero(t, rep.BenignSnapshotVariantKeys)
	require.Len(t, rep.TrueConflictsSample, 1)
	s := rep.TrueConflictsSample[0]
	assert.Equal(t, "T1", s.Key.TradeID)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 2, s.PolicySigs)
	require.Len(t, s.Examples, 2)
	assert.Equal(t, true, s.Examples[0].Allow)
	assert.Equal(t, false, s.Examples[1].Allow)

	require.Len(t, rep.Deduped, 1, "conflicting key excluded")
	assert.Equal(t, "T2", rep.Deduped[0].Str("trade_id"))
}

func TestVerify_PureDuplicate(t *testing.T) {
	d := decision("T1", 1000, "sb_a", true)
	rep := NewGuard().Verify(ledger(t, d, d, d))

	assert.True(t, rep.Pass())
	assert.Equal(t, 1, rep.PureDupeKeys)
	assert.Equal(t, 3, rep.MaxDupeCount)
	require.Len(t, rep.Deduped, 1)
	assert.Equal(t, 3, rep.Deduped[0].LineNo)
}

func TestVerify_MissingKeyRows(t *testing.T) {
	noAccount := decision("T1", 1000, "sb_a", true)
	delete(noAccount, "account_label")
	noTrade := decision("", 1000, "sb_a", true)

	rep := NewGuard().Verify(ledger(t, noAccount, noTrade, decision("T9", 1, "sb_a", true)))

	assert.Equal(t, 2, rep.MissingKeyRows)
	assert.Equal(t, 1, rep.UniqueKeys)
	assert.Len(t, rep.Deduped, 1)
}

func TestVerify_EmptyLedger(t *testing.T) {
	rep := NewGuard().Verify(nil)

	assert.True(t, rep.Pass())
	assert.Equal(t, 1, rep.MaxDupeCount)
	assert.Empty(t, rep.Deduped)
	assert.NotNil(t, rep.TrueConflictsSample)
}

func TestVerify_SampleCap(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < MaxSamples+5; i++ {
		id := string(rune('A' + i))
		rows = append(rows, decision(id, 1, "sb_a", true), decision(id, 2, "sb_a", false))
	}

	rep := NewGuard().Verify(ledger(t, rows...))

	assert.Equal(t, MaxSamples+5, rep.TrueConflictKeys)
	assert.Len(t, rep.TrueConflictsSample, MaxSamples)
}

func TestPolicySignature_IgnoresSnapshotFields(t *testing.T) {
	a, _ := json.Marshal(decision("T1", 1000, "sb_a", true))
	b, _ := json.Marshal(decision("T1", 9000, "sb_z", true))
	c, _ := json.Marshal(decision("T1", 1000, "sb_a", false))

	sa, err := PolicySignature(a)
	require.NoError(t, err)
	sb, err := PolicySignature(b)
	require.NoError(t, err)
	sc, err := PolicySignature(c)
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
	assert.NotEqual(t, sa, sc)

	na, _ := SnapshotSignature(a)
	nb, _ := SnapshotSignature(b)
	assert.NotEqual(t, na, nb)
}

func TestPolicySignature_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"trade_id":"T1","account_label":"main","allow":true,"size_multiplier":1.0}`)
	b := []byte(`{"size_multiplier":1,"allow":true,"account_label":"main","trade_id":"T1","extra":"x"}`)

	sa, err := PolicySignature(a)
	require.NoError(t, err)
	sb, err := PolicySignature(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestSign_MatchesRawSignature(t *testing.T) {
	rec := domain.DecisionRecord{
		SchemaVersion:  domain.DecisionSchemaProposed,
		EventType:      domain.EventTypeDecision,
		TradeID:        "T1",
		AccountLabel:   "main",
		DecisionCode:   domain.CodeAllow,
		Action:         domain.ActionAllow,
		Allow:          true,
		SizeMultiplier: 1.25,
	}
	require.NoError(t, Sign(&rec))
	require.Len(t, rec.PolicySignature, 64)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	sig, err := PolicySignature(raw)
	require.NoError(t, err)
	assert.Equal(t, rec.PolicySignature, sig)
}
