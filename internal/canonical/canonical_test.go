package canonical

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"scoreloop/internal/domain"
	"scoreloop/internal/logging"
	"scoreloop/internal/storage"
	"scoreloop/internal/storage/jsonl"
)

func outcomeV1(tradeID string) map[string]any {
	return map[string]any{
		"schema_version": "outcome.v1",
		"trade_id":       tradeID,
		"account_label":  "main",
		"symbol":         "BTCUSDT",
		"side":           "Buy",
		"entry_ts_ms":    1700000000000,
		"entry_px":       100.0,
		"entry_qty":      1.0,
		"exit_side":      "Sell",
		"exit_ts_ms":     1700000600000,
		"exit_px":        101.0,
		"exit_qty":       1.0,
		"closed_ts_ms":   1700000600000,
		"pnl_usd":        1.0,
		"fees_usd":       0.1,
	}
}

func rec(t *testing.T, line int, v map[string]any) storage.Record {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return storage.Record{Stream: "trade_outcomes.jsonl", LineNo: line, Raw: raw}
}

func TestCanonicalize_Accepts(t *testing.T) {
	r := rec(t, 1, outcomeV1("T1"))

	res := Canonicalize([]storage.Record{r})

	require.Len(t, res.Accepted, 1)
	require.Equal(t, r.Raw, res.Accepted[0].Raw, "accepted rows are verbatim")
	require.Equal(t, 1, res.Counts.Kept)
	require.Zero(t, res.Counts.RejectedTotal())
}

func TestCanonicalize_SubUIDSatisfiesAccount(t *testing.T) {
	row := outcomeV1("T1")
	delete(row, "account_label")
	row["sub_uid"] = "12345"

	res := Canonicalize([]storage.Record{rec(t, 1, row)})
	require.Len(t, res.Accepted, 1)
}

func TestCanonicalize_LegacySchema(t *testing.T) {
	tests := []struct {
		name   string
		schema any
	}{
		{"older tag", "outcome.v0"},
		{"missing tag", nil},
		{"numeric tag", 1},
		{"case variant", "OUTCOME.V1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := outcomeV1("T1")
			if tt.schema == nil {
				delete(row, "schema_version")
			} else {
				row["schema_version"] = tt.schema
			}

			res := Canonicalize([]storage.Record{rec(t, 7, row)})

			require.Empty(t, res.Accepted)
			require.Len(t, res.Rejects, 1)
			rj := res.Rejects[0]
			require.Equal(t, ReasonLegacySchema, rj.Reason)
			require.Equal(t, domain.KindSchemaMismatch, rj.Kind)
			require.Equal(t, 7, rj.Source.LineNo)
			require.Equal(t, 1, res.Counts.Rejected[ReasonLegacySchema])
		})
	}
}

func TestCanonicalize_MissingRequiredNamesFields(t *testing.T) {
	row := outcomeV1("T1")
	delete(row, "exit_px")
	row["fees_usd"] = nil
	row["symbol"] = ""
	row["pnl_usd"] = 0.0 // zero is a value, not missing

	res := Canonicalize([]storage.Record{rec(t, 3, row)})

	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejects, 1)
	require.Equal(t, ReasonMissingRequired, res.Rejects[0].Reason)
	require.Equal(t, domain.KindMissingRequiredField, res.Rejects[0].Kind)
	require.Equal(t, []string{"symbol", "exit_px", "fees_usd"}, res.Rejects[0].Missing)
}

func TestCanonicalize_NonCanonicalNeverAccepted(t *testing.T) {
	var records []storage.Record
	for i := 0; i < 60; i++ {
		row := outcomeV1(fmt.Sprintf("T%d", i))
		switch i % 4 {
		case 0:
			row["schema_version"] = fmt.Sprintf("outcome.v%d", i%3+2)
		case 1:
			delete(row, "schema_version")
		case 2:
			row["schema_version"] = ""
		}
		records = append(records, rec(t, i+1, row))
	}

	res := Canonicalize(records)

	for _, a := range res.Accepted {
		var row map[string]any
		require.NoError(t, json.Unmarshal(a.Raw, &row))
		require.Equal(t, "outcome.v1", row["schema_version"])
	}
	require.Equal(t, 15, res.Counts.Kept)
	require.Equal(t, 60, res.Counts.Read)
	require.Equal(t, 45, res.Counts.RejectedTotal())
}

func TestCanonicalize_IdempotentOutput(t *testing.T) {
	store := jsonl.NewStore(t.TempDir(), jsonl.WithLogger(logging.Nop()))
	for i := 0; i < 10; i++ {
		row := outcomeV1(fmt.Sprintf("T%d", i))
		if i%3 == 0 {
			delete(row, "side")
		}
		require.True(t, store.Append("raw.jsonl", row).OK)
	}
	store.AppendRaw("raw.jsonl", []byte(`{"schema_version":"legacy"}`))

	run := func() (string, string) {
		records, _, err := store.ReadAll("raw.jsonl")
		require.NoError(t, err)
		res := Canonicalize(records)
		require.True(t, store.WriteStream("out.jsonl", res.AcceptedLines()).OK)
		lines, err := res.RejectLines()
		require.NoError(t, err)
		require.True(t, store.WriteStream("rej.jsonl", lines).OK)

		a, err := store.Hash("out.jsonl")
		require.NoError(t, err)
		r, err := store.Hash("rej.jsonl")
		require.NoError(t, err)
		return a, r
	}

	a1, r1 := run()
	a2, r2 := run()
	require.Equal(t, a1, a2)
	require.Equal(t, r1, r2)
}

func TestSummary(t *testing.T) {
	row := outcomeV1("T2")
	row["schema_version"] = "x"
	res := Canonicalize([]storage.Record{rec(t, 1, outcomeV1("T1")), rec(t, 2, row)})

	s := res.Summary()
	require.Equal(t, 2, s["rows_in"])
	require.Equal(t, 1, s["rows_kept_v1"])
	require.Equal(t, 1, s["rows_rejected"])
	require.Equal(t, 1, s["rejected_legacy_schema"])
}
