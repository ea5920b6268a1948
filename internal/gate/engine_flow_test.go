package gate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreloop/internal/domain"
	"scoreloop/internal/gate"
	"scoreloop/internal/logging"
	"scoreloop/internal/scoreboard"
)

type builtSource struct {
	snap *domain.ScoreboardSnapshot
}

func (s builtSource) Current(context.Context) (*domain.ScoreboardSnapshot, *domain.SnapshotPointer, error) {
	return s.snap, &domain.SnapshotPointer{Current: "sb_20250601T120000Z_abcdef012345", Hash: "sha256:abc"}, nil
}

// breakoutRows returns wins of +3 followed by losses of -1.
func breakoutRows(wins, losses int) []domain.EnrichedOutcome {
	var out []domain.EnrichedOutcome
	add := func(pnl float64) {
		out = append(out, domain.EnrichedOutcome{
			SchemaVersion: domain.OutcomeSchemaV1,
			EventType:     domain.EventTypeOutcomeEnriched,
			TradeID:       fmt.Sprintf("T%03d", len(out)+1),
			Symbol:        "BTCUSDT",
			Timeframe:     "5m",
			SetupType:     "breakout",
			PnlUSD:        pnl,
		})
	}
	for i := 0; i < wins; i++ {
		add(3)
	}
	for i := 0; i < losses; i++ {
		add(-1)
	}
	return out
}

func decideOn(t *testing.T, rows []domain.EnrichedOutcome) domain.DecisionRecord {
	t.Helper()
	policy := gate.NewThresholdPolicy()
	b := &scoreboard.Builder{MinSampleSize: 30, Recommender: policy, BaseSize: 1}
	res, err := b.Build(context.Background(), rows)
	require.NoError(t, err)

	src := builtSource{snap: &domain.ScoreboardSnapshot{
		SchemaVersion: domain.ScoreboardSchemaV1,
		MinN:          b.MinSampleSize,
		Buckets:       res.Buckets,
	}}
	e := gate.NewEngine(policy, src, gate.WithEngineLogger(logging.Nop()))
	rec, err := e.Decide(context.Background(), gate.Proposal{
		TradeID:      "N1",
		AccountLabel: "main",
		Key:          domain.BucketKey{SetupType: "breakout", Symbol: "BTCUSDT", Timeframe: "5m"},
	})
	require.NoError(t, err)
	return rec
}

func TestEngine_HoldAtThirtySamples(t *testing.T) {
	// 29 positive-expectancy outcomes are still below the minimum.
	rec := decideOn(t, breakoutRows(14, 15))
	assert.Equal(t, domain.CodeInsufficientData, rec.DecisionCode)
	assert.Equal(t, domain.ActionBlock, rec.Action)
	assert.False(t, rec.Allow)
	assert.Zero(t, rec.SizeMultiplier)

	// The 30th crosses it at a 46.7% win rate, short of the hold sample.
	rec = decideOn(t, breakoutRows(14, 16))
	assert.Equal(t, domain.CodeHoldMoreData, rec.DecisionCode)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.False(t, rec.Allow)
	assert.Zero(t, rec.SizeMultiplier)
}
