package pipeline

import (
	"context"
	"time"

	"scoreloop/internal/gate"
)

// DecideOptions is one proposal to evaluate.
type DecideOptions struct {
	Proposal gate.Proposal
	// Enforce records the decision as acted on instead of proposed.
	Enforce bool
}

// RunDecide evaluates one proposal with the canonical policy and appends
// the signed decision to the ledger.
func (r *Runner) RunDecide(ctx context.Context, opts DecideOptions) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolDecide)
	defer r.finish(s, started)

	name, err := r.cfg.RequirePolicy()
	if err != nil {
		return s, err
	}
	policy, err := gate.Select(name, r.cfg.Scoreboard.MinConfidence)
	if err != nil {
		return s, err
	}
	v := r.versioner()
	r.checkCommits(ctx, s, v)
	engine := gate.NewEngine(policy, v,
		gate.WithRecorder(r.store, r.cfg.Streams.Decisions),
		gate.WithBaseSize(r.cfg.Gate.BaseSize),
		gate.WithEngineClock(r.clock),
		gate.WithEngineLogger(r.log.With().Str("component", "gate").Logger()),
	)

	rec, err := engine.Decide(ctx, opts.Proposal)
	if err != nil {
		return s, err
	}
	if opts.Enforce {
		if rec, err = engine.Enforce(rec); err != nil {
			return s, err
		}
	}
	if res := engine.Record(rec); !res.OK {
		s.Fail(res.Kind, "append decision: %v", res.Err)
		return s, res.Err
	}
	r.metrics.RecordDecision(rec.Policy, string(rec.Action))

	s.Add("schema_version", rec.SchemaVersion)
	s.Add("trade_id", rec.TradeID)
	s.Add("bucket", opts.Proposal.Key.String())
	s.Add("policy", rec.Policy)
	s.Add("decision_code", rec.DecisionCode)
	s.Add("action", rec.Action)
	s.Add("size_multiplier", rec.SizeMultiplier)
	s.Add("snapshot_id", rec.SnapshotID)
	s.Add("policy_signature", rec.PolicySignature)
	s.Wrote = append(s.Wrote, r.store.Path(r.cfg.Streams.Decisions))
	return s, nil
}
