package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"scoreloop/internal/determinism"
	"scoreloop/internal/domain"
)

// VerifyOptions controls the determinism check.
type VerifyOptions struct {
	// ReportPath, when set, receives the JSON report.
	ReportPath string
}

// RunVerifyDecisions checks the decision ledger for true conflicts and
// writes a deduplicated copy. Fails when any key has a true conflict.
func (r *Runner) RunVerifyDecisions(ctx context.Context, opts VerifyOptions) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolVerifyDecisions)
	defer r.finish(s, started)

	streams := r.cfg.Streams
	recs, err := r.read(s, "decisions", streams.Decisions)
	if err != nil {
		return s, err
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}

	rep := determinism.NewGuard().Verify(recs)
	s.Add("rows_in", rep.RowsIn)
	s.Add("missing_key_rows", rep.MissingKeyRows)
	s.Add("unsignable_rows", rep.UnsignableRows)
	s.Add("unique_keys", rep.UniqueKeys)
	s.Add("dupe_keys", rep.DupeKeys)
	s.Add("pure_dupe_keys", rep.PureDupeKeys)
	s.Add("benign_snapshot_variant_keys", rep.BenignSnapshotVariantKeys)
	s.Add("true_conflict_keys", rep.TrueConflictKeys)
	s.Add("max_dupe_count", rep.MaxDupeCount)
	r.metrics.RecordTrueConflicts(rep.TrueConflictKeys)

	lines := make([][]byte, 0, len(rep.Deduped))
	for _, rec := range rep.Deduped {
		lines = append(lines, rec.Raw)
	}
	s.Add("deduped_rows", len(lines))
	if !r.write(s, streams.DecisionsDeduped, lines) {
		return s, s.err()
	}

	if opts.ReportPath != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return s, err
		}
		if err := r.store.WriteFileAtomic(opts.ReportPath, append(data, '\n')); err != nil {
			s.Fail(domain.KindIOFailure, "write report: %v", err)
			return s, err
		}
		s.Wrote = append(s.Wrote, opts.ReportPath)
	}

	if !rep.Pass() {
		s.Fail(domain.KindPolicySignatureConflict, "true_conflict_keys > 0")
	}
	return s, nil
}
