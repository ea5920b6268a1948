package pipeline

import (
	"context"
	"time"

	"scoreloop/internal/canonical"
	"scoreloop/internal/domain"
)

// RunCanonicalize filters the raw outcome stream down to canonical rows and
// quarantines the rest. Fails when no row is kept.
func (r *Runner) RunCanonicalize(ctx context.Context) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolCanonicalize)
	defer r.finish(s, started)

	streams := r.cfg.Streams
	recs, err := r.read(s, "raw_outcome", streams.RawOutcome)
	if err != nil {
		return s, err
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}

	res := canonical.Canonicalize(recs)
	s.Add("rows_in", res.Counts.Read)
	s.Add("rows_kept_v1", res.Counts.Kept)
	s.Add("rows_rejected", res.Counts.RejectedTotal())
	s.AddMap("rejected_", res.Counts.Rejected)
	r.metrics.RecordFilter(ToolCanonicalize, res.Counts.Kept, res.Counts.Rejected)

	rejects, err := res.RejectLines()
	if err != nil {
		s.Fail(domain.KindMalformedRecord, "encode rejects: %v", err)
		return s, err
	}
	if !r.write(s, streams.Canonical, res.AcceptedLines()) || !r.write(s, streams.Rejects, rejects) {
		return s, s.err()
	}

	if res.Counts.Kept == 0 {
		s.Fail(domain.KindSchemaMismatch, "rows_kept_v1 == 0")
	}
	return s, nil
}
