package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scoreloop/internal/domain"
	"scoreloop/internal/join"
)

// RunJoin rebuilds the trainable set from canonical outcomes and setup
// contexts. Orphans and rejects go to their own streams. Fails when the
// trainable set is empty.
func (r *Runner) RunJoin(ctx context.Context) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolJoin)
	defer r.finish(s, started)

	streams := r.cfg.Streams
	setups, err := r.read(s, "setup_context", streams.SetupContext)
	if err != nil {
		return s, err
	}
	outcomes, err := r.read(s, "canonical", streams.Canonical)
	if err != nil {
		return s, err
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}

	ix := join.BuildIndex(setups)
	opts := join.Options{
		BadTradePrefixes:      r.cfg.Join.BadTradePrefixes,
		PlaceholderSetupTypes: r.cfg.Join.PlaceholderSetupTypes,
	}
	if c := r.cfg.Join.Cutover; c != nil {
		t := c.Time
		opts.Cutover = &t
	}
	res := join.NewJoiner(opts).Join(outcomes, ix)

	s.Add("cutover", res.Cutover.String())
	s.Add("setup_context_rows", ix.Rows)
	s.Add("setup_context_dupes_skipped", ix.Dupes)
	s.Add("setup_context_invalid", ix.Invalid)
	s.Add("setup_map_size", ix.Len())
	s.Add("outcomes_total", res.Counts.OutcomesTotal)
	s.Add("joined", res.Counts.Joined)
	s.Add("orphans", res.Counts.Orphans)
	s.Add("repaired_fields", res.Counts.RepairedFields)
	s.Add("trainable_final", res.Counts.TrainableFinal)
	s.AddMap("rejected_", res.Counts.Rejected)
	r.metrics.RecordFilter(ToolJoin, res.Counts.TrainableFinal, res.Counts.Rejected)
	r.metrics.RecordOrphans(res.Counts.Orphans)

	trainable, err := res.TrainableLines()
	if err != nil {
		s.Fail(domain.KindMalformedRecord, "encode trainable: %v", err)
		return s, err
	}
	rejects, err := res.RejectLines()
	if err != nil {
		s.Fail(domain.KindMalformedRecord, "encode rejects: %v", err)
		return s, err
	}
	setupRejects, err := ix.RejectLines()
	if err != nil {
		s.Fail(domain.KindMalformedRecord, "encode setup rejects: %v", err)
		return s, err
	}
	if !r.write(s, streams.Trainable, trainable) ||
		!r.write(s, streams.Orphans, res.OrphanLines()) ||
		!r.write(s, streams.JoinRejects, rejects) ||
		!r.write(s, streams.SetupRejects, setupRejects) {
		return s, s.err()
	}

	if r.trainMirror != nil && len(res.Trainable) > 0 {
		r.mirrorTrainable(ctx, s, res.Trainable)
	}

	if res.Counts.TrainableFinal == 0 {
		s.Fail(domain.KindOrphanOutcome, "trainable_final == 0")
	}
	return s, nil
}

// mirrorTrainable copies the trainable set. Failure is counted, never fatal.
func (r *Runner) mirrorTrainable(ctx context.Context, s *Summary, rows []domain.EnrichedOutcome) {
	runID := uuid.NewString()
	start := time.Now()
	err := r.trainMirror.InsertBulk(ctx, runID, rows)
	r.metrics.RecordDBQuery("clickhouse", "insert_trainable", time.Since(start), err)
	if err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("trainable mirror insert failed")
		s.Add("mirror_errors", 1)
		return
	}
	s.Add("mirror_run_id", runID)
	s.Add("mirror_rows", len(rows))
}
