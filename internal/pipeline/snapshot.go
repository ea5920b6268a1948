package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"scoreloop/internal/determinism"
	"scoreloop/internal/domain"
	"scoreloop/internal/gate"
	"scoreloop/internal/scoreboard"
	"scoreloop/internal/snapshot"
)

// SnapshotOptions overrides configured aggregation settings for one run.
// Zero values keep the configuration.
type SnapshotOptions struct {
	MinN    int
	MinConf float64
	Trigger string
}

// RunSnapshot aggregates the trainable set into a new scoreboard version.
// It refuses to commit while the decision ledger has true conflicts, and
// reports leftovers of an earlier interrupted commit.
func (r *Runner) RunSnapshot(ctx context.Context, opts SnapshotOptions) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolSnapshot)
	defer r.finish(s, started)

	name, err := r.cfg.RequirePolicy()
	if err != nil {
		return s, err
	}
	v := r.versioner()
	r.checkCommits(ctx, s, v)

	minN := r.cfg.Scoreboard.MinSampleSize
	if opts.MinN > 0 {
		minN = opts.MinN
	}
	minConf := r.cfg.Scoreboard.MinConfidence
	if opts.MinConf > 0 {
		minConf = opts.MinConf
	}
	policy, err := gate.Select(name, minConf)
	if err != nil {
		return s, err
	}
	s.Add("policy", policy.Name())
	s.Add("min_n", minN)
	s.Add("min_conf", minConf)

	streams := r.cfg.Streams
	if r.store.Exists(streams.Decisions) {
		decisions, err := r.read(s, "decisions", streams.Decisions)
		if err != nil {
			return s, err
		}
		rep := determinism.NewGuard().Verify(decisions)
		s.Add("true_conflict_keys", rep.TrueConflictKeys)
		r.metrics.RecordTrueConflicts(rep.TrueConflictKeys)
		if !rep.Pass() {
			s.Fail(domain.KindPolicySignatureConflict, "true_conflict_keys > 0")
			return s, nil
		}
	}

	recs, err := r.read(s, "trainable", streams.Trainable)
	if err != nil {
		return s, err
	}
	rows := make([]domain.EnrichedOutcome, 0, len(recs))
	undecodable := 0
	for _, rec := range recs {
		var o domain.EnrichedOutcome
		if err := json.Unmarshal(rec.Raw, &o); err != nil {
			undecodable++
			continue
		}
		rows = append(rows, o)
	}
	if undecodable > 0 {
		s.Add("trainable_undecodable", undecodable)
	}

	b := &scoreboard.Builder{
		MinSampleSize: minN,
		MaxBuckets:    r.cfg.Scoreboard.MaxBuckets,
		Recommender:   policy,
		BaseSize:      r.cfg.Gate.BaseSize,
	}
	res, err := b.Build(ctx, rows)
	switch {
	case errors.Is(err, scoreboard.ErrTooManyBuckets):
		s.Fail(domain.KindFiltered, "buckets > max_buckets (%d)", b.MaxBuckets)
		return s, nil
	case errors.Is(err, scoreboard.ErrNonFinite):
		s.Fail(domain.KindMalformedRecord, "non-finite statistic")
		return s, nil
	case err != nil:
		return s, err
	}
	s.Add("rows_in", res.RowsIn)
	s.Add("rows_used", res.RowsUsed)
	s.Add("dev_dropped", res.DevDropped)
	s.Add("non_finite_dropped", res.NonFiniteDropped)
	s.Add("buckets", len(res.Buckets))
	byAction := make(map[string]int)
	for a, n := range res.CountByAction() {
		byAction[string(a)] = n
	}
	s.AddMap("action_", byAction)
	if res.RowsUsed == 0 {
		s.Fail(domain.KindFiltered, "rows_used == 0")
		return s, nil
	}

	inputHash, err := r.store.Hash(streams.Trainable)
	if err != nil {
		s.Fail(domain.KindIOFailure, "hash %s: %v", streams.Trainable, err)
		return s, err
	}
	commit, err := v.Commit(ctx, snapshot.CommitInput{
		Buckets:   res.Buckets,
		MinN:      minN,
		MinConf:   minConf,
		Policy:    policy.Name(),
		InputPath: r.store.Path(streams.Trainable),
		InputHash: inputHash,
		Trigger:   opts.Trigger,
	})
	if err != nil {
		s.Fail(domain.KindIOFailure, "commit: %v", err)
		return s, err
	}
	s.Add("scoreboard_id", commit.ID)
	s.Add("scoreboard_hash", commit.Hash)
	s.Add("run_id", commit.RunID)
	s.Wrote = append(s.Wrote, commit.Path)
	r.metrics.RecordBuckets(byAction)
	r.metrics.RecordSnapshotCommit(commit.Audit.Trigger)

	if r.snapMirror != nil {
		start := time.Now()
		err := r.snapMirror.Publish(ctx, commit.ID, commit.Snapshot, &commit.Pointer)
		r.metrics.RecordDBQuery("postgres", "publish_snapshot", time.Since(start), err)
		if err != nil {
			r.log.Error().Err(err).Str("scoreboard_id", commit.ID).Msg("snapshot mirror publish failed")
			s.Add("mirror_errors", 1)
		}
	}
	return s, nil
}
