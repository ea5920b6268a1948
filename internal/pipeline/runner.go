// Package pipeline wires the Record Store, the batch components, metrics and
// the optional mirrors into one runner per tool.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"scoreloop/internal/config"
	"scoreloop/internal/domain"
	"scoreloop/internal/logging"
	"scoreloop/internal/observability"
	"scoreloop/internal/snapshot"
	"scoreloop/internal/storage"
	"scoreloop/internal/storage/jsonl"
)

// Version identifies this code path in snapshot metadata.
const Version = "1.0.0"

// Tool names.
const (
	ToolCanonicalize    = "canonicalize"
	ToolJoin            = "join"
	ToolSnapshot        = "snapshot"
	ToolGateReport      = "gatereport"
	ToolVerifyDecisions = "verifydecisions"
	ToolDecide          = "decide"
	ToolAudit           = "audit"
)

// Runner runs one tool against the configured data directory.
type Runner struct {
	cfg         *config.Config
	store       *jsonl.Store
	metrics     *observability.Metrics
	snapMirror  storage.SnapshotMirror
	trainMirror storage.TrainableMirror
	clock       func() time.Time
	log         zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithSnapshotMirror publishes committed snapshots to a database.
func WithSnapshotMirror(m storage.SnapshotMirror) Option {
	return func(r *Runner) {
		r.snapMirror = m
	}
}

// WithTrainableMirror copies each trainable set to an analytics store.
func WithTrainableMirror(m storage.TrainableMirror) Option {
	return func(r *Runner) {
		r.trainMirror = m
	}
}

// WithClock sets a custom clock for deterministic output.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner builds a runner over cfg.DataDir.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:   cfg,
		clock: func() time.Time { return time.Now().UTC() },
		log:   logging.For("pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.store = jsonl.NewStore(cfg.DataDir,
		jsonl.WithBusyRetry(cfg.Store.BusyRetries, cfg.Store.BusyBackoff),
		jsonl.WithLogger(r.log.With().Str("component", "store").Logger()),
	)
	return r
}

// Store returns the Record Store the runner reads and writes.
func (r *Runner) Store() *jsonl.Store {
	return r.store
}

func (r *Runner) versioner() *snapshot.Versioner {
	return snapshot.NewVersioner(r.store, r.cfg.Streams.Scoreboard,
		snapshot.WithClock(r.clock),
		snapshot.WithCodeIdentity(domain.CodeIdentity{Tool: ToolSnapshot, Module: "scoreloop", Version: Version}),
		snapshot.WithLogger(r.log.With().Str("component", "snapshot").Logger()),
	)
}

// checkCommits reports what an interrupted snapshot commit left behind.
// Inert versions are never served, so finding them does not fail the run.
func (r *Runner) checkCommits(ctx context.Context, s *Summary, v *snapshot.Versioner) {
	inv, err := v.Inspect(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("inspect snapshot versions failed")
		return
	}
	s.Add("inert_versions", len(inv.Inert))
	if !inv.Interrupted() {
		return
	}
	s.Add("snapshot_commit_interrupted", true)
	if inv.UnauditedCurrent {
		s.Add("snapshot_unaudited", inv.Current)
	}
	r.log.Warn().Strs("inert", inv.Inert).Bool("unaudited_current", inv.UnauditedCurrent).
		Str("current", inv.Current).Msg("interrupted snapshot commit detected")
}

// read loads a whole stream and records its scan counts.
func (r *Runner) read(s *Summary, prefix, stream string) ([]storage.Record, error) {
	recs, stats, err := r.store.ReadAll(stream)
	if err != nil {
		s.Fail(domain.KindIOFailure, "read %s: %v", stream, err)
		return nil, err
	}
	s.Add(prefix+"_lines", stats.Lines)
	if stats.Skipped() > 0 {
		s.Add(prefix+"_skipped_malformed", stats.Malformed)
		s.Add(prefix+"_skipped_truncated", stats.Truncated)
		r.log.Warn().Str("stream", stream).Int("malformed", stats.Malformed).Int("truncated", stats.Truncated).Msg("skipped unparseable lines")
	}
	r.metrics.RecordScan(stream, stats)
	return recs, nil
}

// write replaces a derived stream and lists it in the summary.
func (r *Runner) write(s *Summary, stream string, lines [][]byte) bool {
	res := r.store.WriteStream(stream, lines)
	if !res.OK {
		s.Fail(res.Kind, "write %s: %v", stream, res.Err)
		return false
	}
	s.Wrote = append(s.Wrote, r.store.Path(stream))
	return true
}

// finish records the run outcome.
func (r *Runner) finish(s *Summary, started time.Time) {
	status := "pass"
	if !s.Passed() {
		status = "fail"
	}
	r.metrics.RecordRun(s.Tool, status, time.Since(started))
	ev := r.log.Info()
	if !s.Passed() {
		ev = r.log.Error().Str("condition", s.Failure.Condition)
	}
	ev.Str("tool", s.Tool).Dur("elapsed", time.Since(started)).Msg("run finished")
}
