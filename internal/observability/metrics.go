// Package observability provides Prometheus metrics for the batch tools.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"scoreloop/internal/storage"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "scoreloop"

// Metrics holds the collectors for one tool run. Each instance owns its
// registry so runs and tests never share state. A nil *Metrics is a no-op.
type Metrics struct {
	reg *prometheus.Registry

	// Record flow
	RecordsRead     *prometheus.CounterVec
	RecordsKept     *prometheus.CounterVec
	RecordsRejected *prometheus.CounterVec
	LinesSkipped    *prometheus.CounterVec
	Orphans         prometheus.Counter

	// Scoreboard and gate
	BucketsEmitted  *prometheus.CounterVec
	SnapshotCommits *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	TrueConflicts   prometheus.Counter

	// Runs
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	LastSuccessfulRun *prometheus.GaugeVec

	// Mirror databases
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors registered on a
// fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		RecordsRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "read_total",
			Help:      "Total number of records read by stream",
		}, []string{"stream"}),
		RecordsKept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "kept_total",
			Help:      "Total number of records kept by tool",
		}, []string{"tool"}),
		RecordsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "rejected_total",
			Help:      "Total number of records rejected by tool and reason",
		}, []string{"tool", "reason"}),
		LinesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "lines_skipped_total",
			Help:      "Total number of unparseable lines skipped by stream and kind",
		}, []string{"stream", "kind"}),
		Orphans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "orphans_total",
			Help:      "Total number of outcomes without a setup context",
		}),

		BucketsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoreboard",
			Name:      "buckets_emitted_total",
			Help:      "Total number of buckets emitted by recommended action",
		}, []string{"action"}),
		SnapshotCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoreboard",
			Name:      "snapshot_commits_total",
			Help:      "Total number of snapshot commits by trigger",
		}, []string{"trigger"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Total number of gate decisions by policy and action",
		}, []string{"policy", "action"}),
		TrueConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "determinism",
			Name:      "true_conflicts_total",
			Help:      "Total number of trade keys with conflicting policy signatures",
		}),

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of tool runs by status",
		}, []string{"tool", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Tool run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"tool"}),
		LastSuccessfulRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run by tool",
		}, []string{"tool"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Mirror database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of mirror database query errors",
		}, []string{"database", "operation"}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// RecordScan records what a stream read saw.
func (m *Metrics) RecordScan(stream string, stats storage.ScanStats) {
	if m == nil {
		return
	}
	m.RecordsRead.WithLabelValues(stream).Add(float64(stats.Parsed))
	m.LinesSkipped.WithLabelValues(stream, "malformed").Add(float64(stats.Malformed))
	m.LinesSkipped.WithLabelValues(stream, "truncated").Add(float64(stats.Truncated))
}

// RecordFilter records kept and rejected counts for a tool.
func (m *Metrics) RecordFilter(tool string, kept int, rejected map[string]int) {
	if m == nil {
		return
	}
	m.RecordsKept.WithLabelValues(tool).Add(float64(kept))
	for reason, n := range rejected {
		m.RecordsRejected.WithLabelValues(tool, reason).Add(float64(n))
	}
}

// RecordOrphans adds to the orphan counter.
func (m *Metrics) RecordOrphans(n int) {
	if m == nil {
		return
	}
	m.Orphans.Add(float64(n))
}

// RecordBuckets records emitted buckets by action.
func (m *Metrics) RecordBuckets(byAction map[string]int) {
	if m == nil {
		return
	}
	for action, n := range byAction {
		m.BucketsEmitted.WithLabelValues(action).Add(float64(n))
	}
}

// RecordSnapshotCommit increments the commit counter.
func (m *Metrics) RecordSnapshotCommit(trigger string) {
	if m == nil {
		return
	}
	m.SnapshotCommits.WithLabelValues(trigger).Inc()
}

// RecordDecision increments the decision counter.
func (m *Metrics) RecordDecision(policy, action string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(policy, action).Inc()
}

// RecordTrueConflicts adds to the conflict counter.
func (m *Metrics) RecordTrueConflicts(n int) {
	if m == nil {
		return
	}
	m.TrueConflicts.Add(float64(n))
}

// RecordRun records a tool run.
func (m *Metrics) RecordRun(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(tool, status).Inc()
	m.RunDuration.WithLabelValues(tool).Observe(d.Seconds())
	if status == "pass" {
		m.LastSuccessfulRun.WithLabelValues(tool).SetToCurrentTime()
	}
}

// RecordDBQuery records mirror database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
