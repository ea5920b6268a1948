package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"scoreloop/internal/domain"
	"scoreloop/internal/gate"
)

// Report output formats.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
)

// GateReportOptions controls the comparison report.
type GateReportOptions struct {
	SortBy string
	Top    int
	Format string
	Out    io.Writer
}

// RunGateReport renders every policy side by side over the current snapshot.
// The canonical policy is marked.
func (r *Runner) RunGateReport(ctx context.Context, opts GateReportOptions) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolGateReport)
	defer r.finish(s, started)

	canonical, err := r.cfg.RequirePolicy()
	if err != nil {
		return s, err
	}
	v := r.versioner()
	r.checkCommits(ctx, s, v)
	snap, ptr, err := v.Current(ctx)
	if err != nil {
		s.Fail(domain.KindIOFailure, "read current snapshot: %v", err)
		return s, err
	}
	rep, err := gate.BuildReport(snap, ptr, gate.All(r.cfg.Scoreboard.MinConfidence), gate.ReportOptions{
		SortBy:    opts.SortBy,
		Top:       opts.Top,
		Canonical: canonical,
		BaseSize:  r.cfg.Gate.BaseSize,
	})
	if err != nil {
		return s, err
	}
	s.Add("scoreboard_id", rep.SnapshotID)
	s.Add("canonical_policy", canonical)
	s.Add("sort_by", rep.SortBy)
	s.Add("buckets", rep.Total)
	s.Add("shown", len(rep.Rows))

	if opts.Out == nil {
		return s, nil
	}
	switch opts.Format {
	case "", FormatTable:
		err = gate.RenderTable(opts.Out, rep)
	case FormatMarkdown:
		_, err = io.WriteString(opts.Out, gate.RenderMarkdown(rep))
	default:
		err = fmt.Errorf("unknown report format %q", opts.Format)
	}
	return s, err
}
