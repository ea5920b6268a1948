package gate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"scoreloop/internal/domain"
)

// ReportOptions control report content.
type ReportOptions struct {
	SortBy    string
	Top       int
	Canonical string
	BaseSize  float64
}

// Report is a side-by-side view of every policy over one snapshot.
type Report struct {
	SnapshotID  string
	GeneratedAt string
	Canonical   string
	SortBy      string
	Policies    []string
	Rows        []Comparison
	Total       int
}

// BuildReport compares policies over the snapshot's buckets.
func BuildReport(snap *domain.ScoreboardSnapshot, ptr *domain.SnapshotPointer, policies []Policy, opts ReportOptions) (*Report, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "n"
	}
	rows := Compare(snap.Buckets, opts.BaseSize, policies...)
	if err := SortComparisons(rows, sortBy); err != nil {
		return nil, err
	}
	total := len(rows)
	if opts.Top > 0 && len(rows) > opts.Top {
		rows = rows[:opts.Top]
	}

	r := &Report{
		GeneratedAt: snap.GeneratedAt,
		Canonical:   opts.Canonical,
		SortBy:      sortBy,
		Rows:        rows,
		Total:       total,
	}
	if ptr != nil {
		r.SnapshotID = ptr.Current
	}
	for _, p := range policies {
		r.Policies = append(r.Policies, p.Name())
	}
	return r, nil
}

func (r *Report) policyHeader(name string) string {
	if name == r.Canonical {
		return name + "*"
	}
	return name
}

func formatPF(pf *float64) string {
	if pf == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *pf)
}

func formatVerdict(v Verdict) string {
	return fmt.Sprintf("%s %.2fx", v.Code, v.SizeMultiplier)
}

// RenderTable writes an aligned plain-text table.
func RenderTable(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "snapshot=%s generated_at=%s sort=%s showing=%d/%d\n",
		r.SnapshotID, r.GeneratedAt, r.SortBy, len(r.Rows), r.Total)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"BUCKET", "N", "WIN_RATE", "EXPECTANCY", "PF", "MAX_DD", "CONF"}
	for _, p := range r.Policies {
		header = append(header, strings.ToUpper(r.policyHeader(p)))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range r.Rows {
		s := row.Stats
		cols := []string{
			s.Key.String(),
			fmt.Sprintf("%d", s.N),
			fmt.Sprintf("%.3f", s.WinRate),
			fmt.Sprintf("%.4f", s.Expectancy),
			formatPF(s.ProfitFactor),
			fmt.Sprintf("%.2f", s.MaxDDProxy),
			fmt.Sprintf("%.3f", s.Confidence),
		}
		for _, v := range row.Verdicts {
			cols = append(cols, formatVerdict(v))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Canonical != "" {
		fmt.Fprintf(w, "* canonical policy: %s\n", r.Canonical)
	}
	return nil
}

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Gate Report\n\n")
	sb.WriteString(fmt.Sprintf("Snapshot: `%s` generated %s\n\n", r.SnapshotID, r.GeneratedAt))
	sb.WriteString(fmt.Sprintf("Sorted by `%s`, showing %d of %d buckets.\n\n", r.SortBy, len(r.Rows), r.Total))

	sb.WriteString("| Bucket | N | Win rate | Expectancy | PF | Max DD | Confidence |")
	for _, p := range r.Policies {
		sb.WriteString(fmt.Sprintf(" %s |", r.policyHeader(p)))
	}
	sb.WriteString("\n|--------|---|----------|------------|----|--------|------------|")
	for range r.Policies {
		sb.WriteString("------|")
	}
	sb.WriteString("\n")

	for _, row := range r.Rows {
		s := row.Stats
		sb.WriteString(fmt.Sprintf("| %s | %d | %.3f | %.4f | %s | %.2f | %.3f |",
			s.Key.String(), s.N, s.WinRate, s.Expectancy, formatPF(s.ProfitFactor), s.MaxDDProxy, s.Confidence))
		for _, v := range row.Verdicts {
			sb.WriteString(fmt.Sprintf(" %s |", formatVerdict(v)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	// Action tallies per policy
	sb.WriteString("## Actions\n\n")
	for i, p := range r.Policies {
		counts := map[domain.Action]int{}
		for _, row := range r.Rows {
			counts[row.Verdicts[i].Action]++
		}
		sb.WriteString(fmt.Sprintf("- %s: ALLOW %d, HOLD %d, BLOCK %d\n", r.policyHeader(p),
			counts[domain.ActionAllow], counts[domain.ActionHold], counts[domain.ActionBlock]))
	}
	if r.Canonical != "" {
		sb.WriteString(fmt.Sprintf("\n`*` marks the canonical policy (%s). Other policies are shown for comparison only.\n", r.Canonical))
	}
	return sb.String()
}
