package join

import (
	"fmt"
	"time"

	"scoreloop/internal/extract"
)

// Cutover reject reasons.
const (
	ReasonCutoverMissingTs = "cutover_missing_ts"
	ReasonCutoverBeforeTs  = "cutover_before_ts"
)

// CutoverFilter excludes outcomes closed before a fixed instant. It is the
// only time-based filter the joiner applies, and it is always reported.
type CutoverFilter struct {
	Enabled bool
	TsMs    int64
}

// NewCutoverFilter returns a disabled filter when at is nil.
func NewCutoverFilter(at *time.Time) CutoverFilter {
	if at == nil {
		return CutoverFilter{}
	}
	return CutoverFilter{Enabled: true, TsMs: at.UnixMilli()}
}

// String renders the filter for run summaries.
func (c CutoverFilter) String() string {
	if !c.Enabled {
		return "OFF"
	}
	return fmt.Sprintf("ON ts_ms=%d", c.TsMs)
}

// Check returns a reject reason and detail when raw falls outside the cutover.
// The outcome time is closed_ts_ms, falling back to opened_ts_ms.
func (c CutoverFilter) Check(raw []byte) (string, map[string]any) {
	if !c.Enabled {
		return "", nil
	}
	ts, ok := extract.ClosedTs.Int(raw)
	if !ok {
		ts, ok = extract.OpenedTs.Int(raw)
	}
	if !ok {
		return ReasonCutoverMissingTs, map[string]any{"cutover_ts_ms": c.TsMs}
	}
	if ts < c.TsMs {
		return ReasonCutoverBeforeTs, map[string]any{"cutover_ts_ms": c.TsMs, "outcome_ts_ms": ts}
	}
	return "", nil
}
