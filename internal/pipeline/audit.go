package pipeline

import (
	"context"
	"time"

	"scoreloop/internal/domain"
)

// RunAudit verifies the audit hash chain and lists snapshot versions left
// by interrupted commits. Nothing is modified.
func (r *Runner) RunAudit(ctx context.Context) (*Summary, error) {
	started := time.Now()
	s := NewSummary(ToolAudit)
	defer r.finish(s, started)

	v := r.versioner()
	rep, err := v.VerifyAudit(ctx)
	if err != nil {
		s.Fail(domain.KindIOFailure, "read audit log: %v", err)
		return s, err
	}
	inv, err := v.Inspect(ctx)
	if err != nil {
		s.Fail(domain.KindIOFailure, "inspect versions: %v", err)
		return s, err
	}

	s.Add("audit_entries", rep.Entries)
	s.Add("audit_skipped", rep.Skipped)
	s.Add("audit_head", rep.Head)
	s.Add("chain_breaks", len(rep.Breaks))
	for _, b := range rep.Breaks {
		s.Add("chain_break_line", b.Line)
	}
	s.Add("current", inv.Current)
	s.Add("versions", len(inv.Versions))
	s.Add("inert_versions", len(inv.Inert))
	for _, id := range inv.Inert {
		s.Add("inert", id)
	}
	if inv.UnauditedCurrent {
		s.Add("unaudited_current", true)
	}

	if !rep.OK() {
		s.Fail(domain.KindIOFailure, "audit chain broken")
		return s, nil
	}
	if inv.Interrupted() {
		r.log.Warn().Int("inert", len(inv.Inert)).Bool("unaudited_current", inv.UnauditedCurrent).
			Msg("interrupted snapshot commit detected")
	}
	return s, nil
}
