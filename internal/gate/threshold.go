package gate

import (
	"fmt"
	"strings"

	"scoreloop/internal/domain"
	"scoreloop/internal/idhash"
)

// ThresholdPolicy gates on sample size, expectancy and win rate, and scales
// size in tiers by expectancy.
type ThresholdPolicy struct {
	MinN       int     // below: INSUFFICIENT_DATA
	HoldN      int     // below: HOLD_MORE_DATA
	MinWinRate float64 // below: HOLD_LOW_WINRATE
	Tier1Exp   float64
	Tier1Mult  float64
	Tier2Exp   float64
	Tier2Mult  float64 // also the cap
}

// NewThresholdPolicy returns the policy with its standard constants.
func NewThresholdPolicy() *ThresholdPolicy {
	return &ThresholdPolicy{
		MinN:       30,
		HoldN:      50,
		MinWinRate: 0.45,
		Tier1Exp:   0.05,
		Tier1Mult:  1.25,
		Tier2Exp:   0.10,
		Tier2Mult:  1.5,
	}
}

func (p *ThresholdPolicy) Name() string { return PolicyThreshold }

func (p *ThresholdPolicy) Hash() string {
	return policyHash(p.Name(),
		"min_n", p.MinN,
		"hold_n", p.HoldN,
		"min_win_rate", p.MinWinRate,
		"tier1_exp", p.Tier1Exp,
		"tier1_mult", p.Tier1Mult,
		"tier2_exp", p.Tier2Exp,
		"tier2_mult", p.Tier2Mult,
	)
}

// Decide applies the rules in order; the first failing rule decides.
// baseSize is ignored: this policy sizes by fixed multipliers.
func (p *ThresholdPolicy) Decide(s domain.BucketStats, _ float64) Verdict {
	checks := []Criterion{
		{
			Name:      "Sample size",
			Threshold: fmt.Sprintf(">= %d", p.MinN),
			Actual:    fmt.Sprintf("%d", s.N),
			Pass:      s.N >= p.MinN,
		},
		{
			Name:      "Expectancy",
			Threshold: "> 0",
			Actual:    fmt.Sprintf("%.4f", s.Expectancy),
			Pass:      s.Expectancy > 0,
		},
		{
			Name:      "Hold sample size",
			Threshold: fmt.Sprintf(">= %d", p.HoldN),
			Actual:    fmt.Sprintf("%d", s.N),
			Pass:      s.N >= p.HoldN,
		},
		{
			Name:      "Win rate",
			Threshold: fmt.Sprintf(">= %.2f", p.MinWinRate),
			Actual:    fmt.Sprintf("%.4f", s.WinRate),
			Pass:      s.WinRate >= p.MinWinRate,
		},
	}

	v := Verdict{Policy: p.Name(), Checks: checks}
	switch {
	case !checks[0].Pass:
		v.Code, v.Action = domain.CodeInsufficientData, domain.ActionBlock
		v.Reason = fmt.Sprintf("n=%d < %d", s.N, p.MinN)
	case !checks[1].Pass:
		v.Code, v.Action = domain.CodeBlockNeg, domain.ActionBlock
		v.Reason = fmt.Sprintf("expectancy=%.4f <= 0", s.Expectancy)
	case !checks[2].Pass:
		v.Code, v.Action = domain.CodeHoldMoreData, domain.ActionHold
		v.Reason = fmt.Sprintf("n=%d < %d", s.N, p.HoldN)
	case !checks[3].Pass:
		v.Code, v.Action = domain.CodeHoldLowWinrate, domain.ActionHold
		v.Reason = fmt.Sprintf("win_rate=%.4f < %.2f", s.WinRate, p.MinWinRate)
	default:
		v.Code, v.Action = domain.CodeAllow, domain.ActionAllow
		v.SizeMultiplier = 1.0
		switch {
		case s.Expectancy > p.Tier2Exp:
			v.SizeMultiplier = p.Tier2Mult
		case s.Expectancy > p.Tier1Exp:
			v.SizeMultiplier = p.Tier1Mult
		}
		if v.SizeMultiplier > p.Tier2Mult {
			v.SizeMultiplier = p.Tier2Mult
		}
		v.Reason = fmt.Sprintf("n=%d expectancy=%.4f win_rate=%.4f", s.N, s.Expectancy, s.WinRate)
	}
	return v
}

// policyHash is the first 16 hex chars of sha256 over name and its
// parameters as alternating key/value pairs.
func policyHash(name string, kv ...any) string {
	var b strings.Builder
	b.WriteString(name)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, "|%v=%v", kv[i], kv[i+1])
	}
	return idhash.Hex([]byte(b.String()))[:16]
}
