package gate

import (
	"fmt"

	"scoreloop/internal/domain"
)

// DefaultMinConfidence is the confidence floor below which a bucket is cold.
const DefaultMinConfidence = 0.60

// ConfidencePolicy gates on the bucket's confidence score, then expectancy
// and profit factor. Allowed buckets trade at the caller's base size.
type ConfidencePolicy struct {
	MinConfidence   float64
	MinProfitFactor float64
}

// NewConfidencePolicy returns the policy with the given confidence floor.
// A non-positive floor takes the default.
func NewConfidencePolicy(minConfidence float64) *ConfidencePolicy {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &ConfidencePolicy{MinConfidence: minConfidence, MinProfitFactor: 1.1}
}

func (p *ConfidencePolicy) Name() string { return PolicyConfidence }

func (p *ConfidencePolicy) Hash() string {
	return policyHash(p.Name(),
		"min_confidence", p.MinConfidence,
		"min_profit_factor", p.MinProfitFactor,
	)
}

func (p *ConfidencePolicy) Decide(s domain.BucketStats, baseSize float64) Verdict {
	pfActual := "n/a"
	pfPass := true
	if s.ProfitFactor != nil {
		pfActual = fmt.Sprintf("%.4f", *s.ProfitFactor)
		pfPass = *s.ProfitFactor >= p.MinProfitFactor
	}
	checks := []Criterion{
		{
			Name:      "Confidence",
			Threshold: fmt.Sprintf(">= %.2f", p.MinConfidence),
			Actual:    fmt.Sprintf("%.4f", s.Confidence),
			Pass:      s.Confidence >= p.MinConfidence,
		},
		{
			Name:      "Expectancy",
			Threshold: "> 0",
			Actual:    fmt.Sprintf("%.4f", s.Expectancy),
			Pass:      s.Expectancy > 0,
		},
		{
			Name:      "Profit factor",
			Threshold: fmt.Sprintf(">= %.2f when losses exist", p.MinProfitFactor),
			Actual:    pfActual,
			Pass:      pfPass,
		},
	}

	v := Verdict{Policy: p.Name(), Checks: checks, Action: domain.ActionBlock}
	switch {
	case !checks[0].Pass:
		v.Code = domain.CodeColdStart
		v.Reason = fmt.Sprintf("confidence=%.4f < %.2f", s.Confidence, p.MinConfidence)
	case !checks[1].Pass:
		v.Code = domain.CodeBlock
		v.Reason = fmt.Sprintf("expectancy=%.4f <= 0", s.Expectancy)
	case !checks[2].Pass:
		v.Code = domain.CodeBlock
		v.Reason = fmt.Sprintf("profit_factor=%s < %.2f", pfActual, p.MinProfitFactor)
	default:
		v.Code, v.Action = domain.CodeAllow, domain.ActionAllow
		v.SizeMultiplier = baseSize
		v.Reason = fmt.Sprintf("confidence=%.4f expectancy=%.4f", s.Confidence, s.Expectancy)
	}
	return v
}
