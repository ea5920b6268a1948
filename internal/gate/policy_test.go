package gate

import (
	"testing"

	"scoreloop/internal/domain"
)

func pf(v float64) *float64 { return &v }

func TestThreshold_InsufficientData(t *testing.T) {
	p := NewThresholdPolicy()

	// 29 samples, every other statistic excellent
	v := p.Decide(domain.BucketStats{N: 29, WinRate: 0.9, Expectancy: 5}, 1)

	if v.Code != domain.CodeInsufficientData {
		t.Errorf("expected INSUFFICIENT_DATA, got %s", v.Code)
	}
	if v.Action != domain.ActionBlock || v.SizeMultiplier != 0 {
		t.Errorf("expected BLOCK at 0, got %s at %v", v.Action, v.SizeMultiplier)
	}
	if v.Checks[0].Pass {
		t.Error("sample size check should fail")
	}
}

func TestThreshold_HoldMoreData(t *testing.T) {
	p := NewThresholdPolicy()

	v := p.Decide(domain.BucketStats{N: 30, WinRate: 0.46, Expectancy: 0.2}, 1)

	if v.Code != domain.CodeHoldMoreData {
		t.Errorf("expected HOLD_MORE_DATA, got %s", v.Code)
	}
	if v.Action != domain.ActionHold || v.SizeMultiplier != 0 {
		t.Errorf("expected HOLD at 0, got %s at %v", v.Action, v.SizeMultiplier)
	}
}

func TestThreshold_BlockNegativeExpectancy(t *testing.T) {
	p := NewThresholdPolicy()

	for _, exp := range []float64{0, -0.01, -10} {
		v := p.Decide(domain.BucketStats{N: 200, WinRate: 0.8, Expectancy: exp}, 1)
		if v.Code != domain.CodeBlockNeg {
			t.Errorf("exp=%v: expected BLOCK_NEG, got %s", exp, v.Code)
		}
	}
}

func TestThreshold_HoldLowWinRate(t *testing.T) {
	p := NewThresholdPolicy()

	v := p.Decide(domain.BucketStats{N: 50, WinRate: 0.449, Expectancy: 0.5}, 1)

	if v.Code != domain.CodeHoldLowWinrate {
		t.Errorf("expected HOLD_LOW_WINRATE, got %s", v.Code)
	}
}

func TestThreshold_AllowTiers(t *testing.T) {
	p := NewThresholdPolicy()

	tests := []struct {
		exp  float64
		want float64
	}{
		{0.01, 1.0},
		{0.05, 1.0},
		{0.051, 1.25},
		{0.10, 1.25},
		{0.11, 1.5},
		{100, 1.5},
	}
	for _, tt := range tests {
		v := p.Decide(domain.BucketStats{N: 50, WinRate: 0.5, Expectancy: tt.exp}, 3)
		if v.Code != domain.CodeAllow || !v.Allow() {
			t.Errorf("exp=%v: expected ALLOW, got %s", tt.exp, v.Code)
		}
		if v.SizeMultiplier != tt.want {
			t.Errorf("exp=%v: expected size %v, got %v", tt.exp, tt.want, v.SizeMultiplier)
		}
	}
}

func TestConfidence_ColdStart(t *testing.T) {
	p := NewConfidencePolicy(0.6)

	v := p.Decide(domain.BucketStats{N: 5, Confidence: 0.59, Expectancy: 10, ProfitFactor: pf(9)}, 2)

	if v.Code != domain.CodeColdStart || v.Action != domain.ActionBlock || v.SizeMultiplier != 0 {
		t.Errorf("expected COLD_START/BLOCK/0, got %s/%s/%v", v.Code, v.Action, v.SizeMultiplier)
	}
}

func TestConfidence_Block(t *testing.T) {
	p := NewConfidencePolicy(0.6)

	tests := []struct {
		name string
		s    domain.BucketStats
	}{
		{"zero expectancy", domain.BucketStats{Confidence: 0.9, Expectancy: 0}},
		{"negative expectancy", domain.BucketStats{Confidence: 0.9, Expectancy: -1, ProfitFactor: pf(2)}},
		{"weak profit factor", domain.BucketStats{Confidence: 0.9, Expectancy: 0.1, ProfitFactor: pf(1.09)}},
	}
	for _, tt := range tests {
		v := p.Decide(tt.s, 1)
		if v.Code != domain.CodeBlock {
			t.Errorf("%s: expected BLOCK, got %s", tt.name, v.Code)
		}
	}
}

func TestConfidence_AllowUsesBaseSize(t *testing.T) {
	p := NewConfidencePolicy(0.6)

	// No losses: profit factor absent, not a blocker
	v := p.Decide(domain.BucketStats{Confidence: 0.6, Expectancy: 0.1}, 2.5)
	if v.Code != domain.CodeAllow {
		t.Fatalf("expected ALLOW, got %s (%s)", v.Code, v.Reason)
	}
	if v.SizeMultiplier != 2.5 {
		t.Errorf("expected size 2.5, got %v", v.SizeMultiplier)
	}

	v = p.Decide(domain.BucketStats{Confidence: 0.7, Expectancy: 0.1, ProfitFactor: pf(1.1)}, 1)
	if v.Code != domain.CodeAllow {
		t.Errorf("pf at floor: expected ALLOW, got %s", v.Code)
	}
}

func TestNewConfidencePolicy_Default(t *testing.T) {
	if got := NewConfidencePolicy(0).MinConfidence; got != DefaultMinConfidence {
		t.Errorf("expected default %v, got %v", DefaultMinConfidence, got)
	}
}

func TestPolicyHash_StableAndParameterSensitive(t *testing.T) {
	a := NewThresholdPolicy()
	b := NewThresholdPolicy()
	if a.Hash() != b.Hash() {
		t.Error("identical policies must hash equal")
	}
	if len(a.Hash()) != 16 {
		t.Errorf("expected 16 hex chars, got %q", a.Hash())
	}
	b.MinN = 31
	if a.Hash() == b.Hash() {
		t.Error("parameter change must change the hash")
	}
	if NewConfidencePolicy(0.6).Hash() == NewConfidencePolicy(0.7).Hash() {
		t.Error("confidence floor must change the hash")
	}
}

func TestSelect(t *testing.T) {
	if _, err := Select("", 0.6); err == nil {
		t.Error("empty policy name must be an error")
	}
	if _, err := Select("kelly", 0.6); err == nil {
		t.Error("unknown policy name must be an error")
	}
	p, err := Select(PolicyConfidence, 0.7)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if p.Name() != PolicyConfidence {
		t.Errorf("expected confidence, got %s", p.Name())
	}
	if len(All(0.6)) != 2 {
		t.Error("expected both policies")
	}
}
