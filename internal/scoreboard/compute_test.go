package scoreboard

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		pnls []float64
		want float64
	}{
		{"empty", nil, 0},
		{"all wins", []float64{1, 2, 3}, 0},
		{"loss first counts from zero", []float64{-2, 1}, 2},
		{"peak then trough", []float64{5, -3, -4, 10, -1}, 7},
	}
	for _, tt := range tests {
		if got := computeMaxDrawdown(tt.pnls); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestComputePercentile_Median(t *testing.T) {
	if got := computePercentile([]float64{1, 2, 3}, 0.5); got != 2 {
		t.Errorf("odd: expected 2, got %v", got)
	}
	if got := computePercentile([]float64{1, 2, 3, 10}, 0.5); got != 2.5 {
		t.Errorf("even: expected 2.5, got %v", got)
	}
	if got := computePercentile(nil, 0.5); got != 0 {
		t.Errorf("empty: expected 0, got %v", got)
	}
}

func TestComputeProfitFactor(t *testing.T) {
	if computeProfitFactor(decimal.NewFromInt(10), decimal.Zero, 0) != nil {
		t.Error("no losses must give nil")
	}
	got := computeProfitFactor(decimal.NewFromInt(30), decimal.NewFromInt(-20), 2)
	if got == nil || *got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}

func TestComputeConfidence(t *testing.T) {
	if computeConfidence(0, 10) != 0 {
		t.Error("n=0 must give 0")
	}
	prev := 0.0
	for n := 1; n <= 500; n++ {
		c := computeConfidence(n, 10)
		if c <= prev && c < math.Nextafter(1, 0) {
			t.Fatalf("not increasing at n=%d: %v <= %v", n, c, prev)
		}
		if c >= 1 {
			t.Fatalf("reached 1 at n=%d", n)
		}
		prev = c
	}
	if got := computeConfidence(10, 10); math.Abs(got-(1-math.Exp(-1))) > 1e-12 {
		t.Errorf("n=minN: expected 1-1/e, got %v", got)
	}
}
