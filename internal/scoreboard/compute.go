package scoreboard

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"scoreloop/internal/domain"
)

// computeBucket derives statistics from one bucket's outcomes.
// rows must be in arrival order; the drawdown proxy depends on it.
func computeBucket(key domain.BucketKey, rows []domain.EnrichedOutcome, minN int) domain.BucketStats {
	n := len(rows)
	st := domain.BucketStats{Key: key, N: n}
	if n == 0 {
		return st
	}

	pnls := make([]float64, n)
	total := decimal.Zero
	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	var rSum float64
	var rCount int

	for i, r := range rows {
		pnls[i] = r.PnlUSD
		d := decimal.NewFromFloat(r.PnlUSD)
		total = total.Add(d)
		switch {
		case r.PnlUSD > 0:
			st.Wins++
			grossWin = grossWin.Add(d)
		case r.PnlUSD < 0:
			st.Losses++
			grossLoss = grossLoss.Add(d)
		}
		if r.RMultiple != nil {
			rSum += *r.RMultiple
			rCount++
		}
	}

	sorted := make([]float64, n)
	copy(sorted, pnls)
	sort.Float64s(sorted)

	st.TotalPnl = total.InexactFloat64()
	st.Expectancy = total.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	st.WinRate = computeWinRate(st.Wins, n)
	st.MedianPnl = computePercentile(sorted, 0.50)
	st.ProfitFactor = computeProfitFactor(grossWin, grossLoss, st.Losses)
	st.MaxDDProxy = computeMaxDrawdown(pnls)
	if rCount > 0 {
		mean := rSum / float64(rCount)
		st.MeanR = &mean
	}
	st.Sufficient = n >= minN
	if st.Sufficient {
		st.Confidence = computeConfidence(n, minN)
	}
	return st
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeProfitFactor is gross wins over absolute gross losses.
// Nil when there are no losing trades.
func computeProfitFactor(grossWin, grossLoss decimal.Decimal, losses int) *float64 {
	if losses == 0 || grossLoss.IsZero() {
		return nil
	}
	pf := grossWin.Div(grossLoss.Abs()).InexactFloat64()
	return &pf
}

// computeConfidence is 1 - e^(-n/minN): 0 at n=0, monotonic, below 1.
func computeConfidence(n, minN int) float64 {
	if n <= 0 {
		return 0
	}
	if minN < 1 {
		minN = 1
	}
	c := 1 - math.Exp(-float64(n)/float64(minN))
	if c < 0 {
		return 0
	}
	if c >= 1 {
		return math.Nextafter(1, 0)
	}
	return c
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.50 = median).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative PnL.
// The peak starts at zero equity. Outcomes must be in arrival order.
func computeMaxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

func finite(st domain.BucketStats) bool {
	vals := []float64{st.WinRate, st.Expectancy, st.MedianPnl, st.TotalPnl, st.MaxDDProxy, st.Confidence, st.SizeMultiplier}
	if st.ProfitFactor != nil {
		vals = append(vals, *st.ProfitFactor)
	}
	if st.MeanR != nil {
		vals = append(vals, *st.MeanR)
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
