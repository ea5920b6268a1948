package domain

import "fmt"

// BucketKey identifies a statistical bucket.
type BucketKey struct {
	SetupType string `json:"setup_type"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// String renders the key as setup|symbol|timeframe.
func (k BucketKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.SetupType, k.Symbol, k.Timeframe)
}

// Less orders keys by setup type, symbol, timeframe.
func (k BucketKey) Less(o BucketKey) bool {
	if k.SetupType != o.SetupType {
		return k.SetupType < o.SetupType
	}
	if k.Symbol != o.Symbol {
		return k.Symbol < o.Symbol
	}
	return k.Timeframe < o.Timeframe
}

// BucketStats is the derived summary of one bucket.
// Regenerated wholesale on every aggregation run.
type BucketStats struct {
	Key BucketKey `json:"bucket_key"`

	N      int `json:"n"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	WinRate    float64 `json:"win_rate"`
	Expectancy float64 `json:"expectancy"` // mean PnL
	MedianPnl  float64 `json:"median_pnl"`
	TotalPnl   float64 `json:"total_pnl"`

	ProfitFactor *float64 `json:"profit_factor"` // nil when no losses
	MaxDDProxy   float64  `json:"max_dd_proxy"`
	MeanR        *float64 `json:"mean_r"` // nil when no outcome carried risk

	Confidence float64 `json:"confidence"`
	Sufficient bool    `json:"sufficient"` // n >= min sample size

	RecommendedAction string  `json:"recommended_action"` // decision code
	Action            Action  `json:"action"`
	SizeMultiplier    float64 `json:"size_multiplier"`
}

// Stat returns a named numeric statistic for sorting and reporting.
// The second return is false for unknown names or nil values.
func (s BucketStats) Stat(name string) (float64, bool) {
	switch name {
	case "n":
		return float64(s.N), true
	case "win_rate":
		return s.WinRate, true
	case "expectancy":
		return s.Expectancy, true
	case "median_pnl":
		return s.MedianPnl, true
	case "total_pnl":
		return s.TotalPnl, true
	case "profit_factor":
		if s.ProfitFactor == nil {
			return 0, false
		}
		return *s.ProfitFactor, true
	case "max_dd_proxy", "max_drawdown":
		return s.MaxDDProxy, true
	case "confidence":
		return s.Confidence, true
	case "mean_r":
		if s.MeanR == nil {
			return 0, false
		}
		return *s.MeanR, true
	}
	return 0, false
}
