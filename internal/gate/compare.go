package gate

import (
	"fmt"
	"sort"

	"scoreloop/internal/domain"
)

// Sortable statistics for reports.
var SortKeys = []string{"n", "win_rate", "expectancy", "profit_factor", "confidence", "max_drawdown"}

// Comparison is one bucket evaluated by every policy. Reporting only.
type Comparison struct {
	Stats    domain.BucketStats
	Verdicts []Verdict
}

// Compare evaluates every bucket with every policy, in input order.
func Compare(stats []domain.BucketStats, baseSize float64, policies ...Policy) []Comparison {
	out := make([]Comparison, len(stats))
	for i, s := range stats {
		c := Comparison{Stats: s, Verdicts: make([]Verdict, len(policies))}
		for j, p := range policies {
			c.Verdicts[j] = p.Decide(s, baseSize)
		}
		out[i] = c
	}
	return out
}

// SortComparisons orders rows by stat, highest first. Rows without the
// statistic (profit factor with no losses) go last. Ties break on bucket key.
func SortComparisons(rows []Comparison, stat string) error {
	if !validSortKey(stat) {
		return fmt.Errorf("unknown sort statistic %q", stat)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i].Stats.Stat(stat)
		b, bok := rows[j].Stats.Stat(stat)
		if aok != bok {
			return aok
		}
		if a != b {
			return a > b
		}
		return rows[i].Stats.Key.Less(rows[j].Stats.Key)
	})
	return nil
}

func validSortKey(stat string) bool {
	for _, k := range SortKeys {
		if k == stat {
			return true
		}
	}
	return false
}
