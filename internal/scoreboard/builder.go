// Package scoreboard aggregates trainable outcomes into per-bucket statistics.
package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"scoreloop/internal/domain"
	"scoreloop/internal/gate"
)

// Defaults.
const (
	DefaultMinSampleSize = 10
	DefaultMaxBuckets    = 5000
)

var (
	// ErrTooManyBuckets is returned when grouping yields more buckets than allowed.
	ErrTooManyBuckets = errors.New("too many buckets")

	// ErrNonFinite is returned when a statistic is NaN or infinite.
	ErrNonFinite = errors.New("non-finite statistic")
)

// DevSetupTypes are setup types emitted only by test tooling. Rows carrying
// them never reach a bucket.
var DevSetupTypes = []string{"this_is_not_real", "tick", "emit_test_signal"}

// Builder computes bucket statistics and a recommended action per bucket.
type Builder struct {
	MinSampleSize int
	MaxBuckets    int
	Recommender   gate.Policy
	BaseSize      float64
}

// Result is the aggregation output, sorted by bucket key.
type Result struct {
	Buckets []domain.BucketStats

	RowsIn           int
	RowsUsed         int
	DevDropped       int
	NonFiniteDropped int
}

// CountByAction returns bucket counts per recommended action.
func (r *Result) CountByAction() map[domain.Action]int {
	out := make(map[domain.Action]int)
	for _, b := range r.Buckets {
		out[b.Action]++
	}
	return out
}

type group struct {
	key  domain.BucketKey
	rows []domain.EnrichedOutcome
}

// Build groups rows by bucket key in arrival order and computes each bucket
// concurrently. The output depends only on rows and the builder settings.
func (b *Builder) Build(ctx context.Context, rows []domain.EnrichedOutcome) (*Result, error) {
	if b.Recommender == nil {
		return nil, fmt.Errorf("scoreboard: no recommender policy")
	}
	minN := b.MinSampleSize
	if minN <= 0 {
		minN = DefaultMinSampleSize
	}
	maxBuckets := b.MaxBuckets
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	baseSize := b.BaseSize
	if baseSize <= 0 {
		baseSize = 1.0
	}

	res := &Result{RowsIn: len(rows)}
	var groups []*group
	byKey := make(map[domain.BucketKey]*group)

	for _, r := range rows {
		if isDevSetup(r.SetupType) {
			res.DevDropped++
			continue
		}
		if math.IsNaN(r.PnlUSD) || math.IsInf(r.PnlUSD, 0) {
			res.NonFiniteDropped++
			continue
		}
		k := r.Key()
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
		res.RowsUsed++
	}

	if len(groups) > maxBuckets {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBuckets, len(groups), maxBuckets)
	}

	stats := make([]domain.BucketStats, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			st := computeBucket(g.key, g.rows, minN)
			b.recommend(&st, baseSize)
			if !finite(st) {
				return fmt.Errorf("%w: bucket %s", ErrNonFinite, g.key)
			}
			stats[i] = st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Key.Less(stats[j].Key) })
	res.Buckets = stats
	return res, nil
}

// recommend fills the action fields. Under-sampled buckets always get the
// most conservative code, whatever their statistics say.
func (b *Builder) recommend(st *domain.BucketStats, baseSize float64) {
	if !st.Sufficient {
		st.Confidence = 0
		st.RecommendedAction = domain.CodeInsufficientData
		st.Action = domain.ActionBlock
		st.SizeMultiplier = 0
		return
	}
	v := b.Recommender.Decide(*st, baseSize)
	st.RecommendedAction = v.Code
	st.Action = v.Action
	st.SizeMultiplier = v.SizeMultiplier
}

func isDevSetup(setupType string) bool {
	s := strings.ToLower(strings.TrimSpace(setupType))
	for _, d := range DevSetupTypes {
		if s == d {
			return true
		}
	}
	return false
}
