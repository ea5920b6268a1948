package postgres

import (
	"context"
	"fmt"
	"time"

	"scoreloop/internal/domain"
	"scoreloop/internal/storage"
)

// SnapshotMirror implements storage.SnapshotMirror using PostgreSQL.
type SnapshotMirror struct {
	pool *Pool
}

// NewSnapshotMirror creates a new SnapshotMirror.
func NewSnapshotMirror(pool *Pool) *SnapshotMirror {
	return &SnapshotMirror{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotMirror = (*SnapshotMirror)(nil)

// Publish inserts the snapshot row and its bucket rows in one transaction.
// A snapshot id already present is left untouched.
func (m *SnapshotMirror) Publish(ctx context.Context, id string, snap *domain.ScoreboardSnapshot, ptr *domain.SnapshotPointer) error {
	if snap == nil || ptr == nil || id == "" {
		return storage.ErrInvalidInput
	}
	generatedAt, err := time.Parse(time.RFC3339, snap.GeneratedAt)
	if err != nil {
		return fmt.Errorf("parse generated_at: %w", err)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO scoreboard_snapshots (
			scoreboard_id, hash, schema_version, generated_at, policy,
			min_n, min_conf, source, input_hash, bucket_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (scoreboard_id) DO NOTHING
	`,
		id, ptr.Hash, snap.SchemaVersion, generatedAt, snap.Policy,
		snap.MinN, snap.MinConf, snap.Source, snap.InputHash, len(snap.Buckets),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	query := `
		INSERT INTO scoreboard_buckets (
			scoreboard_id, setup_type, symbol, timeframe,
			n, wins, losses, win_rate, expectancy, median_pnl, total_pnl,
			profit_factor, max_dd_proxy, mean_r, confidence, sufficient,
			recommended_action, action, size_multiplier
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19
		)
		ON CONFLICT DO NOTHING
	`
	for _, b := range snap.Buckets {
		_, err := tx.Exec(ctx, query,
			id, b.Key.SetupType, b.Key.Symbol, b.Key.Timeframe,
			b.N, b.Wins, b.Losses, b.WinRate, b.Expectancy, b.MedianPnl, b.TotalPnl,
			b.ProfitFactor, b.MaxDDProxy, b.MeanR, b.Confidence, b.Sufficient,
			b.RecommendedAction, string(b.Action), b.SizeMultiplier,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bucket %s: %w", b.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetCurrent returns the most recently published snapshot as a pointer.
func (m *SnapshotMirror) GetCurrent(ctx context.Context) (*domain.SnapshotPointer, error) {
	var (
		ptr         domain.SnapshotPointer
		generatedAt time.Time
	)
	err := m.pool.QueryRow(ctx, `
		SELECT scoreboard_id, hash, generated_at
		FROM scoreboard_snapshots
		ORDER BY published_at DESC, scoreboard_id DESC
		LIMIT 1
	`).Scan(&ptr.Current, &ptr.Hash, &generatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get current snapshot: %w", err)
	}
	ptr.GeneratedAt = generatedAt.UTC().Format(time.RFC3339)
	return &ptr, nil
}

// GetBuckets returns the published bucket rows of one snapshot, ordered by key.
func (m *SnapshotMirror) GetBuckets(ctx context.Context, id string) ([]domain.BucketStats, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT setup_type, symbol, timeframe,
			n, wins, losses, win_rate, expectancy, median_pnl, total_pnl,
			profit_factor, max_dd_proxy, mean_r, confidence, sufficient,
			recommended_action, action, size_multiplier
		FROM scoreboard_buckets
		WHERE scoreboard_id = $1
		ORDER BY setup_type, symbol, timeframe
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.BucketStats
	for rows.Next() {
		var (
			b      domain.BucketStats
			action string
		)
		if err := rows.Scan(
			&b.Key.SetupType, &b.Key.Symbol, &b.Key.Timeframe,
			&b.N, &b.Wins, &b.Losses, &b.WinRate, &b.Expectancy, &b.MedianPnl, &b.TotalPnl,
			&b.ProfitFactor, &b.MaxDDProxy, &b.MeanR, &b.Confidence, &b.Sufficient,
			&b.RecommendedAction, &action, &b.SizeMultiplier,
		); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		b.Action = domain.Action(action)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return out, nil
}
