package clickhouse

import (
	"context"
	"fmt"

	"scoreloop/internal/domain"
	"scoreloop/internal/storage"
)

// TrainableStore implements storage.TrainableMirror using ClickHouse.
type TrainableStore struct {
	conn *Conn
}

// NewTrainableStore creates a new TrainableStore.
func NewTrainableStore(conn *Conn) *TrainableStore {
	return &TrainableStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TrainableMirror = (*TrainableStore)(nil)

// InsertBulk writes one run's trainable set as a single batch.
// Returns ErrDuplicateKey if runID was already inserted.
func (s *TrainableStore) InsertBulk(ctx context.Context, runID string, rows []domain.EnrichedOutcome) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trainable_outcomes (
			run_id, trade_id, account_label,
			setup_type, symbol, timeframe, side,
			opened_ts_ms, closed_ts_ms, pnl_usd, fees_usd,
			risk_usd, r_multiple, win, source_line
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range rows {
		err = batch.Append(
			runID, o.TradeID, o.AccountLabel,
			o.SetupType, o.Symbol, o.Timeframe, o.Side,
			o.OpenedTsMs, o.ClosedTsMs, o.PnlUSD, o.FeesUSD,
			o.RiskUSD, o.RMultiple, winFlag(o.Win), uint32(o.SourceLine),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountByBucket returns row counts per bucket key for one run.
func (s *TrainableStore) CountByBucket(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT setup_type, symbol, timeframe, count() AS n
		FROM trainable_outcomes FINAL
		WHERE run_id = ?
		GROUP BY setup_type, symbol, timeframe
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key domain.BucketKey
			n   uint64
		)
		if err := rows.Scan(&key.SetupType, &key.Symbol, &key.Timeframe, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[key.String()] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return out, nil
}

func (s *TrainableStore) exists(ctx context.Context, runID string) (bool, error) {
	var n uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM trainable_outcomes WHERE run_id = ?`, runID)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func winFlag(w *bool) *uint8 {
	if w == nil {
		return nil
	}
	var v uint8
	if *w {
		v = 1
	}
	return &v
}
