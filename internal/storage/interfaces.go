package storage

import (
	"context"

	"scoreloop/internal/domain"
)

// RecordStore is the append-only stream store every component reads and
// writes through.
type RecordStore interface {
	// Append marshals v and appends it as one line.
	Append(stream string, v any) Result

	// AppendRaw appends an already-encoded JSON object as one line.
	AppendRaw(stream string, line []byte) Result

	// ReadAll reads every parseable record in file order.
	// A missing stream is empty, not an error.
	ReadAll(stream string) ([]Record, ScanStats, error)

	// ReadTail reads at most maxLines records from the last maxBytes of the stream.
	ReadTail(stream string, maxBytes int64, maxLines int) ([]Record, ScanStats, error)

	// WriteStream atomically replaces a derived stream with lines.
	WriteStream(stream string, lines [][]byte) Result

	// Hash returns the prefixed sha256 of the stream's bytes.
	Hash(stream string) (string, error)

	// Path resolves a stream name to its file path.
	Path(stream string) string
}

// SnapshotMirror publishes committed scoreboard snapshots to a database.
type SnapshotMirror interface {
	// Publish inserts the snapshot and its buckets. Re-publishing the same
	// snapshot id is a no-op.
	Publish(ctx context.Context, id string, snap *domain.ScoreboardSnapshot, ptr *domain.SnapshotPointer) error

	// GetCurrent returns the most recently published pointer.
	// Returns ErrNotFound if nothing has been published.
	GetCurrent(ctx context.Context) (*domain.SnapshotPointer, error)
}

// TrainableMirror copies the trainable outcome set into an analytics store.
type TrainableMirror interface {
	// InsertBulk inserts rows tagged with runID.
	InsertBulk(ctx context.Context, runID string, rows []domain.EnrichedOutcome) error

	// CountByBucket returns row counts per bucket key string for runID.
	CountByBucket(ctx context.Context, runID string) (map[string]int, error)
}
