// Package snapshot versions scoreboard outputs as immutable, content-hashed
// artifacts behind a single atomically replaced pointer and a hash-chained
// audit log.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scoreloop/internal/contract"
	"scoreloop/internal/domain"
	"scoreloop/internal/idhash"
	"scoreloop/internal/logging"
	"scoreloop/internal/storage"
)

// File names inside the scoreboard directory.
const (
	VersionsDir = "versions"
	PointerFile = "current.json"
	AuditStream = "audit.log.jsonl"
)

var (
	// ErrNoCurrent is returned when no snapshot has been committed.
	ErrNoCurrent = errors.New("no current snapshot")

	// ErrHashMismatch is returned when an artifact's bytes do not match the
	// hash its pointer recorded.
	ErrHashMismatch = errors.New("snapshot hash mismatch")
)

// Files is the storage the versioner needs: streams for the audit log plus
// atomic and no-overwrite file writes for artifacts and the pointer.
type Files interface {
	storage.RecordStore
	WriteFileAtomic(path string, data []byte) error
	WriteFileExclusive(path string, data []byte) error
}

// Versioner commits and reads scoreboard snapshots under one directory.
type Versioner struct {
	files Files
	dir   string
	clock func() time.Time
	code  domain.CodeIdentity
	log   zerolog.Logger
}

// Option configures a Versioner.
type Option func(*Versioner)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(v *Versioner) {
		v.clock = clock
	}
}

// WithCodeIdentity sets the code identity written to snapshot metadata.
func WithCodeIdentity(code domain.CodeIdentity) Option {
	return func(v *Versioner) {
		v.code = code
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Versioner) {
		v.log = log
	}
}

// NewVersioner returns a versioner for dir, a path relative to the store root.
func NewVersioner(files Files, dir string, opts ...Option) *Versioner {
	v := &Versioner{
		files: files,
		dir:   dir,
		clock: time.Now,
		code:  domain.CodeIdentity{Tool: "snapshot", Module: "scoreloop"},
		log:   logging.For("snapshot"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CommitInput is one aggregation run to be versioned.
type CommitInput struct {
	Buckets   []domain.BucketStats
	MinN      int
	MinConf   float64
	Policy    string
	InputPath string
	InputHash string
	Trigger   string
}

// CommitResult describes a committed version.
type CommitResult struct {
	ID       string
	Hash     string
	RunID    string
	Path     string
	Snapshot *domain.ScoreboardSnapshot
	Pointer  domain.SnapshotPointer
	Audit    domain.AuditEntry
}

// Commit writes the artifact and its metadata under new names, then flips
// the pointer, then appends the audit entry. A crash between steps leaves
// an artifact nothing points to, which readers ignore.
func (v *Versioner) Commit(ctx context.Context, in CommitInput) (*CommitResult, error) {
	trigger := in.Trigger
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	createdAt := v.clock().UTC().Truncate(time.Second)
	generatedAt := createdAt.Format(time.RFC3339)

	buckets := in.Buckets
	if buckets == nil {
		buckets = []domain.BucketStats{}
	}
	snap := &domain.ScoreboardSnapshot{
		SchemaVersion: domain.ScoreboardSchemaV1,
		GeneratedAt:   generatedAt,
		MinN:          in.MinN,
		MinConf:       in.MinConf,
		Policy:        in.Policy,
		Source:        in.InputPath,
		InputHash:     in.InputHash,
		Buckets:       buckets,
	}
	data, err := encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := contract.ValidateSnapshot(data); err != nil {
		return nil, fmt.Errorf("refusing invalid snapshot: %w", err)
	}

	hash := idhash.Content(data)
	id := idhash.ScoreboardID(createdAt, hash)
	runID := uuid.NewString()
	artifact := v.path(VersionsDir, id+".json")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := v.writeOnce(artifact, data); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", id, err)
	}

	meta := domain.SnapshotMeta{
		ScoreboardID: id,
		CreatedAt:    generatedAt,
		RunID:        runID,
		Inputs:       domain.SnapshotInputs{OutcomesFile: in.InputPath, OutcomesHash: in.InputHash},
		Code:         v.code,
		Hashes:       domain.SnapshotHashes{Scoreboard: hash},
	}
	metaData, err := encode(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	// Same id means byte-identical content; the first run's meta stands.
	err = v.files.WriteFileExclusive(v.path(VersionsDir, id+".meta.json"), metaData)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("write meta %s: %w", id, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ptr := domain.SnapshotPointer{Current: id, Hash: hash, GeneratedAt: generatedAt}
	ptrData, err := encode(ptr)
	if err != nil {
		return nil, fmt.Errorf("encode pointer: %w", err)
	}
	if err := v.files.WriteFileAtomic(v.path(PointerFile), ptrData); err != nil {
		return nil, fmt.Errorf("flip pointer to %s: %w", id, err)
	}

	entry, err := v.appendAudit(domain.AuditEntry{
		Ts:           v.clock().UTC().Format(time.RFC3339),
		Event:        domain.AuditEventGenerated,
		ScoreboardID: id,
		Hash:         hash,
		Trigger:      trigger,
		RunID:        runID,
	})
	if err != nil {
		return nil, fmt.Errorf("append audit for %s: %w", id, err)
	}

	v.log.Info().
		Str("scoreboard_id", id).
		Str("hash", hash).
		Int("buckets", len(buckets)).
		Str("trigger", trigger).
		Msg("snapshot committed")

	return &CommitResult{
		ID:       id,
		Hash:     hash,
		RunID:    runID,
		Path:     artifact,
		Snapshot: snap,
		Pointer:  ptr,
		Audit:    entry,
	}, nil
}

// Current reads the pointer once, then the artifact it names, and checks
// the artifact's hash and contract.
func (v *Versioner) Current(ctx context.Context) (*domain.ScoreboardSnapshot, *domain.SnapshotPointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ptr, err := v.readPointer()
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(v.path(VersionsDir, ptr.Current+".json"))
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact %s: %w", ptr.Current, err)
	}
	if got := idhash.Content(data); got != ptr.Hash {
		return nil, nil, fmt.Errorf("%w: %s has %s, pointer says %s", ErrHashMismatch, ptr.Current, got, ptr.Hash)
	}
	if err := contract.ValidateSnapshot(data); err != nil {
		return nil, nil, fmt.Errorf("artifact %s: %w", ptr.Current, err)
	}
	var snap domain.ScoreboardSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode artifact %s: %w", ptr.Current, err)
	}
	return &snap, ptr, nil
}

func (v *Versioner) readPointer() (*domain.SnapshotPointer, error) {
	data, err := os.ReadFile(v.path(PointerFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCurrent
		}
		return nil, fmt.Errorf("read pointer: %w", err)
	}
	var ptr domain.SnapshotPointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return nil, fmt.Errorf("decode pointer: %w", err)
	}
	if ptr.Current == "" {
		return nil, ErrNoCurrent
	}
	return &ptr, nil
}

// writeOnce creates p with data. An existing file with identical bytes is
// accepted; anything else already at p is an error.
func (v *Versioner) writeOnce(p string, data []byte) error {
	err := v.files.WriteFileExclusive(p, data)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	existing, rerr := os.ReadFile(p)
	if rerr != nil {
		return rerr
	}
	if idhash.Content(existing) != idhash.Content(data) {
		return err
	}
	return nil
}

func (v *Versioner) path(elem ...string) string {
	return v.files.Path(path.Join(append([]string{v.dir}, elem...)...))
}

func (v *Versioner) stream(name string) string {
	return path.Join(v.dir, name)
}

func encode(x any) ([]byte, error) {
	b, err := json.MarshalIndent(x, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
