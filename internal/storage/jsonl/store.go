// Package jsonl implements the Record Store over newline-delimited JSON files.
package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"scoreloop/internal/domain"
	"scoreloop/internal/idhash"
	"scoreloop/internal/logging"
	"scoreloop/internal/storage"
)

// Default retry budget for file-busy failures during atomic writes.
const (
	DefaultBusyRetries = 5
	DefaultBusyBackoff = 50 * time.Millisecond
)

// Store is a directory of append-only JSONL streams.
type Store struct {
	dir         string
	busyRetries int
	busyBackoff time.Duration
	log         zerolog.Logger

	mu sync.Mutex // serializes appends issued by this process
}

// Option configures a Store.
type Option func(*Store)

// WithBusyRetry sets the bounded retry used when a rename hits a busy file.
func WithBusyRetry(retries int, backoff time.Duration) Option {
	return func(s *Store) {
		s.busyRetries = retries
		s.busyBackoff = backoff
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:         dir,
		busyRetries: DefaultBusyRetries,
		busyBackoff: DefaultBusyBackoff,
		log:         logging.For("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path resolves a stream name. Absolute names are used as-is.
func (s *Store) Path(stream string) string {
	if filepath.IsAbs(stream) {
		return stream
	}
	return filepath.Join(s.dir, stream)
}

// Exists reports whether the stream file exists.
func (s *Store) Exists(stream string) bool {
	_, err := os.Stat(s.Path(stream))
	return err == nil
}

// Append marshals v and appends it as one line.
func (s *Store) Append(stream string, v any) storage.Result {
	line, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Str("stream", stream).Str("op", "append").Msg("encode failed")
		return storage.Failed(domain.KindMalformedRecord, fmt.Errorf("encode record: %w", err))
	}
	return s.AppendRaw(stream, line)
}

// AppendRaw appends one JSON object. The line must not contain a newline.
// The record and its terminator go out in a single write on an O_APPEND
// descriptor, so a crash leaves at most one partial trailing line. A stream
// whose last byte is not a newline gets one first, so a torn tail from an
// earlier crash never swallows the new record.
func (s *Store) AppendRaw(stream string, line []byte) storage.Result {
	line = bytes.TrimRight(line, "\r\n")
	if bytes.IndexByte(line, '\n') >= 0 || !isObject(line) {
		return storage.Failed(domain.KindMalformedRecord,
			fmt.Errorf("%w: append requires a single-line JSON object", storage.ErrInvalidInput))
	}

	path := s.Path(stream)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return s.ioFailure(stream, path, "append", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return s.ioFailure(stream, path, "append", err)
	}

	torn, err := endsTorn(f)
	if err != nil {
		f.Close()
		return s.ioFailure(stream, path, "append", err)
	}
	buf := make([]byte, 0, len(line)+2)
	if torn {
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	n, werr := f.Write(buf)
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if werr != nil {
		return s.ioFailure(stream, path, "append", werr)
	}
	if cerr != nil {
		return s.ioFailure(stream, path, "append", cerr)
	}
	if torn {
		s.log.Warn().Str("stream", stream).Str("path", path).Msg("terminated torn trailing line before append")
	}
	return storage.Result{OK: true, Bytes: n}
}

// endsTorn reports whether a non-empty file lacks a trailing newline.
func endsTorn(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Scan returns a lazy scanner over the stream. Each call starts from the
// beginning of the file.
func (s *Store) Scan(stream string) *Scanner {
	return &Scanner{stream: stream, path: s.Path(stream)}
}

// ReadAll reads every parseable record in file order.
func (s *Store) ReadAll(stream string) ([]storage.Record, storage.ScanStats, error) {
	sc := s.Scan(stream)
	defer sc.Close()

	var out []storage.Record
	for sc.Next() {
		out = append(out, sc.Record())
	}
	if err := sc.Err(); err != nil {
		s.log.Error().Err(err).Str("stream", stream).Str("op", "read").Msg("scan failed")
		return nil, sc.Stats(), err
	}
	return out, sc.Stats(), nil
}

// ReadTail reads the last maxBytes of the stream and returns at most
// maxLines records from it. A partial line at the start of the window is
// discarded. LineNo counts from the start of the window.
// maxBytes <= 0 reads the whole file; maxLines <= 0 keeps every record.
func (s *Store) ReadTail(stream string, maxBytes int64, maxLines int) ([]storage.Record, storage.ScanStats, error) {
	path := s.Path(stream)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ScanStats{}, nil
		}
		return nil, storage.ScanStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, storage.ScanStats{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var offset int64
	if maxBytes > 0 && info.Size() > maxBytes {
		offset = info.Size() - maxBytes
	}
	window := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(window, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, storage.ScanStats{}, fmt.Errorf("read %s: %w", path, err)
	}

	if offset > 0 {
		// Unless the byte before the window is a newline, the first line is partial.
		prev := make([]byte, 1)
		if _, err := f.ReadAt(prev, offset-1); err != nil {
			return nil, storage.ScanStats{}, fmt.Errorf("read %s: %w", path, err)
		}
		if prev[0] != '\n' {
			i := bytes.IndexByte(window, '\n')
			if i < 0 {
				return nil, storage.ScanStats{}, nil
			}
			window = window[i+1:]
		}
	}

	sc := newScanner(stream, bytes.NewReader(window))
	var out []storage.Record
	for sc.Next() {
		out = append(out, sc.Record())
	}
	if maxLines > 0 && len(out) > maxLines {
		out = out[len(out)-maxLines:]
	}
	return out, sc.Stats(), sc.Err()
}

// WriteStream atomically replaces a derived stream with lines.
// Re-running the producer with the same input yields a byte-identical file.
func (s *Store) WriteStream(stream string, lines [][]byte) storage.Result {
	var buf bytes.Buffer
	for _, l := range lines {
		l = bytes.TrimRight(l, "\r\n")
		if bytes.IndexByte(l, '\n') >= 0 {
			return storage.Failed(domain.KindMalformedRecord,
				fmt.Errorf("%w: stream line contains newline", storage.ErrInvalidInput))
		}
		buf.Write(l)
		buf.WriteByte('\n')
	}
	path := s.Path(stream)
	if err := s.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return s.ioFailure(stream, path, "write_stream", err)
	}
	return storage.Result{OK: true, Bytes: buf.Len()}
}

// Hash returns the prefixed sha256 of the stream's bytes.
// A missing stream returns storage.ErrNotFound.
func (s *Store) Hash(stream string) (string, error) {
	f, err := os.Open(s.Path(stream))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", stream, storage.ErrNotFound)
		}
		return "", err
	}
	defer f.Close()
	return idhash.ContentReader(f)
}

func (s *Store) ioFailure(stream, path, op string, err error) storage.Result {
	s.log.Warn().Err(err).Str("stream", stream).Str("path", path).Str("op", op).Msg("record store write failed")
	return storage.Failed(domain.KindIOFailure, err)
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && gjson.ValidBytes(b)
}

var _ storage.RecordStore = (*Store)(nil)
