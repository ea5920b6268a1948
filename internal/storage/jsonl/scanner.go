package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"scoreloop/internal/storage"
)

// Scanner reads a stream lazily, one record at a time.
//
// Blank lines are skipped. A line that is not a JSON object is counted as
// Malformed and skipped, except the final line of the file when it has no
// terminating newline: that is a write torn by a crash and counts as
// Truncated. Neither stops the scan.
type Scanner struct {
	stream string
	path   string

	closer io.Closer
	r      *bufio.Reader

	rec    storage.Record
	lineNo int
	stats  storage.ScanStats
	err    error
	done   bool
}

func newScanner(stream string, src io.Reader) *Scanner {
	return &Scanner{stream: stream, r: bufio.NewReader(src)}
}

// Next advances to the next parseable record.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	if s.r == nil && !s.open() {
		return false
	}

	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			s.fail(fmt.Errorf("read %s: %w", s.stream, err))
			return false
		}
		if len(line) == 0 {
			s.finish()
			return false
		}
		complete := err == nil

		s.lineNo++
		s.stats.Lines++

		body := bytes.TrimRight(line, "\r\n")
		switch {
		case len(bytes.TrimSpace(body)) == 0:
			s.stats.Blank++
		case !isObject(body):
			if complete {
				s.stats.Malformed++
			} else {
				s.stats.Truncated++
			}
		default:
			s.stats.Parsed++
			raw := make([]byte, len(body))
			copy(raw, body)
			s.rec = storage.Record{Stream: s.stream, LineNo: s.lineNo, Raw: raw}
			return true
		}
		if !complete {
			s.finish()
			return false
		}
	}
}

// Record returns the current record.
func (s *Scanner) Record() storage.Record {
	return s.rec
}

// Stats returns counts for the lines seen so far.
func (s *Scanner) Stats() storage.ScanStats {
	return s.stats
}

// Err returns the first I/O error. Malformed content is never an error.
func (s *Scanner) Err() error {
	return s.err
}

// Close releases the underlying file. Safe to call more than once.
func (s *Scanner) Close() error {
	s.done = true
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

func (s *Scanner) open() bool {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.done = true
			return false
		}
		s.fail(fmt.Errorf("open %s: %w", s.path, err))
		return false
	}
	s.closer = f
	s.r = bufio.NewReader(f)
	return true
}

func (s *Scanner) finish() {
	_ = s.Close()
}

func (s *Scanner) fail(err error) {
	s.err = err
	_ = s.Close()
}
