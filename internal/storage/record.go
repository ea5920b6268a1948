package storage

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"scoreloop/internal/domain"
)

// Record is one parsed line of a stream. Raw is the line exactly as stored,
// without the trailing newline.
type Record struct {
	Stream string
	LineNo int
	Raw    []byte
}

// Get returns the value at a gjson path.
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Str returns the string at path, or "" when absent or null.
func (r Record) Str(path string) string {
	v := gjson.GetBytes(r.Raw, path)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

// ScanStats counts what a read saw. Parsed + Malformed + Truncated + Blank == Lines.
type ScanStats struct {
	Lines     int `json:"lines"`
	Parsed    int `json:"parsed"`
	Malformed int `json:"malformed"`
	Truncated int `json:"truncated"`
	Blank     int `json:"blank"`
}

// Skipped is the number of non-blank lines that could not be used.
func (s ScanStats) Skipped() int {
	return s.Malformed + s.Truncated
}

// Result is the outcome of a single write. Writers never panic; callers
// decide whether a failed Result aborts the run or is counted.
type Result struct {
	OK    bool
	Kind  domain.ErrorKind
	Err   error
	Bytes int
}

// Failed builds a failed Result.
func Failed(kind domain.ErrorKind, err error) Result {
	return Result{Kind: kind, Err: err}
}

// EncodeLines marshals each value onto its own line, ready for WriteStream.
func EncodeLines[T any](values []T) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
