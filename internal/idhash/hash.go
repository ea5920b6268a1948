package idhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Prefix marks content hashes written to artifacts and pointers.
const Prefix = "sha256:"

// Hex returns the hex-encoded SHA256 of data (64 characters).
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Content returns the prefixed content hash of data: "sha256:<hex>".
func Content(data []byte) string {
	return Prefix + Hex(data)
}

// ContentReader streams r through SHA256 and returns the prefixed hash.
func ContentReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON encodes v with object keys sorted at every depth and no
// insignificant whitespace. Numbers are preserved as written.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Signature computes SHA256 over the canonical JSON of fields.
// Returns hex-encoded hash.
func Signature(fields map[string]any) (string, error) {
	b, err := CanonicalJSON(fields)
	if err != nil {
		return "", err
	}
	return Hex(b), nil
}

// ScoreboardID derives a version id from its creation time and content hash.
// Format: sb_<yyyymmddThhmmssZ>_<first 12 hex chars of hash>.
func ScoreboardID(createdAt time.Time, contentHash string) string {
	h := strings.TrimPrefix(contentHash, Prefix)
	if len(h) > 12 {
		h = h[:12]
	}
	return fmt.Sprintf("sb_%s_%s", createdAt.UTC().Format("20060102T150405Z"), h)
}
