// Package canonical filters raw outcome records down to the canonical
// outcome.v1 contract.
package canonical

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"scoreloop/internal/domain"
	"scoreloop/internal/storage"
)

// Reject reasons.
const (
	ReasonLegacySchema    = "legacy_schema"
	ReasonMissingRequired = "missing_required"
)

// RequiredField is one entry of the outcome.v1 contract. Aliases are the
// accepted key names, checked in order; the field is reported by Name.
type RequiredField struct {
	Name    string
	Aliases []string
}

// Required lists the fields an outcome.v1 record must carry, non-empty.
var Required = []RequiredField{
	{"schema_version", []string{"schema_version"}},
	{"trade_id", []string{"trade_id"}},
	{"account_label", []string{"account_label", "sub_uid"}},
	{"symbol", []string{"symbol"}},
	{"side", []string{"side"}},
	{"entry_ts_ms", []string{"entry_ts_ms"}},
	{"entry_px", []string{"entry_px"}},
	{"entry_qty", []string{"entry_qty"}},
	{"exit_side", []string{"exit_side"}},
	{"exit_ts_ms", []string{"exit_ts_ms"}},
	{"exit_px", []string{"exit_px"}},
	{"exit_qty", []string{"exit_qty"}},
	{"closed_ts_ms", []string{"closed_ts_ms"}},
	{"pnl_usd", []string{"pnl_usd"}},
	{"fees_usd", []string{"fees_usd"}},
}

// Counts summarizes one run.
type Counts struct {
	Read     int
	Kept     int
	Rejected map[string]int // by reason
}

// RejectedTotal sums rejects over all reasons.
func (c Counts) RejectedTotal() int {
	total := 0
	for _, n := range c.Rejected {
		total += n
	}
	return total
}

// Result holds the accepted records (verbatim) and the rejects.
type Result struct {
	Accepted []storage.Record
	Rejects  []domain.Reject
	Counts   Counts
}

// Canonicalize splits records into accepted and rejected. It never
// modifies a record: accepted rows are emitted byte-for-byte as read.
func Canonicalize(records []storage.Record) *Result {
	res := &Result{Counts: Counts{Rejected: make(map[string]int)}}

	for _, rec := range records {
		res.Counts.Read++

		if gjson.GetBytes(rec.Raw, "schema_version").String() != domain.OutcomeSchemaV1 {
			res.reject(rec, ReasonLegacySchema, domain.KindSchemaMismatch, nil)
			continue
		}
		if missing := MissingFields(rec.Raw); len(missing) > 0 {
			res.reject(rec, ReasonMissingRequired, domain.KindMissingRequiredField, missing)
			continue
		}
		res.Accepted = append(res.Accepted, rec)
		res.Counts.Kept++
	}
	return res
}

// MissingFields returns the names of required fields that are absent,
// null, empty strings or empty arrays.
func MissingFields(raw []byte) []string {
	var missing []string
	for _, f := range Required {
		found := false
		for _, alias := range f.Aliases {
			if present(gjson.GetBytes(raw, gjson.Escape(alias))) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func present(v gjson.Result) bool {
	if !v.Exists() {
		return false
	}
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
	}
	return true
}

func (r *Result) reject(rec storage.Record, reason string, kind domain.ErrorKind, missing []string) {
	r.Rejects = append(r.Rejects, domain.Reject{
		Reason:  reason,
		Kind:    kind,
		Missing: missing,
		Source:  domain.RejectSource{Stream: rec.Stream, LineNo: rec.LineNo},
		Row:     json.RawMessage(rec.Raw),
	})
	r.Counts.Rejected[reason]++
}

// AcceptedLines returns the accepted records ready for WriteStream.
func (r *Result) AcceptedLines() [][]byte {
	out := make([][]byte, len(r.Accepted))
	for i, rec := range r.Accepted {
		out[i] = rec.Raw
	}
	return out
}

// RejectLines encodes the rejects ready for WriteStream.
func (r *Result) RejectLines() ([][]byte, error) {
	return storage.EncodeLines(r.Rejects)
}

// Summary returns the run counts keyed for printing.
func (r *Result) Summary() map[string]int {
	out := map[string]int{
		"rows_in":       r.Counts.Read,
		"rows_kept_v1":  r.Counts.Kept,
		"rows_rejected": r.Counts.RejectedTotal(),
	}
	for reason, n := range r.Counts.Rejected {
		out["rejected_"+reason] = n
	}
	return out
}
