// Package determinism checks that the decision ledger never holds two
// different decisions for the same trade.
package determinism

import (
	"sort"

	"scoreloop/internal/extract"
	"scoreloop/internal/storage"
)

// Sample caps.
const (
	MaxSamples        = 10
	MaxExamplesPerKey = 3
)

// Key identifies one trade's decisions.
type Key struct {
	AccountLabel string `json:"account_label"`
	TradeID      string `json:"trade_id"`
}

// Example is a compact view of one row in a conflict sample.
type Example struct {
	Line           int    `json:"line"`
	TsMs           int64  `json:"ts_ms"`
	Allow          any    `json:"allow"`
	DecisionCode   string `json:"decision_code"`
	SizeMultiplier any    `json:"size_multiplier"`
	SnapshotID     string `json:"snapshot_id,omitempty"`
	PolicySig      string `json:"policy_sig"`
}

// Sample describes one duplicated key.
type Sample struct {
	Key          Key       `json:"key"`
	Count        int       `json:"count"`
	PolicySigs   int       `json:"policy_signatures"`
	SnapshotSigs int       `json:"snapshot_signatures"`
	Examples     []Example `json:"examples,omitempty"`
}

// Report is the result of a ledger verification.
type Report struct {
	RowsIn                    int `json:"rows_in"`
	MissingKeyRows            int `json:"missing_key_rows"`
	UnsignableRows            int `json:"unsignable_rows"`
	UniqueKeys                int `json:"unique_keys"`
	DupeKeys                  int `json:"dupe_keys"`
	PureDupeKeys              int `json:"pure_dupe_keys"`
	BenignSnapshotVariantKeys int `json:"benign_snapshot_variant_keys"`
	TrueConflictKeys          int `json:"true_conflict_keys"`
	MaxDupeCount              int `json:"max_dupe_count"`

	TrueConflictsSample  []Sample `json:"true_conflicts_sample"`
	BenignVariantsSample []Sample `json:"benign_variants_sample"`

	// Deduped holds the latest row of every non-conflicting key, ordered by
	// (timestamp, line). Conflicting keys are left out.
	Deduped []storage.Record `json:"-"`
}

// Pass reports whether the ledger is free of true conflicts.
func (r *Report) Pass() bool {
	return r.TrueConflictKeys == 0
}

// Guard verifies decision ledgers.
type Guard struct{}

// NewGuard returns a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

type row struct {
	rec     storage.Record
	ts      int64
	polSig  string
	snapSig string
}

type group struct {
	key  Key
	rows []row
}

// Verify groups records by (account_label, trade_id) and classifies each
// duplicated key as a pure duplicate, a benign snapshot variant or a true
// conflict. Rows without both key parts are counted and excluded.
func (g *Guard) Verify(records []storage.Record) *Report {
	rep := &Report{
		RowsIn:               len(records),
		MaxDupeCount:         1,
		TrueConflictsSample:  []Sample{},
		BenignVariantsSample: []Sample{},
	}

	var groups []*group
	byKey := make(map[Key]*group)
	for _, rec := range records {
		k := Key{
			AccountLabel: extract.Account.String(rec.Raw),
			TradeID:      extract.TradeID.String(rec.Raw),
		}
		if k.AccountLabel == "" || k.TradeID == "" {
			rep.MissingKeyRows++
			continue
		}
		pol, err := PolicySignature(rec.Raw)
		if err != nil {
			rep.UnsignableRows++
			continue
		}
		snap, err := SnapshotSignature(rec.Raw)
		if err != nil {
			rep.UnsignableRows++
			continue
		}
		ts, _ := extract.TimestampMs(rec.Raw)

		gr, ok := byKey[k]
		if !ok {
			gr = &group{key: k}
			byKey[k] = gr
			groups = append(groups, gr)
		}
		gr.rows = append(gr.rows, row{rec: rec, ts: ts, polSig: pol, snapSig: snap})
	}

	rep.UniqueKeys = len(groups)
	var latest []row

	for _, gr := range groups {
		n := len(gr.rows)
		if n > rep.MaxDupeCount {
			rep.MaxDupeCount = n
		}
		if n == 1 {
			latest = append(latest, gr.rows[0])
			continue
		}
		rep.DupeKeys++

		polSigs := distinct(gr.rows, func(r row) string { return r.polSig })
		snapSigs := distinct(gr.rows, func(r row) string { return r.snapSig })

		switch {
		case polSigs > 1:
			rep.TrueConflictKeys++
			if len(rep.TrueConflictsSample) < MaxSamples {
				rep.TrueConflictsSample = append(rep.TrueConflictsSample, sampleOf(gr, polSigs, snapSigs, true))
			}
			continue
		case snapSigs > 1:
			rep.BenignSnapshotVariantKeys++
			if len(rep.BenignVariantsSample) < MaxSamples {
				rep.BenignVariantsSample = append(rep.BenignVariantsSample, sampleOf(gr, polSigs, snapSigs, false))
			}
		default:
			rep.PureDupeKeys++
		}
		latest = append(latest, newest(gr.rows))
	}

	sort.SliceStable(latest, func(i, j int) bool {
		if latest[i].ts != latest[j].ts {
			return latest[i].ts < latest[j].ts
		}
		return latest[i].rec.LineNo < latest[j].rec.LineNo
	})
	rep.Deduped = make([]storage.Record, len(latest))
	for i, r := range latest {
		rep.Deduped[i] = r.rec
	}
	return rep
}

// newest returns the row with the greatest (timestamp, line).
func newest(rows []row) row {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.ts > best.ts || (r.ts == best.ts && r.rec.LineNo > best.rec.LineNo) {
			best = r
		}
	}
	return best
}

func distinct(rows []row, f func(row) string) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[f(r)] = struct{}{}
	}
	return len(seen)
}

func sampleOf(gr *group, polSigs, snapSigs int, withExamples bool) Sample {
	s := Sample{Key: gr.key, Count: len(gr.rows), PolicySigs: polSigs, SnapshotSigs: snapSigs}
	if !withExamples {
		return s
	}
	for i, r := range gr.rows {
		if i == MaxExamplesPerKey {
			break
		}
		s.Examples = append(s.Examples, Example{
			Line:           r.rec.LineNo,
			TsMs:           r.ts,
			Allow:          r.rec.Get("allow").Value(),
			DecisionCode:   r.rec.Str("decision_code"),
			SizeMultiplier: r.rec.Get("size_multiplier").Value(),
			SnapshotID:     r.rec.Str("snapshot_id"),
			PolicySig:      r.polSig[:12],
		})
	}
	return s
}
