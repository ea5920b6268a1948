// Package join attaches setup context to canonical outcomes and produces the
// trainable set.
package join

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"scoreloop/internal/domain"
	"scoreloop/internal/extract"
	"scoreloop/internal/storage"
)

// Reject reasons, in the order the checks run.
const (
	ReasonMissingTradeID       = "missing_trade_id"
	ReasonBadTradePrefix       = "bad_trade_prefix"
	ReasonOrphan               = "orphan_no_setup_context"
	ReasonEmptySymbol          = "empty_symbol_after_repair"
	ReasonEmptyTimeframe       = "empty_timeframe_after_repair"
	ReasonBadSetupType         = "bad_setup_type"
	ReasonInconsistentEnriched = "inconsistent_enrichment"
	ReasonNonNumericPnl        = "non_numeric_pnl"
	ReasonNonNumericFees       = "non_numeric_fees"
)

// Defaults for Options.
var (
	DefaultBadTradePrefixes      = []string{"PIPE_", "TEST_", "THIS_IS_NOT_REAL"}
	DefaultPlaceholderSetupTypes = []string{"unknown", "test_manual", "manual_test"}
)

// Options configures the joiner's hard filters.
type Options struct {
	Cutover               *time.Time
	BadTradePrefixes      []string
	PlaceholderSetupTypes []string
}

// Counts summarizes one join run.
type Counts struct {
	OutcomesTotal  int
	Joined         int
	Orphans        int
	RepairedFields int
	TrainableFinal int
	Rejected       map[string]int
}

// Result is the output of one join run. Trainable keeps input order.
type Result struct {
	Trainable []domain.EnrichedOutcome
	Orphans   []storage.Record
	Rejects   []domain.Reject
	Counts    Counts
	Cutover   CutoverFilter
}

// Joiner joins canonical outcomes to setup contexts.
type Joiner struct {
	cutover      CutoverFilter
	prefixes     []string
	placeholders map[string]bool
}

// NewJoiner builds a joiner. Nil option slices take the defaults.
func NewJoiner(opts Options) *Joiner {
	prefixes := opts.BadTradePrefixes
	if prefixes == nil {
		prefixes = DefaultBadTradePrefixes
	}
	types := opts.PlaceholderSetupTypes
	if types == nil {
		types = DefaultPlaceholderSetupTypes
	}
	placeholders := map[string]bool{"": true}
	for _, t := range types {
		placeholders[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Joiner{
		cutover:      NewCutoverFilter(opts.Cutover),
		prefixes:     prefixes,
		placeholders: placeholders,
	}
}

// Join processes outcomes in order against the index.
func (j *Joiner) Join(outcomes []storage.Record, ix *Index) *Result {
	res := &Result{
		Counts:  Counts{Rejected: make(map[string]int)},
		Cutover: j.cutover,
	}

	for _, rec := range outcomes {
		res.Counts.OutcomesTotal++

		if reason, detail := j.cutover.Check(rec.Raw); reason != "" {
			res.reject(rec, reason, domain.KindFiltered, detail)
			continue
		}

		tradeID := extract.TradeID.String(rec.Raw)
		if tradeID == "" {
			res.reject(rec, ReasonMissingTradeID, domain.KindMissingRequiredField, nil)
			continue
		}
		if j.badPrefix(tradeID) {
			res.reject(rec, ReasonBadTradePrefix, domain.KindPlaceholderValue, nil)
			continue
		}

		sc, ok := ix.Lookup(tradeID)
		if !ok {
			res.Orphans = append(res.Orphans, rec)
			res.Counts.Orphans++
			res.Counts.Rejected[ReasonOrphan]++
			continue
		}
		res.Counts.Joined++

		// NaN, infinities and unparseable strings are never read as zero.
		if _, ok := extract.Pnl.Float(rec.Raw); !ok {
			res.reject(rec, ReasonNonNumericPnl, domain.KindMalformedRecord,
				map[string]any{"pnl_usd": extract.Pnl.String(rec.Raw)})
			continue
		}
		if _, ok := extract.Fees.Float(rec.Raw); !ok && extract.Fees.Present(rec.Raw) {
			res.reject(rec, ReasonNonNumericFees, domain.KindMalformedRecord,
				map[string]any{"fees_usd": extract.Fees.String(rec.Raw)})
			continue
		}

		eo := enrich(rec, tradeID, sc)
		res.Counts.RepairedFields += len(eo.RepairedFields)

		scDetail := map[string]any{"setup_context_line": sc.LineNo}
		switch {
		case eo.Symbol == "":
			res.reject(rec, ReasonEmptySymbol, domain.KindMissingRequiredField, scDetail)
			continue
		case eo.Timeframe == "" || isPlaceholder(eo.Timeframe):
			res.reject(rec, ReasonEmptyTimeframe, domain.KindMissingRequiredField, scDetail)
			continue
		case j.placeholders[strings.ToLower(eo.SetupType)]:
			scDetail["setup_type"] = eo.SetupType
			res.reject(rec, ReasonBadSetupType, domain.KindPlaceholderValue, scDetail)
			continue
		}
		if err := eo.Validate(); err != nil {
			res.reject(rec, ReasonInconsistentEnriched, domain.KindMalformedRecord, map[string]any{"error": err.Error()})
			continue
		}

		res.Trainable = append(res.Trainable, eo)
		res.Counts.TrainableFinal++
	}
	return res
}

func (j *Joiner) badPrefix(tradeID string) bool {
	for _, p := range j.prefixes {
		if p != "" && strings.HasPrefix(tradeID, p) {
			return true
		}
	}
	return false
}

// enrich builds the enriched outcome. The outcome's own symbol, timeframe and
// setup type win unless empty or a placeholder; the context fills the rest.
func enrich(rec storage.Record, tradeID string, sc *domain.SetupContext) domain.EnrichedOutcome {
	raw := rec.Raw
	eo := domain.EnrichedOutcome{
		SchemaVersion:      extract.SchemaVersion.String(raw),
		EventType:          domain.EventTypeOutcomeEnriched,
		TradeID:            tradeID,
		ClientTradeID:      extract.ClientTradeID.String(raw),
		Symbol:             extract.Symbol.Upper(raw),
		Timeframe:          extract.Timeframe.String(raw),
		SetupType:          extract.SetupType.String(raw),
		Side:               extract.Side.String(raw),
		CloseReason:        extract.CloseReason.String(raw),
		MemoryFingerprint:  sc.MemoryFingerprint,
		JoinedSetupContext: true,
		SourceLine:         rec.LineNo,
	}
	eo.OpenedTsMs, _ = extract.OpenedTs.Int(raw)
	eo.ClosedTsMs, _ = extract.ClosedTs.Int(raw)
	eo.PnlUSD, _ = extract.Pnl.Float(raw)
	eo.FeesUSD, _ = extract.Fees.Float(raw)

	eo.AccountLabel = sc.AccountLabel
	if eo.AccountLabel == "" {
		eo.AccountLabel = extract.Account.String(raw)
	}

	if (eo.Symbol == "" || isPlaceholder(eo.Symbol)) && sc.Symbol != "" {
		eo.Symbol = sc.Symbol
		eo.RepairedFields = append(eo.RepairedFields, "symbol")
	}
	if (eo.Timeframe == "" || isPlaceholder(eo.Timeframe)) && sc.Timeframe != "" {
		eo.Timeframe = sc.Timeframe
		eo.RepairedFields = append(eo.RepairedFields, "timeframe")
	}
	if (eo.SetupType == "" || isPlaceholder(eo.SetupType)) && sc.SetupType != "" {
		eo.SetupType = sc.SetupType
		eo.RepairedFields = append(eo.RepairedFields, "setup_type")
	}
	if isPlaceholder(eo.Symbol) {
		eo.Symbol = ""
	}

	if sc.RiskUSD != nil {
		risk := *sc.RiskUSD
		eo.RiskUSD = &risk
		if r, ok := rMultiple(eo.PnlUSD, risk); ok {
			win := r > 0
			eo.RMultiple = &r
			eo.Win = &win
		}
	}
	return eo
}

// rMultiple is pnl/risk in decimal arithmetic. Undefined for zero risk.
func rMultiple(pnl, risk float64) (float64, bool) {
	d := decimal.NewFromFloat(risk)
	if d.IsZero() {
		return 0, false
	}
	r, _ := decimal.NewFromFloat(pnl).Div(d).Round(12).Float64()
	return r, true
}

func (r *Result) reject(rec storage.Record, reason string, kind domain.ErrorKind, detail map[string]any) {
	r.Rejects = append(r.Rejects, domain.Reject{
		Reason: reason,
		Kind:   kind,
		Detail: detail,
		Source: domain.RejectSource{Stream: rec.Stream, LineNo: rec.LineNo},
		Row:    json.RawMessage(rec.Raw),
	})
	r.Counts.Rejected[reason]++
}

// TrainableLines encodes the trainable set for WriteStream.
func (r *Result) TrainableLines() ([][]byte, error) {
	return storage.EncodeLines(r.Trainable)
}

// RejectLines encodes the rejects for WriteStream.
func (r *Result) RejectLines() ([][]byte, error) {
	return storage.EncodeLines(r.Rejects)
}

// OrphanLines returns the orphaned outcomes verbatim.
func (r *Result) OrphanLines() [][]byte {
	out := make([][]byte, len(r.Orphans))
	for i, rec := range r.Orphans {
		out[i] = rec.Raw
	}
	return out
}

// Summary returns the run counts keyed for printing.
func (r *Result) Summary() map[string]int {
	out := map[string]int{
		"outcomes_total":  r.Counts.OutcomesTotal,
		"joined":          r.Counts.Joined,
		"orphans":         r.Counts.Orphans,
		"repaired_fields": r.Counts.RepairedFields,
		"trainable_final": r.Counts.TrainableFinal,
	}
	for reason, n := range r.Counts.Rejected {
		out["rejected_"+reason] = n
	}
	return out
}
