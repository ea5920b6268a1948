package domain

import "fmt"

// OutcomeSchemaV1 is the only schema tag eligible for canonicalization.
const OutcomeSchemaV1 = "outcome.v1"

// Event types carried on rows written by this module.
const (
	EventTypeSetupContext    = "setup_context"
	EventTypeTradeOutcome    = "trade_outcome"
	EventTypeOutcomeEnriched = "outcome_enriched"
	EventTypeDecision        = "ai_decision"
)

// RawOutcome is the typed view of one closed trade as recorded by the
// execution layer. Money fields stay float64 on the wire; arithmetic on them
// goes through decimal in the joiner.
type RawOutcome struct {
	SchemaVersion string
	TradeID       string
	ClientTradeID string
	AccountLabel  string
	Symbol        string
	Side          string
	Timeframe     string // optional; repaired from setup context
	SetupType     string // optional; repaired from setup context

	EntryTsMs  int64
	ExitTsMs   int64
	ClosedTsMs int64

	EntryPx  float64
	EntryQty float64
	ExitPx   float64
	ExitQty  float64

	PnlUSD      float64
	FeesUSD     float64
	CloseReason string
}

// EnrichedOutcome is a canonical outcome joined to its setup context.
// RiskUSD, RMultiple and Win are either all set or all nil.
type EnrichedOutcome struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"`
	TradeID       string `json:"trade_id"`
	ClientTradeID string `json:"client_trade_id,omitempty"`
	AccountLabel  string `json:"account_label"`
	Symbol        string `json:"symbol"`
	Timeframe     string `json:"timeframe"`
	SetupType     string `json:"setup_type"`
	Side          string `json:"side"`

	OpenedTsMs int64 `json:"opened_ts_ms"`
	ClosedTsMs int64 `json:"closed_ts_ms"`

	PnlUSD      float64 `json:"pnl_usd"`
	FeesUSD     float64 `json:"fees_usd"`
	CloseReason string  `json:"close_reason,omitempty"`

	RiskUSD   *float64 `json:"risk_usd"`
	RMultiple *float64 `json:"r_multiple"`
	Win       *bool    `json:"win"`

	MemoryFingerprint  string   `json:"memory_fingerprint"`
	JoinedSetupContext bool     `json:"joined_setup_context"`
	RepairedFields     []string `json:"repaired_fields,omitempty"`
	SourceLine         int      `json:"source_line"`
}

// Key returns the bucket this outcome aggregates under.
func (e *EnrichedOutcome) Key() BucketKey {
	return BucketKey{SetupType: e.SetupType, Symbol: e.Symbol, Timeframe: e.Timeframe}
}

// Consistent reports whether the win flag agrees with the R-multiple sign.
// Both must be nil together; when set, win == (R > 0).
func (e *EnrichedOutcome) Consistent() bool {
	if e.RMultiple == nil || e.Win == nil {
		return e.RMultiple == nil && e.Win == nil
	}
	return *e.Win == (*e.RMultiple > 0)
}

// Validate returns an error when the outcome breaks the win/R agreement.
func (e *EnrichedOutcome) Validate() error {
	if !e.Consistent() {
		return fmt.Errorf("trade %s: win flag disagrees with r_multiple", e.TradeID)
	}
	return nil
}
