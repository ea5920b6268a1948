package domain

// Action is what the rest of the system must do with the next proposal.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionHold  Action = "HOLD"
	ActionBlock Action = "BLOCK"
)

// Decision codes emitted by the gate policies.
const (
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeBlockNeg         = "BLOCK_NEG"
	CodeHoldMoreData     = "HOLD_MORE_DATA"
	CodeHoldLowWinrate   = "HOLD_LOW_WINRATE"
	CodeAllow            = "ALLOW"
	CodeColdStart        = "COLD_START"
	CodeBlock            = "BLOCK"
)

// Decision schema versions. A proposed decision is computed by the gate;
// an enforced decision is the one actually acted on.
const (
	DecisionSchemaProposed = "decision.proposed.v1"
	DecisionSchemaEnforced = "decision.enforced.v1"
)

// DecisionRecord is one gate evaluation. Append-only.
type DecisionRecord struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"`
	TsMs          int64  `json:"ts_ms"`

	TradeID       string `json:"trade_id"`
	ClientTradeID string `json:"client_trade_id,omitempty"`
	AccountLabel  string `json:"account_label"`
	Symbol        string `json:"symbol"`
	Timeframe     string `json:"timeframe"`
	SetupType     string `json:"setup_type"`

	Policy         string  `json:"policy"`
	PolicyHash     string  `json:"policy_hash"`
	DecisionCode   string  `json:"decision_code"`
	Action         Action  `json:"action"`
	Allow          bool    `json:"allow"`
	SizeMultiplier float64 `json:"size_multiplier"`
	Reason         string  `json:"reason"`

	PolicySignature string `json:"policy_signature"`

	SnapshotID   string `json:"snapshot_id,omitempty"`
	SnapshotHash string `json:"snapshot_hash,omitempty"`
}
