package domain

// MemoryFingerprintKey must be present in every setup feature bag.
const MemoryFingerprintKey = "memory_fingerprint"

// SetupContext is the signal-time record of a proposed trade.
// One per trade id; immutable once written.
type SetupContext struct {
	TradeID      string
	AccountLabel string
	Symbol       string
	Timeframe    string
	SetupType    string

	// Features is the raw feature bag. RiskUSD is lifted from it when present.
	Features          map[string]any
	RiskUSD           *float64
	MemoryFingerprint string

	LineNo int // source line in the setup_context stream
}
