// Package extract resolves logical fields from records whose shape changed
// over time. Each field has one ordered rule list; the first path that yields
// a usable value wins.
package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Rule is an ordered list of gjson paths for one logical field.
type Rule struct {
	Name  string
	Paths []string
}

// Field rules. Order matters: earlier paths are the newer or more specific shapes.
var (
	TradeID       = Rule{"trade_id", []string{"trade_id", "payload.trade_id", "extra.trade_id"}}
	ClientTradeID = Rule{"client_trade_id", []string{"client_trade_id", "extra.client_trade_id", "orderLinkId"}}
	Account       = Rule{"account_label", []string{"account_label", "label", "account", "sub_uid", "extra.account_label"}}
	Symbol        = Rule{"symbol", []string{"symbol", "sym", "payload.features.symbol", "payload.features.signal.symbol", "extra.symbol", "extra.legacy_action.symbol"}}
	Timeframe     = Rule{"timeframe", []string{"timeframe", "tf", "payload.timeframe", "payload.features.timeframe", "payload.features.signal.timeframe", "extra.timeframe"}}
	SetupType     = Rule{"setup_type", []string{"setup_type", "payload.setup_type", "payload.features.setup_type", "payload.features.signal.setup_type"}}
	Side          = Rule{"side", []string{"side", "entry_side"}}
	ExitSide      = Rule{"exit_side", []string{"exit_side"}}
	EntryTs       = Rule{"entry_ts_ms", []string{"entry_ts_ms", "opened_ts_ms"}}
	ExitTs        = Rule{"exit_ts_ms", []string{"exit_ts_ms"}}
	ClosedTs      = Rule{"closed_ts_ms", []string{"closed_ts_ms", "exit_ts_ms"}}
	OpenedTs      = Rule{"opened_ts_ms", []string{"opened_ts_ms", "entry_ts_ms"}}
	EntryPx       = Rule{"entry_px", []string{"entry_px", "entry_price"}}
	EntryQty      = Rule{"entry_qty", []string{"entry_qty"}}
	ExitPx        = Rule{"exit_px", []string{"exit_px", "exit_price"}}
	ExitQty       = Rule{"exit_qty", []string{"exit_qty"}}
	Pnl           = Rule{"pnl_usd", []string{"pnl_usd", "pnl", "stats.pnl_usd"}}
	Fees          = Rule{"fees_usd", []string{"fees_usd", "fees"}}
	CloseReason   = Rule{"close_reason", []string{"close_reason", "exit_reason"}}
	Features      = Rule{"features", []string{"features", "payload.features"}}
	Risk          = Rule{"risk_usd", []string{"features.risk_usd", "payload.features.risk_usd", "risk_usd"}}
	SchemaVersion = Rule{"schema_version", []string{"schema_version"}}
	EventType     = Rule{"event_type", []string{"event_type"}}
)

// Lookup returns the first present, non-null, non-empty value for the rule.
func (r Rule) Lookup(raw []byte) (gjson.Result, bool) {
	for _, p := range r.Paths {
		v := gjson.GetBytes(raw, p)
		if !usable(v) {
			continue
		}
		return v, true
	}
	return gjson.Result{}, false
}

// String returns the trimmed string value, or "".
func (r Rule) String(raw []byte) string {
	v, ok := r.Lookup(raw)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Float returns the numeric value. Numeric strings are accepted; NaN and
// infinities are not.
func (r Rule) Float(raw []byte) (float64, bool) {
	v, ok := r.Lookup(raw)
	if !ok {
		return 0, false
	}
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns the integer value. Numeric strings are accepted.
func (r Rule) Int(raw []byte) (int64, bool) {
	v, ok := r.Lookup(raw)
	if !ok {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// Present reports whether any path yields a usable value.
func (r Rule) Present(raw []byte) bool {
	_, ok := r.Lookup(raw)
	return ok
}

// Upper returns the string value upper-cased; used for symbols.
func (r Rule) Upper(raw []byte) string {
	return strings.ToUpper(r.String(raw))
}

func usable(v gjson.Result) bool {
	if !v.Exists() {
		return false
	}
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.String:
		return strings.TrimSpace(v.Str) != ""
	}
	return true
}
