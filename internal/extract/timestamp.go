package extract

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// TimestampMs resolves a decision timestamp in epoch milliseconds.
// ts_ms wins; ts may be epoch seconds, epoch milliseconds or RFC3339 text.
func TimestampMs(raw []byte) (int64, bool) {
	if v := gjson.GetBytes(raw, "ts_ms"); v.Type == gjson.Number {
		return v.Int(), true
	}
	v := gjson.GetBytes(raw, "ts")
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f < 1e12 {
			return int64(f * 1000), true
		}
		return int64(f), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
	}
	return 0, false
}
