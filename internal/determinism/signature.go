package determinism

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"scoreloop/internal/domain"
	"scoreloop/internal/idhash"
)

// PolicyFields define what a decision says. Two rows for one trade that
// differ here disagree about the decision itself.
var PolicyFields = []string{
	"account_label",
	"trade_id",
	"client_trade_id",
	"event_type",
	"decision",
	"decision_code",
	"action",
	"allow",
	"size_multiplier",
	"symbol",
	"timeframe",
	"policy_hash",
	"schema_version",
}

// SnapshotFields identify the scoreboard a decision was read from.
// Rows differing only here are benign variants.
var SnapshotFields = []string{
	"snapshot_id",
	"snapshot_hash",
	"snapshot_fp",
	"snapshot_mode",
	"snapshot_schema_version",
	"ts_ms",
	"ts",
}

// PolicySignature hashes the policy fields of a raw decision row.
// Absent fields hash as null.
func PolicySignature(raw []byte) (string, error) {
	return signature(raw, PolicyFields)
}

// SnapshotSignature hashes the snapshot fields of a raw decision row.
func SnapshotSignature(raw []byte) (string, error) {
	return signature(raw, SnapshotFields)
}

// Sign fills rec.PolicySignature from the record's own fields.
func Sign(rec *domain.DecisionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	sig, err := PolicySignature(raw)
	if err != nil {
		return err
	}
	rec.PolicySignature = sig
	return nil
}

func signature(raw []byte, fields []string) (string, error) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		v := gjson.GetBytes(raw, gjson.Escape(f))
		if !v.Exists() {
			m[f] = nil
			continue
		}
		m[f] = v.Value()
	}
	sig, err := idhash.Signature(m)
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	return sig, nil
}
