package config

import "github.com/spf13/viper"

// Policy names accepted by gate.canonical_policy.
const (
	PolicyThreshold  = "threshold"
	PolicyConfidence = "confidence"
)

var defaults = map[string]any{
	"data_dir":                  "data",
	"streams.setup_context":     "setup_context.jsonl",
	"streams.setup_rejects":     "setup_context.rejects.jsonl",
	"streams.raw_outcome":       "trade_outcomes.jsonl",
	"streams.canonical":         "trade_outcomes.v1.jsonl",
	"streams.rejects":           "trade_outcomes.rejects.jsonl",
	"streams.trainable":         "outcomes_trainable.jsonl",
	"streams.orphans":           "outcomes_orphans.jsonl",
	"streams.join_rejects":      "outcomes_join.rejects.jsonl",
	"streams.decisions":         "ai_decisions.jsonl",
	"streams.decisions_deduped": "ai_decisions.deduped.jsonl",
	"streams.scoreboard":        "scoreboard",

	"scoreboard.min_sample_size": 10,
	"scoreboard.min_confidence":  0.60,
	"scoreboard.max_buckets":     5000,

	"gate.base_size": 1.0,

	"join.bad_trade_prefixes":      []string{"PIPE_", "TEST_", "THIS_IS_NOT_REAL"},
	"join.placeholder_setup_types": []string{"unknown", "test_manual", "manual_test"},

	"store.busy_retries": 5,
	"store.busy_backoff": "50ms",

	"log.level":  "info",
	"log.format": "json",
}

// envOnlyKeys have no default but must still be reachable from the environment.
var envOnlyKeys = []string{
	"gate.canonical_policy",
	"join.cutover",
	"mirror.postgres_dsn",
	"mirror.clickhouse_dsn",
	"metrics.textfile",
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
