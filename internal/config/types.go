package config

import "time"

// Config is the full tool configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir" yaml:"data_dir"`
	Streams    StreamsConfig    `mapstructure:"streams" yaml:"streams"`
	Scoreboard ScoreboardConfig `mapstructure:"scoreboard" yaml:"scoreboard"`
	Gate       GateConfig       `mapstructure:"gate" yaml:"gate"`
	Join       JoinConfig       `mapstructure:"join" yaml:"join"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Mirror     MirrorConfig     `mapstructure:"mirror" yaml:"mirror"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// StreamsConfig names the stream files under DataDir.
type StreamsConfig struct {
	SetupContext     string `mapstructure:"setup_context" yaml:"setup_context"`
	SetupRejects     string `mapstructure:"setup_rejects" yaml:"setup_rejects"`
	RawOutcome       string `mapstructure:"raw_outcome" yaml:"raw_outcome"`
	Canonical        string `mapstructure:"canonical" yaml:"canonical"`
	Rejects          string `mapstructure:"rejects" yaml:"rejects"`
	Trainable        string `mapstructure:"trainable" yaml:"trainable"`
	Orphans          string `mapstructure:"orphans" yaml:"orphans"`
	JoinRejects      string `mapstructure:"join_rejects" yaml:"join_rejects"`
	Decisions        string `mapstructure:"decisions" yaml:"decisions"`
	DecisionsDeduped string `mapstructure:"decisions_deduped" yaml:"decisions_deduped"`
	Scoreboard       string `mapstructure:"scoreboard" yaml:"scoreboard"`
}

// ScoreboardConfig controls aggregation.
type ScoreboardConfig struct {
	MinSampleSize int     `mapstructure:"min_sample_size" yaml:"min_sample_size"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	MaxBuckets    int     `mapstructure:"max_buckets" yaml:"max_buckets"`
}

// GateConfig selects the live policy. CanonicalPolicy has no default.
type GateConfig struct {
	CanonicalPolicy string  `mapstructure:"canonical_policy" yaml:"canonical_policy"`
	BaseSize        float64 `mapstructure:"base_size" yaml:"base_size"`
}

// JoinConfig controls the joiner's hard filters.
type JoinConfig struct {
	Cutover               *Cutover `mapstructure:"cutover" yaml:"cutover"`
	BadTradePrefixes      []string `mapstructure:"bad_trade_prefixes" yaml:"bad_trade_prefixes"`
	PlaceholderSetupTypes []string `mapstructure:"placeholder_setup_types" yaml:"placeholder_setup_types"`
}

// StoreConfig controls Record Store retry on busy files.
type StoreConfig struct {
	BusyRetries int           `mapstructure:"busy_retries" yaml:"busy_retries"`
	BusyBackoff time.Duration `mapstructure:"busy_backoff" yaml:"busy_backoff"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MirrorConfig enables the optional database mirrors when a DSN is set.
type MirrorConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn" yaml:"clickhouse_dsn"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}
