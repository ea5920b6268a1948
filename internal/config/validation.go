package config

import (
	"errors"
	"fmt"
)

// ErrPolicyNotSelected is returned when no canonical gate policy is configured.
var ErrPolicyNotSelected = errors.New("gate.canonical_policy is not set: choose threshold or confidence")

func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	switch cfg.Gate.CanonicalPolicy {
	case "", PolicyThreshold, PolicyConfidence:
	default:
		return fmt.Errorf("gate.canonical_policy %q: must be %s or %s",
			cfg.Gate.CanonicalPolicy, PolicyThreshold, PolicyConfidence)
	}
	if cfg.Scoreboard.MinSampleSize <= 0 {
		return fmt.Errorf("scoreboard.min_sample_size must be > 0")
	}
	if cfg.Scoreboard.MinConfidence < 0 || cfg.Scoreboard.MinConfidence > 1 {
		return fmt.Errorf("scoreboard.min_confidence must be in [0, 1]")
	}
	if cfg.Scoreboard.MaxBuckets <= 0 {
		return fmt.Errorf("scoreboard.max_buckets must be > 0")
	}
	if cfg.Gate.BaseSize <= 0 {
		return fmt.Errorf("gate.base_size must be > 0")
	}
	if cfg.Store.BusyRetries < 0 {
		return fmt.Errorf("store.busy_retries cannot be negative")
	}
	return nil
}

// RequirePolicy returns the canonical policy name or ErrPolicyNotSelected.
// Tools that make or report gate decisions call this before doing any work.
func (c *Config) RequirePolicy() (string, error) {
	if c.Gate.CanonicalPolicy == "" {
		return "", ErrPolicyNotSelected
	}
	return c.Gate.CanonicalPolicy, nil
}
