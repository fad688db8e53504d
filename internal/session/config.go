package session

import (
	"fmt"
	"time"
)

// Config bounds every wait and retry of the loop.
type Config struct {
	ReadTimeout  time.Duration
	ReadAttempts int
	ReadBackoff  time.Duration
	MaxBackoff   time.Duration

	ActionTimeout  time.Duration
	ActionAttempts int

	SettleInterval time.Duration
	SettleTimeout  time.Duration
	SettleAttempts int

	MaxConsecutiveFailures int
	StopOnGoal             bool
	MaxIterations          int // 0 means unlimited
}

// DefaultConfig returns the stock loop configuration.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:            10 * time.Second,
		ReadAttempts:           3,
		ReadBackoff:            500 * time.Millisecond,
		MaxBackoff:             5 * time.Second,
		ActionTimeout:          15 * time.Second,
		ActionAttempts:         2,
		SettleInterval:         750 * time.Millisecond,
		SettleTimeout:          10 * time.Second,
		SettleAttempts:         8,
		MaxConsecutiveFailures: 5,
		StopOnGoal:             true,
	}
}

// Validate checks that every retry bound is usable.
func (c Config) Validate() error {
	if c.ReadAttempts < 1 {
		return fmt.Errorf("read attempts must be at least 1, got %d", c.ReadAttempts)
	}
	if c.ActionAttempts < 1 {
		return fmt.Errorf("action attempts must be at least 1, got %d", c.ActionAttempts)
	}
	if c.SettleAttempts < 2 {
		return fmt.Errorf("settle attempts must be at least 2, got %d", c.SettleAttempts)
	}
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max consecutive failures must be at least 1, got %d", c.MaxConsecutiveFailures)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations cannot be negative")
	}
	for name, d := range map[string]time.Duration{
		"read timeout":    c.ReadTimeout,
		"read backoff":    c.ReadBackoff,
		"max backoff":     c.MaxBackoff,
		"action timeout":  c.ActionTimeout,
		"settle interval": c.SettleInterval,
		"settle timeout":  c.SettleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.MaxBackoff > 0 && c.ReadBackoff > c.MaxBackoff {
		return fmt.Errorf("read backoff %s exceeds max backoff %s", c.ReadBackoff, c.MaxBackoff)
	}
	return nil
}
