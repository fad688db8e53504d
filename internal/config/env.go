package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides holds the UMABOT_* variables. Unset variables leave the
// pointer nil so the file value stays.
type envOverrides struct {
	FanGoal       *int    `env:"UMABOT_FAN_GOAL"`
	StopOnGoal    *bool   `env:"UMABOT_STOP_ON_GOAL"`
	MinimumMood   *string `env:"UMABOT_MINIMUM_MOOD"`
	RestThreshold *int    `env:"UMABOT_REST_THRESHOLD"`
	MaxFailure    *int    `env:"UMABOT_MAX_FAILURE"`
	MaxIterations *int    `env:"UMABOT_MAX_ITERATIONS"`
	AgentURL      *string `env:"UMABOT_AGENT_URL"`
	CatalogURL    *string `env:"UMABOT_CATALOG_URL"`
	Offline       *bool   `env:"UMABOT_OFFLINE"`
	JournalPath   *string `env:"UMABOT_JOURNAL_PATH"`
	LogLevel      *string `env:"UMABOT_LOG_LEVEL"`
	LogJSON       *bool   `env:"UMABOT_LOG_JSON"`
}

// ApplyEnv overlays environment overrides onto c. A nil environ reads the
// process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var raw envOverrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if raw.FanGoal != nil {
		c.Goal.Fans = *raw.FanGoal
	}
	if raw.StopOnGoal != nil {
		c.Goal.StopOnGoal = raw.StopOnGoal
	}
	if raw.MinimumMood != nil {
		c.Policy.MinimumMood = *raw.MinimumMood
	}
	if raw.RestThreshold != nil {
		c.Policy.RestThreshold = raw.RestThreshold
	}
	if raw.MaxFailure != nil {
		c.Policy.MaxFailure = raw.MaxFailure
	}
	if raw.MaxIterations != nil {
		c.Loop.MaxIterations = *raw.MaxIterations
	}
	if raw.AgentURL != nil {
		c.Agent.URL = *raw.AgentURL
	}
	if raw.CatalogURL != nil {
		c.Events.CatalogURL = *raw.CatalogURL
	}
	if raw.Offline != nil {
		c.Events.Offline = *raw.Offline
	}
	if raw.JournalPath != nil {
		c.Journal.Path = *raw.JournalPath
	}
	if raw.LogLevel != nil {
		c.Log.Level = *raw.LogLevel
	}
	if raw.LogJSON != nil {
		c.Log.JSON = *raw.LogJSON
	}
	return nil
}
