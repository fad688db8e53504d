package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/daftuyda/umamusume-auto-train/cmd/umabot/shared"
	"github.com/daftuyda/umamusume-auto-train/internal/remote"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
)

// RunCmd trains one career against a capture agent.
type RunCmd struct {
	Agent     string `help:"Capture agent WebSocket URL (overrides config)"`
	FanGoal   *int   `name:"fan-goal" help:"Stop once this many fans are reached; 0 adopts the goal on screen"`
	Offline   bool   `help:"Do not query the event catalog"`
	NoJournal bool   `name:"no-journal" help:"Do not record this run"`
	TUI       bool   `name:"tui" help:"Show the live display"`
	Report    string `help:"Write a JSON run summary to this path"`
}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if c.Agent != "" {
		cfg.Agent.URL = c.Agent
	}
	if c.FanGoal != nil {
		cfg.Goal.Fans = *c.FanGoal
	}
	if c.Offline {
		cfg.Events.Offline = true
	}
	if c.NoJournal {
		disabled := false
		cfg.Journal.Enabled = &disabled
	}

	logger, closer, err := setupLogging(cfg, c.TUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := shared.SetupSignalHandler(logger)
	defer stop()

	loopCfg, err := cfg.LoopConfig()
	if err != nil {
		return err
	}
	dial, request, err := cfg.AgentTimeouts()
	if err != nil {
		return err
	}

	logger.Info("Connecting to capture agent", "url", cfg.Agent.URL)
	dialCtx, cancel := context.WithTimeout(ctx, dial)
	agent, err := remote.Dial(dialCtx, cfg.Agent.URL, remote.Options{
		DialTimeout:    dial,
		RequestTimeout: request,
		Logger:         logger,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("connect to agent: %w", err)
	}
	defer agent.Close()

	result, err := careerRun{
		cfg:      cfg,
		loopCfg:  loopCfg,
		reader:   agent,
		executor: agent,
		source:   "agent",
		enrich:   true,
		tui:      c.TUI,
		report:   c.Report,
		logger:   logger,
	}.execute(ctx)
	if err != nil {
		var unrecoverable *session.UnrecoverableError
		if errors.As(err, &unrecoverable) {
			return fmt.Errorf("stopped after %d %s failures: %w", unrecoverable.Attempts, unrecoverable.Kind, unrecoverable.Err)
		}
		return err
	}

	logger.Info("Run finished", "cause", result.Cause, "fans", result.State.LastFans, "races", result.State.RacesRun)
	return nil
}
