package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/cmd/umabot/shared"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/config"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
	"github.com/daftuyda/umamusume-auto-train/internal/fileutil"
	"github.com/daftuyda/umamusume-auto-train/internal/journal"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
	"github.com/daftuyda/umamusume-auto-train/internal/tui"
	"golang.org/x/sync/errgroup"
)

const defaultTUILogFile = "umabot.log"

// loadConfig reads the config file, then the environment, then global flags.
func loadConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env.ToMap(os.Environ())); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogJSON {
		cfg.Log.JSON = true
	}
	if g.LogFile != "" {
		cfg.Log.File = g.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging builds the logger for cfg. With a TUI on screen, logs go to a
// file so they do not tear the display.
func setupLogging(cfg *config.Config, withTUI bool) (*log.Logger, io.Closer, error) {
	opts := shared.LogOptions{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: cfg.Log.File}
	if withTUI && opts.File == "" {
		opts.File = defaultTUILogFile
	}
	return shared.SetupLogger(opts)
}

// careerRun wires one loop from config and runs it to completion.
type careerRun struct {
	cfg      *config.Config
	loopCfg  session.Config
	reader   session.Reader
	executor session.Executor
	source   string
	seed     *int64
	enrich   bool
	tui      bool
	report   string
	logger   *log.Logger
}

func (r careerRun) execute(ctx context.Context) (session.Result, error) {
	policyCfg, err := r.cfg.PolicyConfig()
	if err != nil {
		return session.Result{}, err
	}
	opts := []session.Option{session.WithLogger(r.logger)}

	if r.enrich {
		catOpts, enabled, err := r.cfg.CatalogOptions()
		if err != nil {
			return session.Result{}, err
		}
		if enabled {
			catOpts.Logger = r.logger
			catalog, err := events.NewHTTPCatalog(catOpts)
			if err != nil {
				return session.Result{}, fmt.Errorf("event catalog: %w", err)
			}
			opts = append(opts, session.WithEnricher(events.NewEnricher(catalog, r.logger)))
		}
	}

	if r.cfg.JournalEnabled() {
		j, err := journal.Open(ctx, r.cfg.Journal.Path, r.logger)
		if err != nil {
			return session.Result{}, err
		}
		defer j.Close()

		run, err := j.StartRun(ctx, journal.RunInfo{Source: r.source, Seed: r.seed, FanGoal: r.cfg.Goal.Fans})
		if err != nil {
			return session.Result{}, err
		}
		r.logger.Info("Journaling run", "id", run.ID, "path", r.cfg.Journal.Path)
		opts = append(opts, session.WithRecorder(run))
	}

	var (
		result session.Result
		runErr error
	)
	if r.tui {
		result, runErr = r.runWithTUI(ctx, policyCfg, opts)
	} else {
		opts = append(opts, session.WithObserver(tui.NewPrinter(os.Stdout)))
		loop := session.New(r.loopCfg, r.reader, r.executor, policy.New(policyCfg), r.cfg.Goal.Fans, opts...)
		result, runErr = loop.Run(ctx)
	}

	if r.report != "" && result.Stats != nil {
		if err := fileutil.WriteJSONAtomic(r.report, newRunReport(result)); err != nil {
			r.logger.Warn("Failed to write run report", "path", r.report, "error", err)
		} else {
			r.logger.Info("Wrote run report", "path", r.report)
		}
	}
	return result, runErr
}

// runWithTUI runs the loop and the display side by side. Quitting the display
// cancels the loop; the display stays up after the loop stops.
func (r careerRun) runWithTUI(ctx context.Context, policyCfg policy.Config, opts []session.Option) (session.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewTUIModel(r.logger, cancel)
	program := tea.NewProgram(model, tea.WithAltScreen())
	bridge := tui.NewBridge(program)

	opts = append(opts, session.WithObserver(bridge))
	loop := session.New(r.loopCfg, r.reader, r.executor, policy.New(policyCfg), r.cfg.Goal.Fans, opts...)

	var (
		result session.Result
		runErr error
		g      errgroup.Group
	)
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		return err
	})
	g.Go(func() error {
		result, runErr = loop.Run(ctx)
		bridge.Done(runErr)
		return nil
	})
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("display: %w", err)
	}
	return result, runErr
}

type runReport struct {
	Cause      string         `json:"cause"`
	Fans       int            `json:"fans"`
	FanGoal    int            `json:"fan_goal"`
	RacesRun   int            `json:"races_run"`
	Iterations int            `json:"iterations"`
	Steps      int            `json:"steps"`
	MeanGain   float64        `json:"mean_fan_gain"`
	BestGain   int            `json:"best_fan_gain"`
	BestGainAt int            `json:"best_fan_gain_turn"`
	Actions    map[string]int `json:"actions"`
	Rules      map[string]int `json:"rules"`
	Failures   map[string]int `json:"failures"`
}

func newRunReport(result session.Result) runReport {
	stats := result.Stats
	actions := map[string]int{}
	for k := career.ActionWait; k <= career.ActionChooseEvent; k++ {
		if n := stats.Count(k); n > 0 {
			actions[k.String()] = n
		}
	}
	return runReport{
		Cause:      result.Cause.String(),
		Fans:       result.State.LastFans,
		FanGoal:    result.State.FanGoal(),
		RacesRun:   result.State.RacesRun,
		Iterations: result.State.Iterations,
		Steps:      stats.Steps,
		MeanGain:   stats.Mean(),
		BestGain:   stats.BestGain,
		BestGainAt: stats.BestGainAt,
		Actions:    actions,
		Rules:      stats.Rules,
		Failures:   stats.Failures,
	}
}
