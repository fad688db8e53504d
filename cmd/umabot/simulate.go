package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/cmd/umabot/shared"
	"github.com/daftuyda/umamusume-auto-train/internal/config"
	"github.com/daftuyda/umamusume-auto-train/internal/fileutil"
	"github.com/daftuyda/umamusume-auto-train/internal/remote"
	"github.com/daftuyda/umamusume-auto-train/internal/simulator"
)

// SimulateCmd trains simulated careers, or serves one as a capture agent.
type SimulateCmd struct {
	Seed            *int64  `help:"Deterministic seed (random when unset)"`
	Careers         int     `default:"1" help:"Number of careers; more than one runs a batch"`
	Parallel        int     `help:"Careers run at once in a batch (0 = GOMAXPROCS)"`
	Turns           int     `default:"72" help:"Career length in turns"`
	FanGoal         int     `name:"fan-goal" help:"Goal shown on the simulated screen"`
	ReadFailureRate float64 `name:"read-failure-rate" help:"Probability a capture fails"`
	AmbiguousRate   float64 `name:"ambiguous-rate" help:"Probability a capture is low-confidence"`
	ExecFailureRate float64 `name:"exec-failure-rate" help:"Probability an input fails"`
	Transitions     int     `help:"Transition frames shown after every action"`
	Realtime        bool    `help:"Keep the configured settle and backoff waits"`
	Listen          string  `help:"Serve the simulated career as a capture agent on this address instead"`
	TUI             bool    `name:"tui" help:"Show the live display (single career only)"`
	Report          string  `help:"Write a JSON summary to this path"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger, closer, err := setupLogging(cfg, c.TUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := shared.SetupSignalHandler(logger)
	defer stop()

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("Using deterministic seed", "seed", seed)
	} else {
		logger.Info("Using random seed", "seed", seed)
	}

	simCfg := simulator.Config{
		Seed:             seed,
		Turns:            c.Turns,
		FanGoal:          c.FanGoal,
		ReadFailureRate:  c.ReadFailureRate,
		AmbiguousRate:    c.AmbiguousRate,
		ExecFailureRate:  c.ExecFailureRate,
		TransitionFrames: c.Transitions,
		Logger:           logger,
	}

	switch {
	case c.Listen != "":
		return c.serve(ctx, simulator.New(simCfg), logger)
	case c.Careers > 1:
		return c.batch(ctx, cfg, simCfg, seed, logger)
	}

	loopCfg, err := cfg.LoopConfig()
	if err != nil {
		return err
	}
	if !c.Realtime {
		loopCfg.ReadBackoff, loopCfg.MaxBackoff, loopCfg.SettleInterval = 0, 0, 0
	}

	sim := simulator.New(simCfg)
	result, err := careerRun{
		cfg:      cfg,
		loopCfg:  loopCfg,
		reader:   sim,
		executor: sim,
		source:   "simulator",
		seed:     &seed,
		tui:      c.TUI,
		report:   c.Report,
		logger:   logger,
	}.execute(ctx)

	summary := sim.Summary()
	logger.Info("Simulated career finished",
		"cause", result.Cause,
		"turn", summary.Turn,
		"fans", summary.Fans,
		"races", fmt.Sprintf("%d/%d won", summary.RacesWon, summary.RacesRun),
		"failed_trainings", summary.Failures)
	return err
}

// serve exposes one simulated career over the agent protocol until ctx ends.
func (c *SimulateCmd) serve(ctx context.Context, sim *simulator.Career, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/agent", remote.NewHandler(sim, logger))
	srv := &http.Server{Addr: c.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("Serving simulated career", "url", "ws://"+c.Listen+"/agent")

	select {
	case <-ctx.Done():
		logger.Info("Shutting down agent...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (c *SimulateCmd) batch(ctx context.Context, cfg *config.Config, simCfg simulator.Config, seed int64, logger *log.Logger) error {
	policyCfg, err := cfg.PolicyConfig()
	if err != nil {
		return err
	}
	loopCfg, err := cfg.LoopConfig()
	if err != nil {
		return err
	}
	loopCfg.ReadBackoff, loopCfg.MaxBackoff, loopCfg.SettleInterval = 0, 0, 0

	start := time.Now()
	result, err := simulator.RunBatch(ctx, simulator.BatchConfig{
		Careers:     c.Careers,
		Seed:        seed,
		Career:      simCfg,
		Policy:      policyCfg,
		Loop:        loopCfg,
		Timeout:     time.Minute,
		Parallelism: c.Parallel,
		Logger:      logger.WithPrefix("batch"),
	})
	if err != nil {
		return err
	}
	logger.Info("Batch finished", "careers", c.Careers, "elapsed", time.Since(start).Round(time.Millisecond))

	fmt.Fprintln(os.Stdout, renderBatch(result))

	if c.Report != "" {
		if err := fileutil.WriteJSONAtomic(c.Report, newBatchReport(result)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("Wrote batch report", "path", c.Report)
	}
	return nil
}

func renderBatch(result *simulator.BatchResult) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Seed", "Cause", "Turn", "Fans", "Races", "Steps")
	for _, o := range result.Outcomes {
		t.Row(
			strconv.FormatInt(o.Seed, 10),
			o.Cause.String(),
			strconv.Itoa(o.Summary.Turn),
			strconv.Itoa(o.Summary.Fans),
			fmt.Sprintf("%d/%d", o.Summary.RacesWon, o.Summary.RacesRun),
			strconv.Itoa(o.Steps),
		)
	}

	summary := fmt.Sprintf("goal met %.0f%% • unrecoverable %d • fans p25/p50/p75 %d/%d/%d",
		result.GoalRate()*100, result.Failed(),
		result.FanPercentile(0.25), result.FanPercentile(0.5), result.FanPercentile(0.75))
	return t.String() + "\n" + summary
}

type batchReport struct {
	Careers  int            `json:"careers"`
	GoalRate float64        `json:"goal_rate"`
	Failed   int            `json:"unrecoverable"`
	FansP50  int            `json:"fans_p50"`
	Outcomes []batchOutcome `json:"outcomes"`
}

type batchOutcome struct {
	Seed     int64  `json:"seed"`
	Cause    string `json:"cause"`
	Turn     int    `json:"turn"`
	Fans     int    `json:"fans"`
	RacesRun int    `json:"races_run"`
	RacesWon int    `json:"races_won"`
	Steps    int    `json:"steps"`
	Error    string `json:"error,omitempty"`
}

func newBatchReport(result *simulator.BatchResult) batchReport {
	r := batchReport{
		Careers:  len(result.Outcomes),
		GoalRate: result.GoalRate(),
		Failed:   result.Failed(),
		FansP50:  result.FanPercentile(0.5),
	}
	for _, o := range result.Outcomes {
		out := batchOutcome{
			Seed:     o.Seed,
			Cause:    o.Cause.String(),
			Turn:     o.Summary.Turn,
			Fans:     o.Summary.Fans,
			RacesRun: o.Summary.RacesRun,
			RacesWon: o.Summary.RacesWon,
			Steps:    o.Steps,
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		r.Outcomes = append(r.Outcomes, out)
	}
	return r
}
