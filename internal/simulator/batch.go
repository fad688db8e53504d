package simulator

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
	"golang.org/x/sync/errgroup"
)

// BatchConfig runs many seeded careers through the real loop and policy.
type BatchConfig struct {
	Careers     int
	Seed        int64 // career i uses Seed+i
	Career      Config
	Policy      policy.Config
	Loop        session.Config
	Timeout     time.Duration // per career, none when zero
	Parallelism int           // GOMAXPROCS when zero
	Logger      *log.Logger
}

// Outcome is how one simulated career ended.
type Outcome struct {
	Seed    int64
	Cause   session.StopCause
	Summary Summary
	Steps   int
	Err     error
}

// BatchResult collects the outcomes in seed order.
type BatchResult struct {
	Outcomes []Outcome
}

// RunBatch plays cfg.Careers careers. A career that ends with an error is
// still reported; only cancellation of ctx aborts the batch.
func RunBatch(ctx context.Context, cfg BatchConfig) (*BatchResult, error) {
	if cfg.Careers <= 0 {
		return nil, fmt.Errorf("careers must be positive, got %d", cfg.Careers)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	parallel := cfg.Parallelism
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, cfg.Careers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := 0; i < cfg.Careers; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = runOne(gctx, cfg, cfg.Seed+int64(i), logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &BatchResult{Outcomes: outcomes}, nil
}

func runOne(ctx context.Context, cfg BatchConfig, seed int64, logger *log.Logger) Outcome {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	simCfg := cfg.Career
	simCfg.Seed = seed
	simCfg.Logger = logger
	sim := New(simCfg)

	loop := session.New(cfg.Loop, sim, sim, policy.New(cfg.Policy), simCfg.FanGoal,
		session.WithLogger(logger.With("seed", seed)))
	result, err := loop.Run(ctx)

	out := Outcome{Seed: seed, Cause: result.Cause, Summary: sim.Summary(), Err: err}
	if result.Stats != nil {
		out.Steps = result.Stats.Steps
	}
	return out
}

// GoalRate is the share of careers that reached their fan goal.
func (r *BatchResult) GoalRate() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Summary.FanGoal > 0 && o.Summary.Fans >= o.Summary.FanGoal {
			n++
		}
	}
	return float64(n) / float64(len(r.Outcomes))
}

// Failed counts careers that stopped on an unrecoverable error.
func (r *BatchResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Cause.Reason == session.ReasonUnrecoverable {
			n++
		}
	}
	return n
}

// FanPercentile returns the p-th percentile (0..1) of final fan counts.
func (r *BatchResult) FanPercentile(p float64) int {
	if len(r.Outcomes) == 0 {
		return 0
	}
	fans := make([]int, len(r.Outcomes))
	for i, o := range r.Outcomes {
		fans[i] = o.Summary.Fans
	}
	slices.Sort(fans)
	idx := int(p * float64(len(fans)-1))
	return fans[max(0, min(idx, len(fans)-1))]
}
