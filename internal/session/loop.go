// Package session runs the read, decide, act and verify cycle against a game
// screen until the fan goal is reached, the career ends or it is stopped.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/statistics"
)

// Reader captures the current screen. Capture must not change game state.
type Reader interface {
	Capture(ctx context.Context) (career.Snapshot, error)
}

// Executor dispatches an action. It either completes the action or fails.
type Executor interface {
	Execute(ctx context.Context, action career.Action) error
}

// Decider picks the action for a snapshot.
type Decider interface {
	Decide(snap career.Snapshot, state *career.SessionState) policy.Decision
}

// Enricher fills in details the reader could not see, such as event rewards.
type Enricher interface {
	Enrich(ctx context.Context, snap career.Snapshot) career.Snapshot
}

// Recorder persists committed steps and the final result.
type Recorder interface {
	RecordStep(ctx context.Context, step Step) error
	Finish(ctx context.Context, result Result) error
}

// Loop owns the session state for one run. It is not safe for concurrent use.
type Loop struct {
	cfg      Config
	reader   Reader
	executor Executor
	decider  Decider

	enricher  Enricher
	recorder  Recorder
	observers []Observer
	clock     quartz.Clock
	logger    *log.Logger

	state   *career.SessionState
	stats   *statistics.Statistics
	current State
	seq     int
}

// Option customises a Loop.
type Option func(*Loop)

// WithClock sets the clock used for every wait and timeout.
func WithClock(clock quartz.Clock) Option {
	return func(l *Loop) { l.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithEnricher sets the snapshot enricher applied after every read.
func WithEnricher(e Enricher) Option {
	return func(l *Loop) { l.enricher = e }
}

// WithRecorder sets the step recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithObserver adds an event observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// New creates a loop. A fanGoal of zero adopts the goal shown on screen.
func New(cfg Config, reader Reader, executor Executor, decider Decider, fanGoal int, opts ...Option) *Loop {
	l := &Loop{
		cfg:      cfg,
		reader:   reader,
		executor: executor,
		decider:  decider,
		clock:    quartz.NewReal(),
		state:    career.NewSessionState(fanGoal),
		stats:    statistics.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	l.logger = l.logger.WithPrefix("loop")
	return l
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.current
}

// Run drives the loop until it stops. The error is an *UnrecoverableError
// when the run stopped on repeated failures and nil otherwise.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	l.setState(StateIdle)
	l.logger.Info("Starting career loop", "goal", l.state.FanGoal())

	for {
		if ctx.Err() != nil {
			return l.stop(ctx, Cancelled, nil)
		}
		if l.cfg.MaxIterations > 0 && l.state.Iterations >= l.cfg.MaxIterations {
			return l.stop(ctx, IterationLimit, nil)
		}
		l.state.Iterations++

		l.setState(StateReading)
		snap, err := l.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return l.fail(ctx, err)
		}

		if l.state.AdoptGoal(snap.Fans.Goal) {
			l.logger.Info("Adopted fan goal from screen", "goal", l.state.FanGoal())
		}
		if snap.Screen == career.ScreenComplete {
			return l.stop(ctx, CareerComplete, nil)
		}
		if l.goalReached(snap) {
			return l.stop(ctx, GoalMet, nil)
		}

		l.setState(StateDeciding)
		decision := l.decider.Decide(snap, l.state)
		l.emit(Event{Kind: EventDecision, Decision: decision, Snapshot: &snap})

		if decision.Ambiguous {
			if err := l.recordFailure(FailureAmbiguous, fmt.Errorf("%w: %s", ErrAmbiguousSnapshot, decision.Reasoning)); err != nil {
				return l.fail(ctx, err)
			}
			_ = l.sleep(ctx, l.cfg.SettleInterval, "idle")
			continue
		}

		l.logger.Info("Decided", "turn", snap.Turn.Index, "action", decision.Action, "rule", decision.Rule)
		l.logger.Debug("Reasoning", "why", decision.Reasoning)

		if !decision.Action.Dispatchable() {
			_ = l.sleep(ctx, l.cfg.SettleInterval, "idle")
			continue
		}

		// Once dispatched, the iteration runs to completion even if ctx is
		// cancelled; the stop is observed at the top of the next iteration.
		actCtx := context.WithoutCancel(ctx)

		l.setState(StateActing)
		if err := l.act(actCtx, snap, decision.Action); err != nil {
			if !errors.Is(err, ErrVerification) {
				return l.fail(ctx, err)
			}
			if ferr := l.recordFailure(FailureVerify, err); ferr != nil {
				return l.fail(ctx, ferr)
			}
			continue
		}

		l.setState(StateVerifying)
		after, err := l.settle(actCtx)
		if err == nil {
			if verr := career.Verify(decision.Action, snap, after); verr != nil {
				err = fmt.Errorf("%w: %s: %w", ErrVerification, decision.Action, verr)
			}
		}
		if err != nil {
			if ferr := l.recordFailure(FailureVerify, err); ferr != nil {
				return l.fail(ctx, ferr)
			}
			continue
		}

		l.commit(actCtx, snap, after, decision)
		if l.goalReached(after) {
			return l.stop(ctx, GoalMet, nil)
		}
	}
}

func (l *Loop) goalReached(snap career.Snapshot) bool {
	return l.cfg.StopOnGoal && snap.GoalMet(l.state.FanGoal())
}

// read captures a snapshot, retrying with exponential backoff.
func (l *Loop) read(ctx context.Context) (career.Snapshot, error) {
	backoff := l.cfg.ReadBackoff
	var lastErr error
	for attempt := 1; attempt <= l.cfg.ReadAttempts; attempt++ {
		snap, err := l.capture(ctx)
		if err == nil {
			if l.enricher != nil && snap.Screen == career.ScreenEvent {
				snap = l.enricher.Enrich(ctx, snap)
			}
			l.emit(Event{Kind: EventSnapshot, Snapshot: &snap})
			return snap, nil
		}
		if ctx.Err() != nil {
			return career.Snapshot{}, ctx.Err()
		}

		lastErr = err
		l.stats.AddFailure(FailureRead.String())
		l.emit(Event{Kind: EventFailure, Failure: FailureRead, Err: err})
		l.logger.Warn("Capture failed", "attempt", attempt, "of", l.cfg.ReadAttempts, "error", err)

		if attempt < l.cfg.ReadAttempts {
			if err := l.sleep(ctx, backoff, "backoff"); err != nil {
				return career.Snapshot{}, err
			}
			backoff *= 2
			if l.cfg.MaxBackoff > 0 && backoff > l.cfg.MaxBackoff {
				backoff = l.cfg.MaxBackoff
			}
		}
	}
	return career.Snapshot{}, &UnrecoverableError{
		Kind:     FailureRead,
		Attempts: l.cfg.ReadAttempts,
		Err:      lastErr,
	}
}

type captureResult struct {
	snap career.Snapshot
	err  error
}

func (l *Loop) capture(ctx context.Context) (career.Snapshot, error) {
	ctx, cancel := l.withTimeout(ctx, l.cfg.ReadTimeout, "capture")
	defer cancel()

	done := make(chan captureResult, 1)
	go func() {
		snap, err := l.reader.Capture(ctx)
		done <- captureResult{snap: snap, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return career.Snapshot{}, fmt.Errorf("%w: %w", ErrReadFailure, r.err)
		}
		return r.snap, nil
	case <-ctx.Done():
		return career.Snapshot{}, fmt.Errorf("%w: capture: %w", ErrReadFailure, context.Cause(ctx))
	}
}

// act dispatches the action, retrying attempts that failed or went
// unacknowledged. An attempt that timed out is only retried once the settled
// screen shows it did not land; an unsettled screen ends the iteration with a
// verification failure instead of a second dispatch.
func (l *Loop) act(ctx context.Context, before career.Snapshot, action career.Action) error {
	var lastErr error
	for attempt := 1; attempt <= l.cfg.ActionAttempts; attempt++ {
		err := l.execute(ctx, action)
		if err == nil {
			return nil
		}
		lastErr = err
		l.stats.AddFailure(FailureExecution.String())
		l.emit(Event{Kind: EventFailure, Failure: FailureExecution, Err: err})
		l.logger.Warn("Action failed", "action", action, "attempt", attempt, "of", l.cfg.ActionAttempts, "error", err)

		if !errors.Is(err, ErrTimeout) {
			continue
		}
		after, serr := l.settle(ctx)
		if serr != nil {
			return fmt.Errorf("%s went unacknowledged: %w", action, serr)
		}
		if career.Verify(action, before, after) == nil {
			l.logger.Info("Action landed without an acknowledgement", "action", action, "attempt", attempt)
			return nil
		}
	}
	return &UnrecoverableError{
		Kind:     FailureExecution,
		Attempts: l.cfg.ActionAttempts,
		Err:      lastErr,
	}
}

func (l *Loop) execute(ctx context.Context, action career.Action) error {
	ctx, cancel := l.withTimeout(ctx, l.cfg.ActionTimeout, "action")
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- l.executor.Execute(ctx, action)
	}()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			}
			return fmt.Errorf("%w: %s: %w", ErrExecutionFailure, action, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrExecutionFailure, action, context.Cause(ctx))
	}
}

// settle re-reads until two consecutive non-transition snapshots agree.
func (l *Loop) settle(ctx context.Context) (career.Snapshot, error) {
	deadline := l.clock.Now().Add(l.cfg.SettleTimeout)
	prev := ""
	reads := 0
	for reads < l.cfg.SettleAttempts {
		if err := l.sleep(ctx, l.cfg.SettleInterval, "settle"); err != nil {
			return career.Snapshot{}, err
		}
		reads++

		snap, err := l.capture(ctx)
		switch {
		case err != nil:
			l.logger.Debug("Settle read failed", "error", err)
			prev = ""
		case snap.Screen == career.ScreenTransition:
			prev = ""
		default:
			fp := snap.Fingerprint()
			if fp == prev {
				return snap, nil
			}
			prev = fp
		}

		if l.cfg.SettleTimeout > 0 && !l.clock.Now().Before(deadline) {
			break
		}
	}
	return career.Snapshot{}, fmt.Errorf("%w: screen did not settle after %d reads", ErrVerification, reads)
}

func (l *Loop) recordFailure(kind FailureKind, err error) error {
	n := l.state.RecordFailure()
	l.stats.AddFailure(kind.String())
	l.emit(Event{Kind: EventFailure, Failure: kind, Err: err})
	l.logger.Warn("Iteration failed", "kind", kind, "consecutive", n, "error", err)

	if n >= l.cfg.MaxConsecutiveFailures {
		return &UnrecoverableError{Kind: kind, Attempts: n, Err: err}
	}
	return nil
}

func (l *Loop) commit(ctx context.Context, before, after career.Snapshot, decision policy.Decision) {
	l.state.Commit(decision.Action, after)
	l.seq++

	energyDelta := 0
	if before.EnergyKnown() && after.EnergyKnown() {
		energyDelta = after.Energy - before.Energy
	}
	l.stats.Add(statistics.StepResult{
		Action:      decision.Action.Kind,
		Rule:        decision.Rule,
		Turn:        before.Turn.Index,
		FansGained:  after.Fans.Current - before.Fans.Current,
		EnergyDelta: energyDelta,
	})

	if l.recorder != nil {
		step := Step{
			Seq:       l.seq,
			Turn:      before.Turn,
			Action:    decision.Action,
			Rule:      decision.Rule,
			Reasoning: decision.Reasoning,
			Mood:      after.Mood,
			Energy:    after.Energy,
			Fans:      after.Fans.Current,
			At:        l.clock.Now(),
		}
		if err := l.recorder.RecordStep(ctx, step); err != nil {
			l.logger.Warn("Failed to record step", "seq", l.seq, "error", err)
		}
	}

	l.emit(Event{Kind: EventCommit, Decision: decision, Snapshot: &after})
}

func (l *Loop) fail(ctx context.Context, err error) (Result, error) {
	var unrecoverable *UnrecoverableError
	if !errors.As(err, &unrecoverable) {
		unrecoverable = &UnrecoverableError{Kind: FailureRead, Attempts: 1, Err: err}
	}
	return l.stop(ctx, Unrecoverable(unrecoverable.Kind), unrecoverable)
}

func (l *Loop) stop(ctx context.Context, cause StopCause, err error) (Result, error) {
	l.setState(StateStopped)
	result := Result{Cause: cause, State: *l.state, Stats: l.stats}

	if l.recorder != nil {
		if ferr := l.recorder.Finish(context.WithoutCancel(ctx), result); ferr != nil {
			l.logger.Warn("Failed to finish run record", "error", ferr)
		}
	}

	l.emit(Event{Kind: EventStop, Cause: cause, Err: err})
	if err != nil {
		l.logger.Error("Career loop stopped", "cause", cause, "error", err)
	} else {
		l.logger.Info("Career loop stopped", "cause", cause, "races", l.state.RacesRun, "iterations", l.state.Iterations)
	}
	return result, err
}

func (l *Loop) setState(s State) {
	l.current = s
	l.emit(Event{Kind: EventState})
}

func (l *Loop) emit(e Event) {
	if len(l.observers) == 0 {
		return
	}
	e.Time = l.clock.Now()
	e.Iteration = l.state.Iterations
	e.State = l.current
	e.Fans = l.state.LastFans
	e.FanGoal = l.state.FanGoal()
	e.RacesRun = l.state.RacesRun
	for _, o := range l.observers {
		o.Observe(e)
	}
}

// withTimeout derives a context that is cancelled with ErrTimeout after d on
// the loop's clock. A non-positive d means no timeout. The tag names the wait
// on the clock.
func (l *Loop) withTimeout(parent context.Context, d time.Duration, tag string) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	ctx, cancel := context.WithCancelCause(parent)
	timer := l.clock.AfterFunc(d, func() {
		cancel(ErrTimeout)
	}, tag)
	return ctx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

// sleep waits for d on the loop's clock. Non-positive durations return at once.
func (l *Loop) sleep(ctx context.Context, d time.Duration, tag string) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	timer := l.clock.AfterFunc(d, func() {
		close(done)
	}, tag)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
