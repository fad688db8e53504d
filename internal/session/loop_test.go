package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGame is a tiny career that reacts to actions so verification passes.
type fakeGame struct {
	snap career.Snapshot

	readErrs    int  // fail this many captures, then recover
	alwaysFail  bool // fail every capture
	execErr     error
	noEffect    bool
	transitions int // transition frames shown after every action

	pendingTransitions int
	captures           int
	actions            []career.Action
	onExecute          func(ctx context.Context)
}

func newFakeGame() *fakeGame {
	return &fakeGame{snap: career.Snapshot{
		Screen: career.ScreenLobby,
		Mood:   career.MoodGood,
		Energy: 80,
		Turn:   career.Turn{Index: 1},
		Stats:  map[career.Stat]int{career.Speed: 200},
		Training: []career.TrainingOption{
			{Stat: career.Speed, FailureRisk: 5, Gains: map[career.Stat]int{career.Speed: 10}, Supports: 2},
			{Stat: career.Stamina, FailureRisk: 5, Gains: map[career.Stat]int{career.Stamina: 6}, Supports: 1},
		},
	}}
}

func (g *fakeGame) Capture(ctx context.Context) (career.Snapshot, error) {
	g.captures++
	if g.alwaysFail || g.readErrs > 0 {
		if g.readErrs > 0 {
			g.readErrs--
		}
		return career.Snapshot{}, errors.New("capture device lost")
	}
	if g.pendingTransitions > 0 {
		g.pendingTransitions--
		return career.Snapshot{Screen: career.ScreenTransition}, nil
	}
	return g.snap.Clone(), nil
}

func (g *fakeGame) Execute(ctx context.Context, action career.Action) error {
	if g.onExecute != nil {
		g.onExecute(ctx)
	}
	if g.execErr != nil {
		return g.execErr
	}
	g.actions = append(g.actions, action)
	if g.noEffect {
		return nil
	}

	s := &g.snap
	switch action.Kind {
	case career.ActionTrain:
		s.Energy -= 10
		s.Fans.Current += 500
		s.Stats[action.Stat] += 10
	case career.ActionRest:
		s.Energy = min(100, s.Energy+40)
	case career.ActionRace:
		s.Fans.Current += 2000
	case career.ActionRecreation:
		s.Mood++
	case career.ActionHandleDebuff:
		s.Debuffs = nil
	case career.ActionChooseEvent:
		s.Screen = career.ScreenLobby
		s.Event = nil
	}
	s.Turn.Index++
	g.pendingTransitions = g.transitions
	return nil
}

type recorder struct {
	steps    []Step
	finished []Result
}

func (r *recorder) RecordStep(_ context.Context, step Step) error {
	r.steps = append(r.steps, step)
	return nil
}

func (r *recorder) Finish(_ context.Context, result Result) error {
	r.finished = append(r.finished, result)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadBackoff = 0
	cfg.MaxBackoff = 0
	cfg.SettleInterval = 0
	return cfg
}

func newLoop(t *testing.T, cfg Config, g *fakeGame, goal int, opts ...Option) *Loop {
	t.Helper()
	opts = append([]Option{WithClock(quartz.NewMock(t))}, opts...)
	return New(cfg, g, g, policy.New(policy.DefaultConfig()), goal, opts...)
}

func TestUnreadableScreenStopsAfterThreeReads(t *testing.T) {
	g := newFakeGame()
	g.alwaysFail = true

	var states []State
	loop := newLoop(t, testConfig(), g, 0, WithObserver(ObserverFunc(func(e Event) {
		if e.Kind == EventState {
			states = append(states, e.State)
		}
	})))
	result, err := loop.Run(context.Background())

	require.Error(t, err)
	var unrecoverable *UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
	assert.Equal(t, FailureRead, unrecoverable.Kind)
	assert.Equal(t, 3, unrecoverable.Attempts)
	assert.ErrorIs(t, err, ErrReadFailure)

	assert.Equal(t, Unrecoverable(FailureRead), result.Cause)
	assert.Equal(t, "unrecoverable(read)", result.Cause.String())
	assert.Equal(t, 3, g.captures)
	assert.Empty(t, g.actions)
	assert.Equal(t, StateStopped, loop.State())
	assert.Equal(t, []State{StateIdle, StateReading, StateStopped}, states)
	assert.Equal(t, 3, result.Stats.Failures["read"])
}

func TestReadRecoversWithinAttempts(t *testing.T) {
	g := newFakeGame()
	g.readErrs = 2

	cfg := testConfig()
	cfg.MaxIterations = 1
	result, err := newLoop(t, cfg, g, 0).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, IterationLimit, result.Cause)
	assert.Equal(t, []career.Action{career.Train(career.Speed)}, g.actions)
	assert.Equal(t, 2, result.Stats.Failures["read"])
}

func TestStopsWhenGoalMet(t *testing.T) {
	g := newFakeGame()
	rec := &recorder{}

	result, err := newLoop(t, testConfig(), g, 2000, WithRecorder(rec)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, GoalMet, result.Cause)
	assert.Len(t, g.actions, 4)
	assert.Equal(t, 2000, result.State.LastFans)
	assert.Equal(t, 4, result.Stats.Count(career.ActionTrain))

	require.Len(t, rec.steps, 4)
	for i, step := range rec.steps {
		assert.Equal(t, i+1, step.Seq)
		assert.Equal(t, "train", step.Rule)
	}
	require.Len(t, rec.finished, 1)
	assert.Equal(t, GoalMet, rec.finished[0].Cause)
}

func TestAdoptsGoalFromScreen(t *testing.T) {
	g := newFakeGame()
	g.snap.Fans.Goal = 1000

	result, err := newLoop(t, testConfig(), g, 0).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, GoalMet, result.Cause)
	assert.Equal(t, 1000, result.State.FanGoal())
	assert.Len(t, g.actions, 2)
}

func TestGoalIgnoredWhenNotStoppingOnGoal(t *testing.T) {
	g := newFakeGame()
	cfg := testConfig()
	cfg.StopOnGoal = false
	cfg.MaxIterations = 6

	result, err := newLoop(t, cfg, g, 500).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, IterationLimit, result.Cause)
	assert.Len(t, g.actions, 6)
}

func TestAmbiguousSnapshotsNeverDispatch(t *testing.T) {
	g := newFakeGame()
	g.snap.Mood = career.MoodUnknown

	result, err := newLoop(t, testConfig(), g, 0).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousSnapshot)
	assert.Equal(t, Unrecoverable(FailureAmbiguous), result.Cause)
	assert.Empty(t, g.actions)
	assert.Equal(t, 5, g.captures)
	assert.Equal(t, 5, result.State.ConsecutiveFailures)
}

func TestAmbiguityClearsBeforeLimit(t *testing.T) {
	g := newFakeGame()
	g.snap.Issues = []string{"energy bar occluded"}

	cfg := testConfig()
	cfg.MaxIterations = 4
	loop := newLoop(t, cfg, g, 0, WithObserver(ObserverFunc(func(e Event) {
		if e.Kind == EventFailure && e.Iteration == 2 {
			g.snap.Issues = nil
		}
	})))
	result, err := loop.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, IterationLimit, result.Cause)
	assert.Len(t, g.actions, 2)
	assert.Equal(t, 0, result.State.ConsecutiveFailures)
}

func TestVerificationMismatchNeverCommits(t *testing.T) {
	g := newFakeGame()
	g.noEffect = true

	result, err := newLoop(t, testConfig(), g, 0).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerification)
	assert.ErrorIs(t, err, career.ErrNoEffect)
	assert.Equal(t, Unrecoverable(FailureVerify), result.Cause)
	assert.Len(t, g.actions, 5)
	assert.Equal(t, career.Action{}, result.State.LastAction)
	assert.Equal(t, 0, result.Stats.Steps)
}

func TestExecutionFailureStops(t *testing.T) {
	g := newFakeGame()
	g.execErr = errors.New("tap rejected")

	result, err := newLoop(t, testConfig(), g, 0).Run(context.Background())

	var unrecoverable *UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
	assert.Equal(t, FailureExecution, unrecoverable.Kind)
	assert.Equal(t, 2, unrecoverable.Attempts)
	assert.ErrorIs(t, err, ErrExecutionFailure)
	assert.Equal(t, Unrecoverable(FailureExecution), result.Cause)
}

func TestCancelledBeforeStart(t *testing.T) {
	g := newFakeGame()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newLoop(t, testConfig(), g, 0).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, Cancelled, result.Cause)
	assert.Equal(t, 0, g.captures)
}

func TestCancellationNeverInterruptsAction(t *testing.T) {
	g := newFakeGame()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var actionCtxErr error
	g.onExecute = func(actionCtx context.Context) {
		cancel()
		actionCtxErr = actionCtx.Err()
	}

	result, err := newLoop(t, testConfig(), g, 0).Run(ctx)

	require.NoError(t, err)
	assert.NoError(t, actionCtxErr)
	assert.Equal(t, Cancelled, result.Cause)
	assert.Equal(t, career.Train(career.Speed), result.State.LastAction)
	assert.Equal(t, 1, result.Stats.Steps)
}

func TestSettleWaitsOutTransitions(t *testing.T) {
	g := newFakeGame()
	g.transitions = 3

	cfg := testConfig()
	cfg.MaxIterations = 2
	result, err := newLoop(t, cfg, g, 0).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, IterationLimit, result.Cause)
	assert.Equal(t, 2, result.Stats.Steps)
	assert.Zero(t, result.Stats.TotalFailures())
}

func TestSettleGivesUpOnEndlessTransition(t *testing.T) {
	g := newFakeGame()
	g.transitions = 100

	cfg := testConfig()
	cfg.MaxConsecutiveFailures = 1
	result, err := newLoop(t, cfg, g, 0).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerification)
	assert.Equal(t, Unrecoverable(FailureVerify), result.Cause)
}

func TestRaceCountIsMonotonic(t *testing.T) {
	g := newFakeGame()
	g.snap.Races = []career.Race{{Name: "Takarazuka Kinen", Grade: career.GradeG1, AptitudeMatch: true}}

	cfg := testConfig()
	cfg.MaxIterations = 5

	var counts []int
	loop := newLoop(t, cfg, g, 0, WithObserver(ObserverFunc(func(e Event) {
		if e.Kind == EventCommit {
			counts = append(counts, e.RacesRun)
		}
	})))
	result, err := loop.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, result.State.RacesRun)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, counts)
}

func TestCareerCompleteStops(t *testing.T) {
	g := newFakeGame()
	g.snap.Screen = career.ScreenComplete

	result, err := newLoop(t, testConfig(), g, 0).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, CareerComplete, result.Cause)
	assert.Empty(t, g.actions)
}

type stubEnricher struct{ calls int }

func (s *stubEnricher) Enrich(_ context.Context, snap career.Snapshot) career.Snapshot {
	s.calls++
	out := snap.Clone()
	out.Event.Options[1].Rewards = []career.Reward{{Kind: career.RewardEnergy, Value: 20}}
	return out
}

func TestEventScreenIsEnriched(t *testing.T) {
	g := newFakeGame()
	g.snap.Screen = career.ScreenEvent
	g.snap.Event = &career.EventPrompt{Name: "New Year's Resolutions", Options: []career.EventOption{{Label: "A"}, {Label: "B"}}}

	enricher := &stubEnricher{}
	cfg := testConfig()
	cfg.MaxIterations = 1
	_, err := newLoop(t, cfg, g, 0, WithEnricher(enricher)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, []career.Action{career.ChooseEvent(1)}, g.actions)
}

// blockingReader never answers, so only the loop's timeout can end a capture.
type blockingReader struct{ release chan struct{} }

func (b blockingReader) Capture(context.Context) (career.Snapshot, error) {
	<-b.release
	return career.Snapshot{}, errors.New("released")
}

func TestCaptureTimeout(t *testing.T) {
	reader := blockingReader{release: make(chan struct{})}
	t.Cleanup(func() { close(reader.release) })

	cfg := testConfig()
	cfg.ReadTimeout = 10 * time.Millisecond
	cfg.ReadBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond

	g := newFakeGame()
	loop := New(cfg, reader, g, policy.New(policy.DefaultConfig()), 0, WithClock(quartz.NewReal()))
	result, err := loop.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadFailure)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, Unrecoverable(FailureRead), result.Cause)
}

type runOutcome struct {
	result Result
	err    error
}

// runAsync runs the loop in the background so the test can drive its clock.
func runAsync(loop *Loop) <-chan runOutcome {
	done := make(chan runOutcome, 1)
	go func() {
		result, err := loop.Run(context.Background())
		done <- runOutcome{result: result, err: err}
	}()
	return done
}

func waitOutcome(ctx context.Context, t *testing.T, done <-chan runOutcome) runOutcome {
	t.Helper()
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		t.Fatal("loop did not stop")
		return runOutcome{}
	}
}

func TestReadBackoffDoublesUpToCap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().AfterFunc("backoff")
	defer trap.Close()

	g := newFakeGame()
	g.alwaysFail = true

	cfg := testConfig()
	cfg.ReadTimeout = 0
	cfg.ReadAttempts = 4
	cfg.ReadBackoff = 500 * time.Millisecond
	cfg.MaxBackoff = 1500 * time.Millisecond
	done := runAsync(New(cfg, g, g, policy.New(policy.DefaultConfig()), 0, WithClock(mClock)))

	for _, want := range []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond} {
		call := trap.MustWait(ctx)
		assert.Equal(t, want, call.Duration)
		call.MustRelease(ctx)
		mClock.Advance(want).MustWait(ctx)
	}

	out := waitOutcome(ctx, t, done)
	require.Error(t, out.err)
	assert.Equal(t, Unrecoverable(FailureRead), out.result.Cause)
	assert.Equal(t, 4, g.captures)
	assert.Equal(t, 4, out.result.Stats.Failures["read"])
}

func TestSettlePacesReadsOnTheClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().AfterFunc("settle")
	defer trap.Close()

	g := newFakeGame()
	g.transitions = 1

	cfg := testConfig()
	cfg.ReadTimeout = 0
	cfg.ActionTimeout = 0
	cfg.SettleInterval = time.Second
	cfg.MaxIterations = 1
	done := runAsync(New(cfg, g, g, policy.New(policy.DefaultConfig()), 0, WithClock(mClock)))

	// One transition frame, then two matching reads.
	start := mClock.Now()
	for range 3 {
		call := trap.MustWait(ctx)
		assert.Equal(t, time.Second, call.Duration)
		call.MustRelease(ctx)
		mClock.Advance(time.Second).MustWait(ctx)
	}

	out := waitOutcome(ctx, t, done)
	require.NoError(t, out.err)
	assert.Equal(t, IterationLimit, out.result.Cause)
	assert.Equal(t, 1, out.result.Stats.Steps)
	assert.Equal(t, 3*time.Second, mClock.Since(start))
}

func TestSettleStopsAtDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().AfterFunc("settle")
	defer trap.Close()

	g := newFakeGame()
	g.transitions = 100

	cfg := testConfig()
	cfg.ReadTimeout = 0
	cfg.ActionTimeout = 0
	cfg.SettleInterval = time.Second
	cfg.SettleTimeout = 2500 * time.Millisecond
	cfg.SettleAttempts = 8
	cfg.MaxConsecutiveFailures = 1
	done := runAsync(New(cfg, g, g, policy.New(policy.DefaultConfig()), 0, WithClock(mClock)))

	// Reads at 1s and 2s are inside the deadline; the read at 3s is the last.
	for range 3 {
		call := trap.MustWait(ctx)
		call.MustRelease(ctx)
		mClock.Advance(time.Second).MustWait(ctx)
	}

	out := waitOutcome(ctx, t, done)
	require.Error(t, out.err)
	assert.ErrorIs(t, out.err, ErrVerification)
	assert.ErrorContains(t, out.err, "after 3 reads")
	assert.Equal(t, Unrecoverable(FailureVerify), out.result.Cause)
	assert.Equal(t, 4, g.captures)
	assert.Zero(t, out.result.Stats.Steps)
}

// lateAckExecutor holds its first acknowledgement past the action timeout.
// When landed is set the first action still takes effect.
type lateAckExecutor struct {
	game    *fakeGame
	landed  bool
	applied chan struct{}
	release chan struct{}
	calls   int
}

func newLateAckExecutor(t *testing.T, g *fakeGame, landed bool) *lateAckExecutor {
	e := &lateAckExecutor{game: g, landed: landed, applied: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(func() { close(e.release) })
	return e
}

func (e *lateAckExecutor) Execute(ctx context.Context, action career.Action) error {
	e.calls++
	if e.calls > 1 {
		return e.game.Execute(ctx, action)
	}
	if e.landed {
		_ = e.game.Execute(ctx, action)
	}
	close(e.applied)
	<-ctx.Done()
	<-e.release
	return nil
}

func runLateAck(t *testing.T, landed bool) (*fakeGame, *lateAckExecutor, runOutcome) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().AfterFunc("action")
	defer trap.Close()

	g := newFakeGame()
	exec := newLateAckExecutor(t, g, landed)

	cfg := testConfig()
	cfg.ReadTimeout = 0
	cfg.MaxIterations = 1
	done := runAsync(New(cfg, g, exec, policy.New(policy.DefaultConfig()), 0, WithClock(mClock)))

	call := trap.MustWait(ctx)
	assert.Equal(t, cfg.ActionTimeout, call.Duration)
	call.MustRelease(ctx)
	select {
	case <-exec.applied:
	case <-ctx.Done():
		t.Fatal("action was never dispatched")
	}
	mClock.Advance(cfg.ActionTimeout).MustWait(ctx)

	if !landed {
		call = trap.MustWait(ctx)
		call.MustRelease(ctx)
	}
	return g, exec, waitOutcome(ctx, t, done)
}

func TestUnacknowledgedActionThatLandedIsNotRepeated(t *testing.T) {
	g, exec, out := runLateAck(t, true)

	require.NoError(t, out.err)
	assert.Equal(t, IterationLimit, out.result.Cause)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, []career.Action{career.Train(career.Speed)}, g.actions)
	assert.Equal(t, 2, g.snap.Turn.Index)
	assert.Equal(t, 1, out.result.Stats.Steps)
	assert.Equal(t, 1, out.result.Stats.Failures["execution"])
	assert.Zero(t, out.result.Stats.Failures["verify"])
}

func TestUnacknowledgedActionWithoutEffectIsRetried(t *testing.T) {
	g, exec, out := runLateAck(t, false)

	require.NoError(t, out.err)
	assert.Equal(t, IterationLimit, out.result.Cause)
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, []career.Action{career.Train(career.Speed)}, g.actions)
	assert.Equal(t, 2, g.snap.Turn.Index)
	assert.Equal(t, 1, out.result.Stats.Steps)
}

func TestUnacknowledgedActionOnUnsettledScreenIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().AfterFunc("action")
	defer trap.Close()

	g := newFakeGame()
	g.transitions = 100
	exec := newLateAckExecutor(t, g, true)

	cfg := testConfig()
	cfg.ReadTimeout = 0
	cfg.MaxConsecutiveFailures = 1
	done := runAsync(New(cfg, g, exec, policy.New(policy.DefaultConfig()), 0, WithClock(mClock)))

	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	<-exec.applied
	mClock.Advance(cfg.ActionTimeout).MustWait(ctx)

	out := waitOutcome(ctx, t, done)
	require.Error(t, out.err)
	assert.ErrorIs(t, out.err, ErrVerification)
	assert.Equal(t, Unrecoverable(FailureVerify), out.result.Cause)
	assert.Equal(t, 1, exec.calls)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ReadAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SettleAttempts = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ReadTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}
