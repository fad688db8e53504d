package journal

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
	"github.com/daftuyda/umamusume-auto-train/internal/simulator"
	"github.com/daftuyda/umamusume-auto-train/internal/statistics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs", "journal.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	seed := int64(7)
	run, err := j.StartRun(ctx, RunInfo{Source: "simulator", Seed: &seed})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	steps := []session.Step{
		{Seq: 1, Turn: career.Turn{Index: 1, Label: "Early Jan"}, Action: career.Train(career.Speed), Rule: "train", Mood: career.MoodGood, Energy: 80, Fans: 0},
		{Seq: 2, Turn: career.Turn{Index: 2, Label: "Late Jan"}, Action: career.Rest(), Rule: "low-energy", Reasoning: "energy 35 below 40", Mood: career.MoodGood, Energy: 90, Fans: 0},
	}
	for _, s := range steps {
		require.NoError(t, run.RecordStep(ctx, s))
	}

	summary, err := j.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, summary.Finished())
	assert.Equal(t, 2, summary.Steps)
	require.NotNil(t, summary.Seed)
	assert.Equal(t, int64(7), *summary.Seed)

	state := career.NewSessionState(30000)
	state.RacesRun = 3
	state.Iterations = 12
	state.LastFans = 12000
	stats := statistics.New()
	stats.AddFailure("read")

	require.NoError(t, run.Finish(ctx, session.Result{Cause: session.GoalMet, State: *state, Stats: stats}))

	summary, err = j.GetRun(ctx, run.ID[:12])
	require.NoError(t, err)
	assert.True(t, summary.Finished())
	assert.Equal(t, "goal-met", summary.Cause)
	assert.Equal(t, 12000, summary.Fans)
	assert.Equal(t, 30000, summary.FanGoal)
	assert.Equal(t, 3, summary.RacesRun)
	assert.Equal(t, 12, summary.Iterations)
	assert.Equal(t, 1, summary.Failures)

	got, err := j.Steps(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "train Speed", got[0].Action)
	assert.Equal(t, "Good", got[0].Mood)
	assert.Equal(t, "Late Jan", got[1].Turn.Label)
	assert.Equal(t, "energy 35 below 40", got[1].Reasoning)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := j.StartRun(ctx, RunInfo{Source: "agent"})
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)
	assert.Nil(t, runs[0].Seed)

	runs, err = j.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	_, err := j.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	ghost := &Run{ID: "ghost", journal: j}
	err = ghost.Finish(ctx, session.Result{Cause: session.Cancelled, State: *career.NewSessionState(0)})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path, quietLogger())
	require.NoError(t, err)
	run, err := j.StartRun(ctx, RunInfo{Source: "agent", FanGoal: 5000})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(ctx, path, quietLogger())
	require.NoError(t, err)
	defer j.Close()

	summary, err := j.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 5000, summary.FanGoal)
}

func TestRecordsSimulatedCareer(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	seed := int64(42)
	run, err := j.StartRun(ctx, RunInfo{Source: "simulator", Seed: &seed})
	require.NoError(t, err)

	sim := simulator.New(simulator.Config{Seed: seed, Turns: 24, Logger: quietLogger()})
	cfg := session.DefaultConfig()
	cfg.ReadBackoff, cfg.MaxBackoff, cfg.SettleInterval = 0, 0, 0

	loop := session.New(cfg, sim, sim, policy.New(policy.DefaultConfig()), 0,
		session.WithClock(quartz.NewMock(t)),
		session.WithLogger(quietLogger()),
		session.WithRecorder(run))
	result, err := loop.Run(ctx)
	require.NoError(t, err)

	summary, err := j.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "career-complete", summary.Cause)
	assert.Equal(t, result.Stats.Steps, summary.Steps)
	assert.Equal(t, sim.Summary().RacesRun, summary.RacesRun)

	steps, err := j.Steps(ctx, run.ID)
	require.NoError(t, err)
	for i, s := range steps {
		assert.Equal(t, i+1, s.Seq)
	}
}
