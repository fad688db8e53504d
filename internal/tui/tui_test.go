package tui

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func lobby() *career.Snapshot {
	return &career.Snapshot{
		Screen:  career.ScreenLobby,
		Mood:    career.MoodGood,
		Energy:  64,
		Turn:    career.Turn{Index: 30, Year: "Classic Year", Label: "Early Jun"},
		Debuffs: []string{"Night Owl"},
		Fans:    career.Fans{Current: 18000, Goal: 30000},
	}
}

func TestFormatEvent(t *testing.T) {
	decision := policy.Decision{Action: career.Train(career.Speed), Rule: "train"}

	line, ok := FormatEvent(session.Event{Kind: session.EventDecision, Decision: decision, Snapshot: lobby()})
	require.True(t, ok)
	assert.Equal(t, "T30 Early Jun train Speed [train]", line)

	line, ok = FormatEvent(session.Event{Kind: session.EventDecision, Decision: policy.Decision{Ambiguous: true, Reasoning: "mood unreadable"}})
	require.True(t, ok)
	assert.Equal(t, "? mood unreadable", line)

	line, ok = FormatEvent(session.Event{Kind: session.EventCommit, Decision: decision, Snapshot: lobby()})
	require.True(t, ok)
	assert.Contains(t, line, "ok: energy 64, mood Good, fans 18000")

	line, ok = FormatEvent(session.Event{Kind: session.EventFailure, Failure: session.FailureRead, Err: errors.New("window minimised")})
	require.True(t, ok)
	assert.Equal(t, "! read failure window minimised", line)

	line, ok = FormatEvent(session.Event{Kind: session.EventStop, Cause: session.GoalMet, Fans: 30500, RacesRun: 9})
	require.True(t, ok)
	assert.Equal(t, "Stopped: goal-met (fans 30500, races 9)", line)

	_, ok = FormatEvent(session.Event{Kind: session.EventState})
	assert.False(t, ok)
}

func TestStatusFoldsEvents(t *testing.T) {
	var s Status
	s.Apply(session.Event{Kind: session.EventSnapshot, State: session.StateReading, Snapshot: lobby(), FanGoal: 30000})
	s.Apply(session.Event{Kind: session.EventSnapshot, Snapshot: &career.Snapshot{Screen: career.ScreenTransition}})
	s.Apply(session.Event{Kind: session.EventCommit, Decision: policy.Decision{Rule: "train"}, Fans: 18000, FanGoal: 30000})
	s.Apply(session.Event{Kind: session.EventFailure, Failure: session.FailureVerify})

	assert.Equal(t, career.ScreenLobby, s.Screen)
	assert.Equal(t, 30, s.Turn.Index)
	assert.Equal(t, career.MoodGood, s.Mood)
	assert.Equal(t, 1, s.Steps)
	assert.Equal(t, 1, s.Failures)
	assert.Equal(t, "train", s.LastRule)
	assert.Nil(t, s.Stopped)

	out := s.Render()
	assert.Contains(t, out, "T30 Early Jun")
	assert.Contains(t, out, "Night Owl")
	assert.Contains(t, out, "######.... 64")

	s.Apply(session.Event{Kind: session.EventStop, Cause: session.CareerComplete})
	require.NotNil(t, s.Stopped)
	assert.Contains(t, s.Render(), "Stopped: career-complete")
}

func TestModelLogsEvents(t *testing.T) {
	m := NewTUIModel(quietLogger(), nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	decision := policy.Decision{Action: career.Rest(), Rule: "low-energy"}
	m.Update(EventMsg{Event: session.Event{Kind: session.EventDecision, Decision: decision, Snapshot: lobby()}})
	m.Update(EventMsg{Event: session.Event{Kind: session.EventState, State: session.StateActing}})
	m.Update(DoneMsg{})

	logLines := m.Log()
	require.Len(t, logLines, 2)
	assert.Contains(t, logLines[0], "rest")
	assert.Equal(t, session.StateActing, m.Status().State)

	view := m.View()
	assert.Contains(t, view, "loop finished")
	assert.Contains(t, view, "Career")
}

func TestQuitCancelsOnce(t *testing.T) {
	calls := 0
	m := NewTUIModel(quietLogger(), func() { calls++ })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, 1, calls)
	assert.Empty(t, m.View())
}

func TestLogIsCapped(t *testing.T) {
	m := NewTUIModel(quietLogger(), nil)
	for i := 0; i < maxLogLines+10; i++ {
		m.AddLogEntry("line")
	}
	assert.Len(t, m.Log(), maxLogLines)
}

func TestPrinterWritesLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Observe(session.Event{Kind: session.EventState})
	p.Observe(session.Event{Kind: session.EventStop, Cause: session.Cancelled})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "Stopped: cancelled (fans 0, races 0)", lines[0])
}
