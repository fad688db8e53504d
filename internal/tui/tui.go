// Package tui renders a running career loop: a scrolling decision log next to
// a status sidebar. It is fed with loop events and never drives the loop.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
)

const maxLogLines = 2000

// EventMsg carries one loop event into the program.
type EventMsg struct {
	Event session.Event
}

// DoneMsg tells the model the loop has returned.
type DoneMsg struct {
	Err error
}

// TUIModel represents the Bubble Tea model for a career run
type TUIModel struct {
	logger *log.Logger
	onQuit func()

	logViewport viewport.Model
	gameLog     []string
	status      Status
	follow      bool
	done        bool
	quitting    bool

	width       int
	height      int
	initialized bool
}

// NewTUIModel creates a model. onQuit is called once when the user asks to
// quit; it should cancel the loop.
func NewTUIModel(logger *log.Logger, onQuit func()) *TUIModel {
	vp := viewport.New(10, 5)
	vp.SetContent("")
	if onQuit == nil {
		onQuit = func() {}
	}
	return &TUIModel{
		logger:      logger.WithPrefix("tui"),
		onQuit:      onQuit,
		logViewport: vp,
		follow:      true,
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return nil
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.status.Apply(msg.Event)
		if line, ok := FormatEvent(msg.Event); ok {
			m.AddLogEntry(line)
		}
		return m, nil

	case DoneMsg:
		m.done = true
		if msg.Err != nil {
			m.AddLogEntry(ErrorStyle.Render("Loop exited: " + msg.Err.Error()))
		}
		m.AddLogEntry(InfoStyle.Render("Press q to exit"))
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.quitting {
				m.quitting = true
				m.onQuit()
			}
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "up", "k":
			m.follow = false
			m.logViewport.ScrollUp(1)
		case "down", "j":
			m.logViewport.ScrollDown(1)
		case "pgup", "b":
			m.follow = false
			m.logViewport.HalfPageUp()
		case "pgdown", "f":
			m.logViewport.HalfPageDown()
		case "home", "g":
			m.follow = false
			m.logViewport.GotoTop()
		case "end", "G":
			m.follow = true
			m.logViewport.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	help := m.renderHelp()
	helpHeight := lipgloss.Height(help)

	sidebarContent := m.status.Render()
	sidebarWidth := max(28, lipgloss.Width(sidebarContent))
	paneHeight := max(1, m.height-helpHeight-2)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(1, m.width-sidebarWidth-4)
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.initialized = true
		m.logViewport.GotoBottom()
	} else if m.follow {
		m.logViewport.GotoBottom()
	}

	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(logWidth).
		Height(paneHeight).
		Render(m.logViewport.View())

	top := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, top, help)
}

func (m *TUIModel) renderHelp() string {
	text := "↑↓ scroll • PgUp/PgDn half page • End follow • q stop and quit"
	if m.done {
		text = "loop finished • ↑↓ scroll • q quit"
	}
	return InfoStyle.Render(text)
}

// AddLogEntry appends a line to the log, dropping the oldest past the cap.
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	if over := len(m.gameLog) - maxLogLines; over > 0 {
		m.gameLog = append(m.gameLog[:0], m.gameLog[over:]...)
	}
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 && m.follow {
		m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
		m.logViewport.GotoBottom()
	}
}

// Log returns a copy of the log lines.
func (m *TUIModel) Log() []string {
	out := make([]string, len(m.gameLog))
	copy(out, m.gameLog)
	return out
}

// Status returns the current sidebar status.
func (m *TUIModel) Status() Status {
	return m.status
}
