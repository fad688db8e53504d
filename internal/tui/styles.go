package tui

import "github.com/charmbracelet/lipgloss"

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true)

	TurnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ActionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	RuleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var moodStyles = map[string]lipgloss.Style{
	"Great":  SuccessStyle,
	"Good":   SuccessStyle,
	"Normal": lipgloss.NewStyle(),
	"Bad":    WarningStyle,
	"Worse":  ErrorStyle,
}

func moodStyle(mood string) lipgloss.Style {
	if s, ok := moodStyles[mood]; ok {
		return s
	}
	return InfoStyle
}
