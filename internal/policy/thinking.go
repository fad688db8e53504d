package policy

import (
	"fmt"
	"strings"
)

// Thinking accumulates the reasons behind a decision so the operator can see
// why the bot did what it did.
type Thinking struct {
	thoughts []string
}

// Add appends a formatted thought.
func (t *Thinking) Add(format string, args ...any) {
	t.thoughts = append(t.thoughts, fmt.Sprintf(format, args...))
}

// String returns the thoughts joined in order.
func (t *Thinking) String() string {
	if len(t.thoughts) == 0 {
		return "No clear reasoning available"
	}
	return strings.Join(t.thoughts, ". ")
}
