package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
)

// Bridge forwards loop events into a running program. It is a session.Observer.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge creates a bridge for program. Sends block until the program has
// started and are dropped once it has exited.
func NewBridge(program *tea.Program) *Bridge {
	return &Bridge{send: program.Send}
}

// Observe implements session.Observer.
func (b *Bridge) Observe(e session.Event) {
	b.send(EventMsg{Event: e})
}

// Done tells the program the loop has returned.
func (b *Bridge) Done(err error) {
	b.send(DoneMsg{Err: err})
}

// Printer writes one line per loop event. It is the non-interactive monitor.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Observe implements session.Observer.
func (p *Printer) Observe(e session.Event) {
	line, ok := FormatEvent(e)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}
