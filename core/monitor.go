package core

import (
	"fmt"
	"strings"
	"sync"
)

// Monitor hears about what a session does.  Calls come from the
// session's goroutine.
type Monitor interface {
	// Event is called when the session starts processing an
	// event (internal or external).
	Event(s *Session, ev *Event)

	Entered(s *Session, id string)
	Exited(s *Session, id string)

	// Transition is called for each transition in a microstep
	// just before its content is executed.
	Transition(s *Session, source string, targets []string)

	Log(s *Session, label string, v interface{})

	// Terminated is called with the final configuration.
	Terminated(s *Session, final []string)
}

// Trace is a Monitor that records a line for everything it hears.
//
// Lines look like "enter s1", "exit s1", "event e1", "transition s1
// -> s2 s3", "log label value", "done s1 s2".
type Trace struct {
	sync.Mutex
	Lines []string

	// Quiet, when true, skips "event" and "log" lines.
	Quiet bool

	// Tee, if not nil, also hears every line.
	Tee func(sessionId, line string)

	done chan struct{}
}

func NewTrace() *Trace {
	return &Trace{
		done: make(chan struct{}),
	}
}

func (t *Trace) add(s *Session, line string) {
	t.Lock()
	t.Lines = append(t.Lines, line)
	t.Unlock()
	if t.Tee != nil {
		t.Tee(s.Id(), line)
	}
}

func (t *Trace) Event(s *Session, ev *Event) {
	if t.Quiet {
		return
	}
	t.add(s, "event "+ev.Name)
}

func (t *Trace) Entered(s *Session, id string) {
	t.add(s, "enter "+id)
}

func (t *Trace) Exited(s *Session, id string) {
	t.add(s, "exit "+id)
}

func (t *Trace) Transition(s *Session, source string, targets []string) {
	t.add(s, "transition "+source+" -> "+strings.Join(targets, " "))
}

func (t *Trace) Log(s *Session, label string, v interface{}) {
	if t.Quiet {
		return
	}
	t.add(s, fmt.Sprintf("log %s %v", label, v))
}

func (t *Trace) Terminated(s *Session, final []string) {
	t.add(s, "done "+strings.Join(final, " "))
	if t.done != nil && s.parent == nil {
		select {
		case <-t.done:
		default:
			close(t.done)
		}
	}
}

// Done is closed when a top-level session using this Trace
// terminates.
func (t *Trace) Done() <-chan struct{} {
	return t.done
}

// Get returns a copy of the lines so far.
func (t *Trace) Get() []string {
	t.Lock()
	defer t.Unlock()
	acc := make([]string, len(t.Lines))
	copy(acc, t.Lines)
	return acc
}

// Filter returns the lines with the given prefix.
func (t *Trace) Filter(prefix string) []string {
	var acc []string
	for _, line := range t.Get() {
		if strings.HasPrefix(line, prefix) {
			acc = append(acc, line)
		}
	}
	return acc
}
