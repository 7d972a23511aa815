package core

import (
	"context"
	"fmt"
	"strings"
)

// SCXMLProcessorType is the type of the built-in SCXML event I/O
// processor.
const SCXMLProcessorType = "http://www.w3.org/TR/scxml/#SCXMLEventProcessor"

// Reserved targets.
const (
	TargetInternal    = "#_internal"
	TargetParent      = "#_parent"
	TargetSessionPfx  = "#_scxml_"
	TargetInvokePfx   = "#_"
	scxmlShortType    = "scxml"
	scxmlShortTypeAlt = "http://www.w3.org/TR/scxml/"
)

// IOProcessor sends events from a session to a target.
//
// Send can be called from the session's goroutine or from a timer
// goroutine (for delayed sends), so it should only enqueue or
// otherwise hand off the event.  Returned errors wrapping
// ErrBadTarget become error.execution; other errors become
// error.communication.
type IOProcessor interface {
	// Type is the processor's type URI.
	Type() string

	// Location is the address other parties can use to reach the
	// session via this processor.
	Location(sessionId string) string

	Send(ctx context.Context, from *Session, target string, ev *Event) error
}

// Registry finds sessions by id.
type Registry interface {
	Register(s *Session) error
	Unregister(s *Session)
	Lookup(sessionId string) (*Session, bool)
}

// Loader produces Documents from named sources.
type Loader interface {
	// Load reads the Document at the given source (a URI or other
	// name).
	Load(ctx context.Context, src string) (*Document, error)

	// Parse reads a Document from its serialized form.
	Parse(ctx context.Context, bs []byte) (*Document, error)
}

// SCXMLProcessor is the built-in SCXML event I/O processor.
type SCXMLProcessor struct {
}

func (p *SCXMLProcessor) Type() string {
	return SCXMLProcessorType
}

func (p *SCXMLProcessor) Location(sessionId string) string {
	return TargetSessionPfx + sessionId
}

// Send routes the event according to the reserved target syntax.
func (p *SCXMLProcessor) Send(ctx context.Context, from *Session, target string, ev *Event) error {
	ev.OriginType = SCXMLProcessorType
	if ev.Origin == "" {
		ev.Origin = p.Location(from.Id())
	}

	switch {
	case target == "":
		if !from.external.Put(ev) {
			return fmt.Errorf("%w: %s", ErrUnreachable, from.Id())
		}
		return nil

	case target == TargetInternal:
		// Only legal on the session's goroutine, which is why
		// delayed sends to #_internal are rejected.
		ev.Type = InternalEvent
		from.internal = append(from.internal, ev)
		return nil

	case target == TargetParent:
		if from.parent == nil {
			return fmt.Errorf("%w: %s has no parent", ErrUnreachable, from.Id())
		}
		return from.parent.fromChild(from.invokeId, ev)

	case strings.HasPrefix(target, TargetSessionPfx):
		id := target[len(TargetSessionPfx):]
		if id == "" {
			return fmt.Errorf("%w: %s", ErrBadTarget, target)
		}
		to, have := from.registry.Lookup(id)
		if !have {
			return fmt.Errorf("%w: %s", ErrUnreachable, target)
		}
		return to.Send(ev)

	case strings.HasPrefix(target, TargetInvokePfx):
		id := target[len(TargetInvokePfx):]
		if id == "" {
			return fmt.Errorf("%w: %s", ErrBadTarget, target)
		}
		child, have := from.child(id)
		if !have {
			return fmt.Errorf("%w: %s", ErrUnreachable, target)
		}
		return child.Send(ev)

	default:
		return fmt.Errorf("%w: %s", ErrBadTarget, target)
	}
}

func isSCXMLType(typ string) bool {
	switch typ {
	case "", SCXMLProcessorType, scxmlShortType, scxmlShortTypeAlt:
		return true
	}
	return false
}
