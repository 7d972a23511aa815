package core

// Definition errors are user errors reported by Compile.  Runtime
// errors in a running machine become error.execution and
// error.communication events instead.

import (
	"errors"
	"fmt"
)

// UnknownState occurs when a transition (or initial) refers to a
// state id that isn't in the Document.
type UnknownState struct {
	Document *Document
	Id       string
	From     string
}

func (e *UnknownState) Error() string {
	return `state "` + e.Id + `" (referenced by "` + e.From + `") not found in document "` + e.Document.Name + `"`
}

// DuplicateId occurs when two states have the same id.
type DuplicateId struct {
	Document *Document
	Id       string
}

func (e *DuplicateId) Error() string {
	return `duplicate state id "` + e.Id + `" in document "` + e.Document.Name + `"`
}

// BadDocument reports a structural problem at a state.
type BadDocument struct {
	Document *Document
	StateId  string
	Problem  string
}

func (e *BadDocument) Error() string {
	return fmt.Sprintf(`bad state "%s" in document "%s": %s`, e.StateId, e.Document.Name, e.Problem)
}

var (
	// ErrAlreadyStarted is returned by Session.Start for a
	// session that has been started before.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrTerminated is returned by Session.Send after the session
	// has terminated.
	ErrTerminated = errors.New("session terminated")

	// ErrBadTarget is returned by an IOProcessor for a target it
	// can't parse.  Raised as error.execution.
	ErrBadTarget = errors.New("bad target")

	// ErrUnreachable is returned by an IOProcessor for a target
	// it can't reach.  Raised as error.communication.
	ErrUnreachable = errors.New("target unreachable")

	// ErrUnknownDatamodel is returned when a Document names a
	// datamodel that isn't registered.
	ErrUnknownDatamodel = errors.New("unknown datamodel")

	// ErrNoLoader occurs when an invoke needs to load a
	// document and the session has no Loader.
	ErrNoLoader = errors.New("no loader")

	// ErrBadDelay is returned by ParseDelay.
	ErrBadDelay = errors.New("bad delay")
)
