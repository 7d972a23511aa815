package core

import (
	"context"
	"errors"
)

var (
	// ActionNotFound occurs when a datamodel calls an action that
	// isn't in the session's action registry.
	ActionNotFound = errors.New("action not found")

	// DefaultActions will be used by a Session if its Options
	// don't provide any Actions.
	DefaultActions = make(map[string]ActionFunc)
)

// ActionFunc is a Go function that a datamodel can expose to
// expressions.  For example, the ECMAScript datamodel makes each
// registered ActionFunc a global function.  A returned error becomes
// an error.execution event.
type ActionFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// Action is a piece of executable content.
//
// The set of Actions is closed: If, ForEach, Assign, Raise, Log,
// Send, Cancel, and Script.
type Action interface {
	// Kind returns the element name ("if", "send", ...).
	Kind() string

	action()
}

// If is <if>, with its <elseif>s and <else>.
type If struct {
	Cond    string    `json:"cond"`
	Then    []Action  `json:"-"`
	ElseIfs []*ElseIf `json:"-"`
	Else    []Action  `json:"-"`
}

// ElseIf is an <elseif> branch of an If.
type ElseIf struct {
	Cond    string   `json:"cond"`
	Actions []Action `json:"-"`
}

// ForEach is <foreach>.
type ForEach struct {
	Array   string   `json:"array"`
	Item    string   `json:"item"`
	Index   string   `json:"index,omitempty"`
	Actions []Action `json:"-"`
}

// Assign is <assign>.  Content, if not nil, is the value to assign.
type Assign struct {
	Location string      `json:"location"`
	Expr     string      `json:"expr,omitempty"`
	Content  interface{} `json:"content,omitempty"`
}

// Raise is <raise>.
type Raise struct {
	Event string `json:"event"`
}

// Log is <log>.
type Log struct {
	Label string `json:"label,omitempty"`
	Expr  string `json:"expr,omitempty"`
}

// Send is <send>.
type Send struct {
	Event     string `json:"event,omitempty"`
	EventExpr string `json:"eventexpr,omitempty"`

	Target     string `json:"target,omitempty"`
	TargetExpr string `json:"targetexpr,omitempty"`

	Type     string `json:"type,omitempty"`
	TypeExpr string `json:"typeexpr,omitempty"`

	Id         string `json:"id,omitempty"`
	IdLocation string `json:"idlocation,omitempty"`

	Delay     string `json:"delay,omitempty"`
	DelayExpr string `json:"delayexpr,omitempty"`

	Namelist []string `json:"namelist,omitempty"`
	Params   []*Param `json:"params,omitempty"`
	Content  *Content `json:"content,omitempty"`
}

// Cancel is <cancel>.
type Cancel struct {
	SendId     string `json:"sendid,omitempty"`
	SendIdExpr string `json:"sendidexpr,omitempty"`
}

// Script is <script>.
type Script struct {
	Src string `json:"src"`
}

func (*If) Kind() string      { return "if" }
func (*ForEach) Kind() string { return "foreach" }
func (*Assign) Kind() string  { return "assign" }
func (*Raise) Kind() string   { return "raise" }
func (*Log) Kind() string     { return "log" }
func (*Send) Kind() string    { return "send" }
func (*Cancel) Kind() string  { return "cancel" }
func (*Script) Kind() string  { return "script" }

func (*If) action()      {}
func (*ForEach) action() {}
func (*Assign) action()  {}
func (*Raise) action()   {}
func (*Log) action()     {}
func (*Send) action()    {}
func (*Cancel) action()  {}
func (*Script) action()  {}

// WalkActions calls f on every action in the block, recursing into
// If and ForEach bodies.
func WalkActions(as []Action, f func(Action)) {
	for _, a := range as {
		f(a)
		switch vv := a.(type) {
		case *If:
			WalkActions(vv.Then, f)
			for _, e := range vv.ElseIfs {
				WalkActions(e.Actions, f)
			}
			WalkActions(vv.Else, f)
		case *ForEach:
			WalkActions(vv.Actions, f)
		}
	}
}
