package core

// Document is the declarative form of a state machine.
//
// A Document is usually produced by a loader (see package loader),
// but it's also easy to write one by hand in Go.  Compile() turns a
// Document into a Definition.
type Document struct {
	// Name is the optional name of the machine (_name).
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Doc is an optional Markdown description.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Datamodel names the datamodel.  Defaults to DefaultDatamodel.
	Datamodel string `json:"datamodel,omitempty" yaml:",omitempty"`

	// Binding is "early" (the default) or "late".
	Binding Binding `json:"binding,omitempty" yaml:",omitempty"`

	// Initial gives the ids of the initial states.  Defaults to
	// the first top-level state.
	Initial []string `json:"initial,omitempty" yaml:",omitempty"`

	States []*State `json:"states"`

	Data []*Data `json:"data,omitempty" yaml:",omitempty"`

	// Script is executed once, after data is initialized and
	// before the initial states are entered.
	Script string `json:"script,omitempty" yaml:",omitempty"`
}

// Binding is the datamodel binding mode.
type Binding string

const (
	EarlyBinding Binding = "early"
	LateBinding  Binding = "late"
)

// HistoryType says whether (and how) a state is a history
// pseudostate.
type HistoryType string

const (
	NoHistory      HistoryType = ""
	ShallowHistory HistoryType = "shallow"
	DeepHistory    HistoryType = "deep"
)

// TransitionType is "external" (the default) or "internal".
type TransitionType string

const (
	External TransitionType = "external"
	Internal TransitionType = "internal"
)

// State is a <state>, <parallel>, <final>, or <history>.
type State struct {
	Id string `json:"id"`

	Parallel bool `json:"parallel,omitempty" yaml:",omitempty"`
	Final    bool `json:"final,omitempty" yaml:",omitempty"`

	// History, if not empty, makes this state a history
	// pseudostate.  A history state has exactly one Transition,
	// which gives the default history configuration.
	History HistoryType `json:"history,omitempty" yaml:",omitempty"`

	// Initial gives the ids of the initial descendants.  Can't
	// be given with InitialTransition.
	Initial []string `json:"initial,omitempty" yaml:",omitempty"`

	// InitialTransition is the <initial> element's transition.
	InitialTransition *Transition `json:"initialTransition,omitempty" yaml:"initialTransition,omitempty"`

	States []*State `json:"states,omitempty" yaml:",omitempty"`

	// OnEntry has one block for each <onentry>.
	OnEntry [][]Action `json:"-" yaml:"-"`

	// OnExit has one block for each <onexit>.
	OnExit [][]Action `json:"-" yaml:"-"`

	Transitions []*Transition `json:"transitions,omitempty" yaml:",omitempty"`

	Invokes []*Invoke `json:"invokes,omitempty" yaml:",omitempty"`

	Data []*Data `json:"data,omitempty" yaml:",omitempty"`

	// DoneData is only used by final states.
	DoneData *DoneData `json:"donedata,omitempty" yaml:",omitempty"`
}

// Transition is a <transition>.
type Transition struct {
	// Event is a space-separated list of event descriptors.  An
	// empty Event makes an eventless transition.
	Event string `json:"event,omitempty" yaml:",omitempty"`

	Cond string `json:"cond,omitempty" yaml:",omitempty"`

	Type TransitionType `json:"type,omitempty" yaml:",omitempty"`

	// Targets are state ids.  No targets makes a targetless
	// transition.
	Targets []string `json:"targets,omitempty" yaml:",omitempty"`

	Actions []Action `json:"-" yaml:"-"`
}

// Invoke is an <invoke>.
type Invoke struct {
	Type     string `json:"type,omitempty" yaml:",omitempty"`
	TypeExpr string `json:"typeexpr,omitempty" yaml:",omitempty"`

	Src     string `json:"src,omitempty" yaml:",omitempty"`
	SrcExpr string `json:"srcexpr,omitempty" yaml:",omitempty"`

	Id         string `json:"id,omitempty" yaml:",omitempty"`
	IdLocation string `json:"idlocation,omitempty" yaml:",omitempty"`

	Namelist    []string `json:"namelist,omitempty" yaml:",omitempty"`
	AutoForward bool     `json:"autoforward,omitempty" yaml:",omitempty"`

	Params []*Param `json:"params,omitempty" yaml:",omitempty"`

	// Content can provide an inline Document for the child.
	Content *Content `json:"content,omitempty" yaml:",omitempty"`

	Finalize []Action `json:"-" yaml:"-"`
}

// Data is a <data> item.
type Data struct {
	Id   string `json:"id"`
	Expr string `json:"expr,omitempty" yaml:",omitempty"`

	// Src is a URI that a loader should have resolved into Value.
	Src string `json:"src,omitempty" yaml:",omitempty"`

	// Value is inline (or loaded) content.
	Value interface{} `json:"value,omitempty" yaml:",omitempty"`
}

// Param is a <param>.
type Param struct {
	Name     string `json:"name"`
	Expr     string `json:"expr,omitempty" yaml:",omitempty"`
	Location string `json:"location,omitempty" yaml:",omitempty"`
}

// Content is a <content>.
type Content struct {
	Expr string `json:"expr,omitempty" yaml:",omitempty"`

	// Body is the literal content.
	Body interface{} `json:"body,omitempty" yaml:",omitempty"`

	// Document is an inline machine for <invoke>.
	Document *Document `json:"document,omitempty" yaml:",omitempty"`
}

// DoneData is a <donedata>.
type DoneData struct {
	Content *Content `json:"content,omitempty" yaml:",omitempty"`
	Params  []*Param `json:"params,omitempty" yaml:",omitempty"`
}

// Walk calls f for every state in document order.  The parent of a
// top-level state is nil.
func (d *Document) Walk(f func(parent, s *State)) {
	var walk func(parent *State, ss []*State)
	walk = func(parent *State, ss []*State) {
		for _, s := range ss {
			f(parent, s)
			walk(s, s.States)
		}
	}
	walk(nil, d.States)
}
