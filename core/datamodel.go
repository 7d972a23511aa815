package core

import (
	"context"

	log "github.com/sirupsen/logrus"
)

var (
	// DefaultDatamodel is used when a Document doesn't name one.
	DefaultDatamodel = "ecmascript"

	// DefaultDatamodels will be used by a Session if its Options
	// don't provide Datamodels.  Datamodel packages register
	// themselves here in init().
	DefaultDatamodels = make(map[string]DatamodelFactory)
)

// DatamodelFactory makes a fresh Datamodel for a session.
type DatamodelFactory func() Datamodel

// Datamodel evaluates expressions and holds a session's data.
//
// A Datamodel is only used by its session's goroutine.
//
// Evaluation failures are reported through Host.RaiseError (which
// enqueues error.execution), and the methods then return false.
// Nothing panics across this interface.
type Datamodel interface {
	// Init prepares the datamodel for the session.  The system
	// variables _sessionid, _name, and _ioprocessors are set
	// read-only.  The context is done when the session is
	// torn down; long evaluations should be interrupted then.
	Init(ctx context.Context, h Host) error

	// Declare creates the data item, initialized by evaluating
	// expr (undefined if expr is empty).
	Declare(id, expr string) bool

	// DeclareValue creates the data item with the given value.
	DeclareValue(id string, v interface{}) bool

	// SetEvent sets _event.
	SetEvent(ev *Event)

	// Eval evaluates the expression.
	Eval(expr string) (interface{}, bool)

	// Cond evaluates a guard.  Failure is false.
	Cond(expr string) bool

	// Assign evaluates expr and assigns the result to the
	// location, which must exist.
	Assign(location, expr string) bool

	// AssignValue assigns the value to the location.
	AssignValue(location string, v interface{}) bool

	// ForEach iterates over a shallow copy of the array, binding
	// item (and index, if given) before each call to body.
	// Iteration stops when body returns false.
	ForEach(array, item, index string, body func() bool) bool

	// Get returns the value at the location.
	Get(location string) (interface{}, bool)

	// Params evaluates a namelist and params into event data.
	// A nil map means no data.  See EvalData.
	Params(namelist []string, params []*Param) (map[string]interface{}, bool)

	// Log evaluates expr (if not empty) and writes the value with
	// the label to the session's logger.  It returns the value and
	// false when evaluation failed or the value is null.
	Log(label, expr string) (interface{}, bool)

	// Exec executes a script.
	Exec(script string) bool

	// Close releases resources.
	Close()
}

// Host is what a Datamodel can see of its session.
type Host interface {
	SessionId() string
	Name() string

	// In reports whether the state with the given id is active.
	In(id string) bool

	// RaiseError enqueues a platform error event (ErrorExecution
	// or ErrorCommunication) on the internal queue.
	RaiseError(name string, err error)

	// IOProcessors maps each I/O processor type to its location
	// for this session.
	IOProcessors() map[string]string

	// Actions returns the action registry.
	Actions() map[string]ActionFunc

	// Context is the session's context.
	Context() context.Context

	Logger() *log.Entry
}

// EvalData computes event data from a namelist and params using the
// datamodel's Get and Eval.  Returns false if any evaluation failed.
// A nil result means no data.  Datamodels can use it for Params.
func EvalData(dm Datamodel, namelist []string, params []*Param) (map[string]interface{}, bool) {
	if len(namelist) == 0 && len(params) == 0 {
		return nil, true
	}
	acc := make(map[string]interface{}, len(namelist)+len(params))
	for _, name := range namelist {
		v, ok := dm.Get(name)
		if !ok {
			return nil, false
		}
		acc[name] = v
	}
	for _, p := range params {
		var (
			v  interface{}
			ok bool
		)
		switch {
		case p.Location != "":
			v, ok = dm.Get(p.Location)
		case p.Expr != "":
			v, ok = dm.Eval(p.Expr)
		default:
			ok = true
		}
		if !ok {
			return nil, false
		}
		acc[p.Name] = v
	}
	return acc, true
}

// EvalContent computes the value of a <content>.
func EvalContent(dm Datamodel, c *Content) (interface{}, bool) {
	if c == nil {
		return nil, true
	}
	if c.Expr != "" {
		return dm.Eval(c.Expr)
	}
	return c.Body, true
}
