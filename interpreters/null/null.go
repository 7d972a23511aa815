// Package null provides the null datamodel.
//
// The null datamodel has no data.  The only expressions it can
// evaluate are conditions of the form In('id').  Everything else
// raises error.execution.
package null

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Comcast/scxml/core"
)

// Unsupported is raised for anything other than In().
var Unsupported = errors.New("not supported by the null datamodel")

func init() {
	core.DefaultDatamodels["null"] = func() core.Datamodel {
		return NewDatamodel()
	}
}

// Datamodel is the null datamodel.
type Datamodel struct {
	host core.Host
}

func NewDatamodel() *Datamodel {
	return &Datamodel{}
}

var in = regexp.MustCompile(`^\s*In\(\s*(?:'([^']*)'|"([^"]*)")\s*\)\s*$`)

func (d *Datamodel) fail(what string) bool {
	d.host.RaiseError(core.ErrorExecution, fmt.Errorf("%s: %w", what, Unsupported))
	return false
}

func (d *Datamodel) Init(ctx context.Context, h core.Host) error {
	d.host = h
	return nil
}

func (d *Datamodel) Declare(id, expr string) bool {
	return d.fail("data " + id)
}

func (d *Datamodel) DeclareValue(id string, v interface{}) bool {
	if v == nil {
		// Late binding declares everything up front.
		return true
	}
	return d.fail("data " + id)
}

func (d *Datamodel) SetEvent(ev *core.Event) {
}

func (d *Datamodel) Eval(expr string) (interface{}, bool) {
	return nil, d.fail("eval " + expr)
}

// Cond supports In('id').
func (d *Datamodel) Cond(expr string) bool {
	m := in.FindStringSubmatch(expr)
	if m == nil {
		return d.fail("cond " + expr)
	}
	id := m[1]
	if id == "" {
		id = m[2]
	}
	return d.host.In(id)
}

func (d *Datamodel) Assign(location, expr string) bool {
	return d.fail("assign " + location)
}

func (d *Datamodel) AssignValue(location string, v interface{}) bool {
	return d.fail("assign " + location)
}

func (d *Datamodel) ForEach(array, item, index string, body func() bool) bool {
	return d.fail("foreach " + array)
}

func (d *Datamodel) Get(location string) (interface{}, bool) {
	return nil, d.fail("location " + location)
}

func (d *Datamodel) Params(namelist []string, params []*core.Param) (map[string]interface{}, bool) {
	return core.EvalData(d, namelist, params)
}

// Log only writes labels.  Expressions aren't supported.
func (d *Datamodel) Log(label, expr string) (interface{}, bool) {
	if expr != "" {
		return d.Eval(expr)
	}
	d.host.Logger().WithField("label", label).Info("")
	return nil, true
}

func (d *Datamodel) Exec(script string) bool {
	return d.fail("script")
}

func (d *Datamodel) Close() {
}
