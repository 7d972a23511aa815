/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ecmascript provides the ECMAScript datamodel.
package ecmascript

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Comcast/scxml/core"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is reported if an evaluation is interrupted.
	Interrupted = errors.New(InterruptedMessage)

	// programs caches compiled programs across all sessions.
	programs sync.Map
)

// init registers the datamodel as one of the DefaultDatamodels.
func init() {
	core.DefaultDatamodels["ecmascript"] = func() core.Datamodel {
		return NewDatamodel()
	}
}

// Datamodel implements core.Datamodel using Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
type Datamodel struct {
	// Extended adds some additional functions:
	//
	//    randstr(n): generate a random string.
	//    cronNext(s): Return a string representing (RFC3339Nano)
	//      the next time for the given crontab expression.
	Extended bool

	// Test adds sleep(ms).
	Test bool

	// Timeout, if not zero, limits each evaluation.
	Timeout time.Duration

	// Libraries, if not nil, resolves top-level require() calls
	// in scripts.  See InlineRequires.
	Libraries LibraryProvider

	o      *goja.Runtime
	host   core.Host
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDatamodel makes a new Datamodel.
func NewDatamodel() *Datamodel {
	return &Datamodel{}
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var locationRoot = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$]*)`)

var protected = map[string]bool{
	"_event":        true,
	"_sessionid":    true,
	"_name":         true,
	"_ioprocessors": true,
}

func (d *Datamodel) Init(ctx context.Context, h core.Host) error {
	d.host = h
	d.o = goja.New()
	d.ctx, d.cancel = context.WithCancel(ctx)

	go func() {
		<-d.ctx.Done()
		// Also happens on Close, which is harmless since
		// nothing runs after that.
		d.o.Interrupt(InterruptedMessage)
	}()

	global := d.o.GlobalObject()
	readOnly := func(name string, v interface{}) error {
		return global.DefineDataProperty(name, d.o.ToValue(v), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	if err := readOnly("_sessionid", h.SessionId()); err != nil {
		return err
	}
	if err := readOnly("_name", h.Name()); err != nil {
		return err
	}
	ios := make(map[string]interface{})
	for typ, loc := range h.IOProcessors() {
		ios[typ] = map[string]interface{}{
			"location": loc,
		}
	}
	if err := readOnly("_ioprocessors", ios); err != nil {
		return err
	}

	d.o.Set("In", func(id string) bool {
		return h.In(id)
	})

	for name, f := range h.Actions() {
		d.o.Set(name, d.action(name, f))
	}

	if d.Extended {
		d.o.Set("randstr", func(n int) string {
			if n <= 0 {
				n = 32
			}
			return core.Gensym(n)
		})

		// cronNext parses the given string as a crontab
		// expression using github.com/gorhill/cronexpr.
		// Returns the next time as a string formatted in
		// time.RFC3339Nano (UTC).
		d.o.Set("cronNext", func(s string) string {
			c, err := cronexpr.Parse(s)
			if err != nil {
				panic(d.o.NewGoError(err))
			}
			return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
		})
	}

	if d.Test {
		d.o.Set("sleep", func(ms int64) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	return nil
}

func (d *Datamodel) action(name string, f core.ActionFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		v, err := f(d.host.Context(), args...)
		if err != nil {
			panic(d.o.NewGoError(fmt.Errorf("%s: %w", name, err)))
		}
		return d.o.ToValue(v)
	}
}

func (d *Datamodel) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

func compile(src string, strict bool) (*goja.Program, error) {
	key := src
	if strict {
		key = "strict:" + src
	}
	if p, have := programs.Load(key); have {
		return p.(*goja.Program), nil
	}
	p, err := goja.Compile("", src, strict)
	if err != nil {
		return nil, err
	}
	programs.Store(key, p)
	return p, nil
}

// run compiles (or finds) and runs the source.
func (d *Datamodel) run(src string, strict bool) (v goja.Value, err error) {
	p, err := compile(src, strict)
	if err != nil {
		return nil, err
	}

	if 0 < d.Timeout {
		t := time.AfterFunc(d.Timeout, func() {
			d.o.Interrupt(InterruptedMessage)
		})
		defer func() {
			t.Stop()
			d.o.ClearInterrupt()
		}()
	}

	v, err = RunProgram(d.o, p)
	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
	}
	return v, err
}

// RunProgram runs the program, turning panics into errors.
func RunProgram(o *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s", r)
		}
	}()
	return o.RunProgram(p)
}

func (d *Datamodel) fail(err error) {
	d.host.RaiseError(core.ErrorExecution, err)
}

func (d *Datamodel) value(expr string) (goja.Value, bool) {
	v, err := d.run("(\n"+expr+"\n)", false)
	if err != nil {
		d.fail(fmt.Errorf("eval %q: %w", expr, err))
		return nil, false
	}
	return v, true
}

func export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func (d *Datamodel) Declare(id, expr string) bool {
	if !identifier.MatchString(id) {
		d.fail(fmt.Errorf("bad data id %q", id))
		return false
	}
	src := "var " + id + ";"
	if expr != "" {
		src = "var " + id + " = (\n" + expr + "\n);"
	}
	if _, err := d.run(src, false); err != nil {
		d.fail(fmt.Errorf("data %s: %w", id, err))
		d.o.Set(id, goja.Undefined())
		return false
	}
	return true
}

func (d *Datamodel) DeclareValue(id string, v interface{}) bool {
	if !identifier.MatchString(id) {
		d.fail(fmt.Errorf("bad data id %q", id))
		return false
	}
	if v == nil {
		d.o.Set(id, goja.Undefined())
		return true
	}
	d.o.Set(id, v)
	return true
}

func (d *Datamodel) SetEvent(ev *core.Event) {
	d.o.GlobalObject().DefineDataProperty("_event", d.o.ToValue(ev.Map()), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (d *Datamodel) Eval(expr string) (interface{}, bool) {
	v, ok := d.value(expr)
	if !ok {
		return nil, false
	}
	return export(v), true
}

func (d *Datamodel) Cond(expr string) bool {
	v, ok := d.value(expr)
	if !ok {
		return false
	}
	return v.ToBoolean()
}

func (d *Datamodel) checkLocation(location string) bool {
	m := locationRoot.FindStringSubmatch(location)
	if m == nil {
		d.fail(fmt.Errorf("bad location %q", location))
		return false
	}
	if protected[m[1]] {
		d.fail(fmt.Errorf("can't assign to %s", m[1]))
		return false
	}
	return true
}

func (d *Datamodel) Assign(location, expr string) bool {
	if !d.checkLocation(location) {
		return false
	}
	if expr == "" {
		expr = "undefined"
	}
	src := location + " = (\n" + expr + "\n);"
	if _, err := d.run(src, true); err != nil {
		d.fail(fmt.Errorf("assign %s: %w", location, err))
		return false
	}
	return true
}

const tmp = "__scxml_value"

func (d *Datamodel) AssignValue(location string, v interface{}) bool {
	if !d.checkLocation(location) {
		return false
	}
	d.o.Set(tmp, v)
	defer d.o.GlobalObject().Delete(tmp)
	if _, err := d.run(location+" = "+tmp+";", true); err != nil {
		d.fail(fmt.Errorf("assign %s: %w", location, err))
		return false
	}
	return true
}

func (d *Datamodel) ForEach(array, item, index string, body func() bool) bool {
	if !identifier.MatchString(item) {
		d.fail(fmt.Errorf("bad foreach item %q", item))
		return false
	}
	if index != "" && !identifier.MatchString(index) {
		d.fail(fmt.Errorf("bad foreach index %q", index))
		return false
	}

	v, ok := d.value(array)
	if !ok {
		return false
	}

	var items []goja.Value
	if obj, is := v.(*goja.Object); is && obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		items = make([]goja.Value, n)
		for i := 0; i < n; i++ {
			items[i] = obj.Get(strconv.Itoa(i))
		}
	} else if xs, is := iSlice(export(v)); is {
		for _, x := range xs {
			items = append(items, d.o.ToValue(x))
		}
	} else {
		d.fail(fmt.Errorf("foreach: %s isn't an array", array))
		return false
	}

	for i, x := range items {
		d.o.Set(item, x)
		if index != "" {
			d.o.Set(index, i)
		}
		if !body() {
			return false
		}
	}
	return true
}

func (d *Datamodel) Get(location string) (interface{}, bool) {
	return d.Eval(location)
}

func (d *Datamodel) Params(namelist []string, params []*core.Param) (map[string]interface{}, bool) {
	return core.EvalData(d, namelist, params)
}

func (d *Datamodel) Log(label, expr string) (interface{}, bool) {
	var v interface{}
	if expr != "" {
		var ok bool
		if v, ok = d.Eval(expr); !ok {
			return nil, false
		}
	}
	d.host.Logger().WithField("label", label).Info(v)
	return v, expr == "" || v != nil
}

func (d *Datamodel) Exec(script string) bool {
	if d.Libraries != nil {
		var err error
		if script, err = InlineRequires(d.ctx, script, d.Libraries); err != nil {
			d.fail(fmt.Errorf("script: %w", err))
			return false
		}
	}
	if _, err := d.run(script, false); err != nil {
		d.fail(fmt.Errorf("script: %w", err))
		return false
	}
	return true
}
