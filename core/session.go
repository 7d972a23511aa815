/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Comcast/scxml/timers"

	log "github.com/sirupsen/logrus"
)

// Options configures a Session.  The zero value is usable.
type Options struct {
	// Id is the session id.  Generated if empty.
	Id string

	// Datamodels defaults to DefaultDatamodels.
	Datamodels map[string]DatamodelFactory

	// IOProcessors are available in addition to the built-in
	// SCXML processor.
	IOProcessors []IOProcessor

	// Invokers handle invoke types other than SCXML.
	Invokers map[string]Invoker

	// Registry defaults to DefaultRegistry.
	Registry Registry

	// Loader is used to load documents for invokes with src.
	Loader Loader

	// Actions defaults to DefaultActions.
	Actions map[string]ActionFunc

	Monitor Monitor

	// Logger defaults to the standard logrus logger.
	Logger *log.Entry

	// Data overrides the initial values of top-level data items
	// with the same ids.  Invoke params end up here.
	Data map[string]interface{}

	// MaxTimers limits pending delayed sends.
	MaxTimers int

	// Verbose turns on debug logging of entries, exits, and
	// events.
	Verbose bool
}

// Session runs a Definition.
//
// Only the session's own goroutine touches the configuration, the
// history, the internal queue, and the datamodel.  Everyone else
// uses Send.
type Session struct {
	def  *Definition
	id   string
	opts Options
	log  *log.Entry

	dm         Datamodel
	registry   Registry
	monitor    Monitor
	processors map[string]IOProcessor
	scxml      *SCXMLProcessor

	parent   *Session
	invokeId string

	// cfgLock guards writes to config (by the session goroutine)
	// and reads from other goroutines.
	cfgLock        sync.RWMutex
	config         *StateSet
	history        map[int]*StateSet
	statesToInvoke *StateSet
	internal       []*Event
	external       *Queue
	timers         *timers.Timers
	initialized    []bool
	running        bool

	childLock sync.RWMutex
	children  map[string]*child
	invoked   map[int][]*child
	invokeN   int

	started  int32
	ctx      context.Context
	cancel   context.CancelFunc
	dmCancel context.CancelFunc
	done     chan struct{}
	final    []string
	err      error
}

// NewSession makes a new Session that's ready to Start.
func NewSession(def *Definition, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}
	o := *opts
	if o.Id == "" {
		o.Id = NewSessionId()
	}
	if o.Datamodels == nil {
		o.Datamodels = DefaultDatamodels
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry
	}
	if o.Actions == nil {
		o.Actions = DefaultActions
	}
	if o.Logger == nil {
		o.Logger = log.NewEntry(log.StandardLogger())
	}

	s := &Session{
		def:            def,
		id:             o.Id,
		opts:           o,
		registry:       o.Registry,
		monitor:        o.Monitor,
		scxml:          &SCXMLProcessor{},
		config:         NewStateSet(),
		history:        make(map[int]*StateSet),
		statesToInvoke: NewStateSet(),
		external:       NewQueue(),
		timers:         timers.NewTimers(o.MaxTimers),
		initialized:    make([]bool, len(def.Nodes)),
		children:       make(map[string]*child),
		invoked:        make(map[int][]*child),
		done:           make(chan struct{}),
	}
	s.log = o.Logger.WithFields(log.Fields{
		"session": s.id,
		"name":    def.Name(),
	})

	s.processors = map[string]IOProcessor{
		SCXMLProcessorType: s.scxml,
	}
	for _, p := range o.IOProcessors {
		s.processors[p.Type()] = p
	}

	return s
}

// Id returns the session id.
func (s *Session) Id() string {
	return s.id
}

// Definition returns the session's Definition.
func (s *Session) Definition() *Definition {
	return s.def
}

// Parent returns the invoking session, if any.
func (s *Session) Parent() *Session {
	return s.parent
}

// InvokeId returns the id of the invoke that created this session.
func (s *Session) InvokeId() string {
	return s.invokeId
}

// Start initializes the datamodel and launches the session's
// goroutine.  The session stops when it reaches a top-level final
// state, when Stop is called, or when the context is done.
func (s *Session) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return ErrAlreadyStarted
	}

	fail := func(err error) error {
		s.err = err
		close(s.done)
		return err
	}

	name := s.def.Document.Datamodel
	if name == "" {
		name = DefaultDatamodel
	}
	factory, have := s.opts.Datamodels[name]
	if !have {
		return fail(fmt.Errorf("%w: %s", ErrUnknownDatamodel, name))
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	var dmCtx context.Context
	dmCtx, s.dmCancel = context.WithCancel(ctx)
	s.dm = factory()
	if err := s.dm.Init(dmCtx, s); err != nil {
		s.cancel()
		s.dmCancel()
		return fail(err)
	}

	if err := s.registry.Register(s); err != nil {
		s.cancel()
		s.dmCancel()
		s.dm.Close()
		return fail(err)
	}

	go s.timers.Run(s.ctx)
	if !s.timers.Wait(time.Second) {
		s.log.Warn("timers slow to start")
	}

	go s.run()

	return nil
}

// Stop asks the session to terminate.  Stop doesn't wait; use Done
// for that.
func (s *Session) Stop() {
	if atomic.LoadInt32(&s.started) == 0 {
		panic("core: Stop before Start")
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Done is closed when the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that prevented the session from starting.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Running reports whether the session has started and hasn't
// terminated.
func (s *Session) Running() bool {
	if atomic.LoadInt32(&s.started) == 0 {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Send enqueues an external event.  Never blocks.
func (s *Session) Send(ev *Event) error {
	if atomic.LoadInt32(&s.started) == 0 {
		panic("core: Send before Start")
	}
	if ev.Type == "" {
		ev.Type = ExternalEvent
	}
	if !s.external.Put(ev) {
		return ErrTerminated
	}
	return nil
}

// fromChild enqueues an event from an invoked child.
func (s *Session) fromChild(invokeId string, ev *Event) error {
	ev.InvokeId = invokeId
	ev.fromChild = true
	if ev.Type == "" {
		ev.Type = ExternalEvent
	}
	if !s.external.Put(ev) {
		return fmt.Errorf("%w: parent %s", ErrUnreachable, s.id)
	}
	return nil
}

// Configuration returns the ids of the active states in document
// order.
func (s *Session) Configuration() []string {
	s.cfgLock.RLock()
	defer s.cfgLock.RUnlock()
	return s.ids(s.config.Sorted(false))
}

// FinalConfiguration returns the configuration captured when the
// session terminated.  Nil until then.
func (s *Session) FinalConfiguration() []string {
	select {
	case <-s.done:
		return s.final
	default:
		return nil
	}
}

func (s *Session) ids(is []int) []string {
	acc := make([]string, len(is))
	for i, n := range is {
		acc[i] = s.def.Nodes[n].Id
	}
	return acc
}

// Host

func (s *Session) SessionId() string {
	return s.id
}

func (s *Session) Name() string {
	return s.def.Name()
}

func (s *Session) In(id string) bool {
	i, have := s.def.Lookup(id)
	if !have {
		return false
	}
	return s.config.Has(i)
}

func (s *Session) RaiseError(name string, err error) {
	s.raiseError(name, err, "", "")
}

func (s *Session) IOProcessors() map[string]string {
	acc := make(map[string]string, len(s.processors)+1)
	for typ, p := range s.processors {
		acc[typ] = p.Location(s.id)
	}
	acc[scxmlShortType] = s.scxml.Location(s.id)
	return acc
}

func (s *Session) Actions() map[string]ActionFunc {
	return s.opts.Actions
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Logger() *log.Entry {
	return s.log
}

func (s *Session) raiseError(name string, err error, sendId, invokeId string) {
	s.log.WithFields(log.Fields{
		"event":  name,
		"sendid": sendId,
	}).WithError(err).Debug("platform error")
	s.raise(errorEvent(name, err, sendId, invokeId))
}

func (s *Session) raise(ev *Event) {
	s.internal = append(s.internal, ev)
}

func (s *Session) debugf(format string, args ...interface{}) {
	if s.opts.Verbose {
		s.log.Debugf(format, args...)
	}
}

// run is the session's goroutine.
func (s *Session) run() {
	defer s.teardown()

	s.running = true
	s.initData()

	if script := s.def.Document.Script; script != "" {
		s.dm.Exec(script)
	}

	s.enterStates([]*TransitionNode{s.def.Nodes[Root].Initial})
	s.mainEventLoop()
}

func (s *Session) initData() {
	root := s.def.Nodes[Root]
	for _, d := range root.Data {
		s.declare(d, true)
	}
	s.initialized[Root] = true

	late := s.def.Document.Binding == LateBinding
	for _, n := range s.def.Nodes[1:] {
		for _, d := range n.Data {
			if late {
				s.dm.DeclareValue(d.Id, nil)
			} else {
				s.declare(d, false)
			}
		}
		if !late {
			s.initialized[n.Index] = true
		}
	}
}

func (s *Session) declare(d *Data, top bool) {
	if top {
		if v, have := s.opts.Data[d.Id]; have {
			s.dm.DeclareValue(d.Id, v)
			return
		}
	}
	switch {
	case d.Value != nil:
		s.dm.DeclareValue(d.Id, d.Value)
	case d.Src != "":
		s.RaiseError(ErrorExecution, fmt.Errorf("data %s: unresolved src %s", d.Id, d.Src))
		s.dm.DeclareValue(d.Id, nil)
	default:
		s.dm.Declare(d.Id, d.Expr)
	}
}

func (s *Session) mainEventLoop() {
	for s.running {
		macrostepDone := false
		for s.running && !macrostepDone {
			enabled := s.selectTransitions(nil)
			if len(enabled) == 0 {
				if len(s.internal) == 0 {
					macrostepDone = true
				} else {
					ev := s.internal[0]
					s.internal[0] = nil
					s.internal = s.internal[1:]
					s.observe(ev)
					s.dm.SetEvent(ev)
					enabled = s.selectTransitions(ev)
				}
			}
			if 0 < len(enabled) {
				s.microstep(enabled)
			}
		}

		if !s.running {
			break
		}

		for _, st := range s.statesToInvoke.Sorted(false) {
			for _, inv := range s.def.Nodes[st].Invokes {
				s.invoke(st, inv)
			}
		}
		s.statesToInvoke.Clear()

		if 0 < len(s.internal) {
			continue
		}

		if s.ctx.Err() != nil {
			s.running = false
			continue
		}

		ev, err := s.external.Take(s.ctx)
		if err != nil {
			s.debugf("cancelled: %v", err)
			s.running = false
			continue
		}

		if ev.fromChild && !s.isActiveInvoke(ev.InvokeId) {
			s.debugf("dropping %s from inactive invoke %s", ev.Name, ev.InvokeId)
			continue
		}

		s.observe(ev)
		s.dm.SetEvent(ev)

		for _, st := range s.config.Sorted(false) {
			for _, c := range s.invoked[st] {
				if c.id == ev.InvokeId {
					s.execute(c.inv.Finalize)
				}
				if c.inv.AutoForward {
					if err := c.handle.Send(ev.Copy()); err != nil {
						s.debugf("autoforward to %s: %v", c.id, err)
					}
				}
			}
		}

		enabled := s.selectTransitions(ev)
		if 0 < len(enabled) {
			s.microstep(enabled)
		}
	}
}

func (s *Session) observe(ev *Event) {
	s.debugf("event %s", ev.Name)
	if s.monitor != nil {
		s.monitor.Event(s, ev)
	}
}

// exitInterpreter exits every active state, innermost first.
func (s *Session) exitInterpreter() {
	for _, st := range s.config.Sorted(true) {
		n := s.def.Nodes[st]
		for _, block := range n.OnExit {
			s.execute(block)
		}
		s.cancelInvokes(st)
		s.cfgLock.Lock()
		s.config.Delete(st)
		s.cfgLock.Unlock()
		s.exited(n)
		if n.Final && n.Parent == Root {
			s.returnDone(n)
		}
	}
}

// returnDone sends done.invoke.<id> to the parent.
func (s *Session) returnDone(n *Node) {
	if s.parent == nil {
		return
	}
	data := s.doneData(n)
	ev := &Event{
		Name:       DoneInvokePrefix + s.invokeId,
		Type:       ExternalEvent,
		Origin:     s.scxml.Location(s.id),
		OriginType: SCXMLProcessorType,
		Data:       data,
	}
	if err := s.parent.fromChild(s.invokeId, ev); err != nil {
		s.debugf("done.invoke: %v", err)
	}
}

func (s *Session) teardown() {
	s.cfgLock.RLock()
	s.final = s.ids(s.config.Sorted(false))
	s.cfgLock.RUnlock()

	s.running = false
	s.exitInterpreter()

	s.cancel()
	s.external.Close()
	s.registry.Unregister(s)

	s.log.WithField("final", s.final).Debug("terminated")
	if s.monitor != nil {
		s.monitor.Terminated(s, s.final)
	}

	s.dm.Close()
	s.dmCancel()

	close(s.done)
}
