/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package crew manages a collection of running sessions.
//
// A Crew is the core.Registry for every session it starts (including
// invoked children), so sessions can reach each other with
// "#_scxml_ID" targets.  When a Crew has a Storage, it records every
// terminated session there.
package crew

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/loader"
	"github.com/Comcast/scxml/store"

	log "github.com/sirupsen/logrus"
)

// NotFound is returned for an unknown session id.
var NotFound = errors.New("session not found")

// Crew holds running sessions.
type Crew struct {
	sync.RWMutex

	Id string

	// Loader loads documents for Spawn and for invokes.
	Loader core.Loader

	// Storage, if not nil, gets a record of each terminated
	// session.
	Storage store.Storage

	// Options is the template for new sessions.  Registry and
	// Loader are always overridden.  Monitor is wrapped.
	Options core.Options

	// Verbose turns on logging.
	Verbose bool

	Logger *log.Entry

	sessions map[string]*core.Session
	defs     map[string]*core.Definition
}

// NewCrew makes a Crew that loads documents with the given Loader.  A
// nil Loader gets a loader.Loader rooted at the current directory.
func NewCrew(id string, l core.Loader) *Crew {
	if l == nil {
		l = loader.NewLoader("")
	}
	return &Crew{
		Id:       id,
		Loader:   l,
		Logger:   log.WithField("crew", id),
		sessions: make(map[string]*core.Session, 32),
		defs:     make(map[string]*core.Definition, 8),
	}
}

// Logf logs if c.Verbose.
func (c *Crew) Logf(format string, args ...interface{}) {
	if !c.Verbose {
		return
	}
	c.Logger.Infof(format, args...)
}

// Register implements core.Registry.
func (c *Crew) Register(s *core.Session) error {
	c.Lock()
	defer c.Unlock()
	if _, have := c.sessions[s.Id()]; have {
		return core.SessionExists
	}
	c.sessions[s.Id()] = s
	c.Logf("registered %s (%s)", s.Id(), s.Definition().Name())
	return nil
}

// Unregister implements core.Registry.
func (c *Crew) Unregister(s *core.Session) {
	c.Lock()
	if c.sessions[s.Id()] == s {
		delete(c.sessions, s.Id())
	}
	c.Unlock()
	c.Logf("unregistered %s", s.Id())
}

// Lookup implements core.Registry.
func (c *Crew) Lookup(id string) (*core.Session, bool) {
	c.RLock()
	s, have := c.sessions[id]
	c.RUnlock()
	return s, have
}

// Definition loads and compiles the document at the source.
// Definitions for named and URL sources are cached.
func (c *Crew) Definition(ctx context.Context, src *Source) (*core.Definition, error) {
	key := src.key()
	if key != "" {
		c.RLock()
		def, have := c.defs[key]
		c.RUnlock()
		if have {
			return def, nil
		}
	}

	doc, err := src.Document(ctx, c.Loader)
	if err != nil {
		return nil, err
	}
	def, err := doc.Compile(ctx)
	if err != nil {
		return nil, err
	}

	if key != "" {
		c.Lock()
		c.defs[key] = def
		c.Unlock()
	}
	return def, nil
}

// Forget drops a cached Definition.  Call after updating a stored
// document.
func (c *Crew) Forget(src *Source) {
	c.Lock()
	delete(c.defs, src.key())
	c.Unlock()
}

// Spawn starts a new session for the document at the source.  The
// given data overrides the document's top-level data.  An empty id
// gets a generated one.
func (c *Crew) Spawn(ctx context.Context, id string, src *Source, data map[string]interface{}) (*core.Session, error) {
	def, err := c.Definition(ctx, src)
	if err != nil {
		return nil, err
	}

	opts := c.Options
	opts.Id = id
	opts.Registry = c
	opts.Loader = c.Loader
	opts.Monitor = &recorder{c: c, next: c.Options.Monitor}
	if opts.Logger == nil {
		opts.Logger = c.Logger
	}
	if data != nil {
		opts.Data = data
	}

	s := core.NewSession(def, &opts)
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("start %s: %w", def.Name(), err)
	}
	c.Logf("spawned %s (%s)", s.Id(), def.Name())
	return s, nil
}

// Send delivers an external event to a session.
func (c *Crew) Send(id string, ev *core.Event) error {
	s, have := c.Lookup(id)
	if !have {
		return fmt.Errorf("%w: %s", NotFound, id)
	}
	return s.Send(ev)
}

// Stop asks a session to terminate.
func (c *Crew) Stop(id string) error {
	s, have := c.Lookup(id)
	if !have {
		return fmt.Errorf("%w: %s", NotFound, id)
	}
	s.Stop()
	return nil
}

// Status is a summary of a running session.
type Status struct {
	Id            string   `json:"id"`
	Name          string   `json:"name"`
	Parent        string   `json:"parent,omitempty"`
	Configuration []string `json:"configuration"`
}

// Status reports on every running session, ordered by id.
func (c *Crew) Status() []*Status {
	c.RLock()
	acc := make([]*Status, 0, len(c.sessions))
	for id, s := range c.sessions {
		st := &Status{
			Id:            id,
			Name:          s.Definition().Name(),
			Configuration: s.Configuration(),
		}
		if p := s.Parent(); p != nil {
			st.Parent = p.Id()
		}
		acc = append(acc, st)
	}
	c.RUnlock()
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].Id < acc[j].Id
	})
	return acc
}

// StopAll stops every session and waits for them to terminate (or for
// the context to be done).
func (c *Crew) StopAll(ctx context.Context) error {
	c.RLock()
	ss := make([]*core.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		ss = append(ss, s)
	}
	c.RUnlock()

	for _, s := range ss {
		s.Stop()
	}
	for _, s := range ss {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Done():
		}
	}
	return nil
}

// recorder writes a store.SessionRecord when a session terminates.
type recorder struct {
	c    *Crew
	next core.Monitor
}

func (r *recorder) Event(s *core.Session, ev *core.Event) {
	if r.next != nil {
		r.next.Event(s, ev)
	}
}

func (r *recorder) Entered(s *core.Session, id string) {
	if r.next != nil {
		r.next.Entered(s, id)
	}
}

func (r *recorder) Exited(s *core.Session, id string) {
	if r.next != nil {
		r.next.Exited(s, id)
	}
}

func (r *recorder) Transition(s *core.Session, source string, targets []string) {
	if r.next != nil {
		r.next.Transition(s, source, targets)
	}
}

func (r *recorder) Log(s *core.Session, label string, v interface{}) {
	if r.next != nil {
		r.next.Log(s, label, v)
	}
}

func (r *recorder) Terminated(s *core.Session, final []string) {
	if st := r.c.Storage; st != nil {
		rec := &store.SessionRecord{
			Id:         s.Id(),
			Name:       s.Definition().Name(),
			InvokeId:   s.InvokeId(),
			Final:      final,
			Terminated: time.Now().UTC(),
		}
		if p := s.Parent(); p != nil {
			rec.Parent = p.Id()
		}
		// The session's own context is cancelled by now.
		if err := st.WriteSession(context.Background(), rec); err != nil {
			r.c.Logger.WithError(err).WithField("session", s.Id()).Error("failed to record session")
		}
	}
	if r.next != nil {
		r.next.Terminated(s, final)
	}
}
