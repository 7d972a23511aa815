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

// Package timers manages the delayed sends of a session.
//
// At any point in time, only one time.Timer exists to implement all
// managed timers.  Pending timers are kept in a backlog ordered by
// ascending trigger time (ties keep insertion order).  A single loop
// (Run) owns the time.Timer and rearms it whenever the head of the
// backlog changes.
//
// A timer fires by being removed from the backlog under the lock.
// Once Rem has returned without error, the timer's work will never be
// performed.  When Rem returns NotFound, the timer either never
// existed or has already fired.
//
// Work functions run on the loop's goroutine in trigger order, so they
// should not block.  Delayed sends only enqueue events.
package timers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	NotFound       = errors.New("not found")
	TooMany        = errors.New("too many")
	IdExists       = errors.New("id exists")
	NotRunning     = errors.New("not running")
	AlreadyRunning = errors.New("already running")
)

// DefaultLimit is the default maximum number of pending timers.
var DefaultLimit = 1024

const (
	notRunning = int64(iota)
	running
)

// Timer represents some work to be done in the future.
type Timer struct {
	// Id is a unique identifier across all pending timers managed
	// by a given Timers instance.
	Id string `json:"id"`

	// F is the work to be performed in the future.
	F func(context.Context, *Timer) `json:"-"`

	// At is the desired time to execute F.
	At time.Time `json:"at"`

	// Executed, which is the time that F was actually executed,
	// will be written when F is executed.
	Executed time.Time `json:"executed,omitempty"`
}

// Timers is a managed set of Timer instances.
//
// You need to Run the Timers before calling Add.
type Timers struct {
	Max   int  `json:"max"`
	Debug bool `json:"-"`

	sync.Mutex
	backlog []*Timer
	running int64

	// up is signaled (without blocking) when the head of the
	// backlog changes.
	up    chan struct{}
	ready chan bool
	done  chan struct{}
}

// NewTimers makes a new instance with the given maximum number of
// pending timers.  A max less than 1 means DefaultLimit.
func NewTimers(max int) *Timers {
	if max < 1 {
		max = DefaultLimit
	}
	initial := max / 4
	if initial < 8 {
		initial = 8
	}
	if 64 < initial {
		initial = 64
	}
	return &Timers{
		Max:     max,
		backlog: make([]*Timer, 0, initial),
		up:      make(chan struct{}, 1),
		ready:   make(chan bool, 1),
		done:    make(chan struct{}),
	}
}

// Run starts the Timers process in the current goroutine.  This
// method must be running to use the Timers instance.  Run returns
// when the context is done.  Pending timers are then dropped.
func (ts *Timers) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&ts.running, notRunning, running) {
		return AlreadyRunning
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	defer func() {
		timer.Stop()
		ts.Lock()
		for i := range ts.backlog {
			ts.backlog[i] = nil
		}
		ts.backlog = ts.backlog[:0]
		atomic.StoreInt64(&ts.running, notRunning)
		ts.Unlock()
		close(ts.done)
	}()

	ts.ready <- true

	arm := func() {
		timer.Stop()
		select {
		case <-timer.C:
		default:
		}
		ts.Lock()
		var at time.Time
		if 0 < len(ts.backlog) {
			at = ts.backlog[0].At
		}
		ts.Unlock()
		if !at.IsZero() {
			d := time.Until(at)
			ts.debugf("arming for %s", d)
			timer.Reset(d)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ts.up:
			arm()
		case <-timer.C:
			for _, t := range ts.due(time.Now()) {
				ts.debugf("timer %s firing", t.Id)
				t.Executed = time.Now().UTC()
				t.F(ctx, t)
			}
			arm()
		}
	}
}

// due pops every timer whose time has come.
func (ts *Timers) due(now time.Time) []*Timer {
	ts.Lock()
	defer ts.Unlock()
	i := sort.Search(len(ts.backlog), func(i int) bool {
		return ts.backlog[i].At.After(now)
	})
	if i == 0 {
		return nil
	}
	fired := make([]*Timer, i)
	copy(fired, ts.backlog[:i])
	n := copy(ts.backlog, ts.backlog[i:])
	for j := n; j < len(ts.backlog); j++ {
		ts.backlog[j] = nil
	}
	ts.backlog = ts.backlog[:n]
	return fired
}

// IsRunning tries to report whether the Run method is currently
// executing.
func (ts *Timers) IsRunning() bool {
	return atomic.LoadInt64(&ts.running) == running
}

// Wait waits until Run has started or the timeout passes.
func (ts *Timers) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ts.ready:
		return true
	}
}

// Done is closed after Run returns.
func (ts *Timers) Done() <-chan struct{} {
	return ts.done
}

// Add adds the given timer to the Timers instance.
func (ts *Timers) Add(t *Timer) error {
	ts.debugf("add %s %s", t.Id, time.Until(t.At))

	ts.Lock()
	defer ts.Unlock()

	if !ts.IsRunning() {
		return NotRunning
	}
	if len(ts.backlog) >= ts.Max {
		return TooMany
	}
	for _, x := range ts.backlog {
		if x.Id == t.Id {
			return IdExists
		}
	}

	n := len(ts.backlog)
	i := sort.Search(n, func(i int) bool {
		return ts.backlog[i].At.After(t.At)
	})
	ts.backlog = append(ts.backlog, nil)
	copy(ts.backlog[i+1:], ts.backlog[i:])
	ts.backlog[i] = t

	if i == 0 {
		ts.reset()
	}

	return nil
}

// Rem removes the given timer from the Timers instance.
//
// Returns NotFound if there is no pending timer with that id.
func (ts *Timers) Rem(id string) error {
	ts.debugf("rem %s", id)

	ts.Lock()
	defer ts.Unlock()

	for i, t := range ts.backlog {
		if t.Id != id {
			continue
		}
		copy(ts.backlog[i:], ts.backlog[i+1:])
		ts.backlog[len(ts.backlog)-1] = nil
		ts.backlog = ts.backlog[:len(ts.backlog)-1]
		if i == 0 {
			ts.reset()
		}
		return nil
	}

	return NotFound
}

// Pending returns the ids of the pending timers in trigger order.
func (ts *Timers) Pending() []string {
	ts.Lock()
	defer ts.Unlock()
	ids := make([]string, len(ts.backlog))
	for i, t := range ts.backlog {
		ids[i] = t.Id
	}
	return ids
}

// reset asks the loop to rearm its timer.  Never blocks.
func (ts *Timers) reset() {
	select {
	case ts.up <- struct{}{}:
	default:
	}
}

func (ts *Timers) debugf(format string, args ...interface{}) {
	if ts.Debug {
		log.Debugf("timers "+format, args...)
	}
}
