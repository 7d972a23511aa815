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

// Package core provides an interpreter for SCXML state machines.
//
// A Document is the declarative form of a state machine: nested,
// parallel, final and history states, transitions with event
// descriptors and guards, and executable content.  Compile links a
// Document into a Definition, an immutable arena of nodes addressed by
// integer index in document order.  A Definition can be shared by any
// number of Sessions.
//
// A Session runs a Definition.  Each Session has its own goroutine,
// which owns the active configuration, the history store, the
// internal queue, and the datamodel.  Other goroutines talk to a
// Session only by enqueueing events on its external queue (Send).
// Delayed sends are managed by a per-session timers.Timers, and
// invoked child sessions are Sessions in their own right.
//
// Expressions are evaluated by a Datamodel.  See the interpreters
// packages for the ECMAScript and null datamodels.  Events leave a
// session through IOProcessors.  The SCXML event I/O processor is
// built in.
//
// To use this package, make a Document (or load one with package
// loader).  Then Compile() it.  Then make a Session with NewSession,
// Start it, and Send events to it.
package core
