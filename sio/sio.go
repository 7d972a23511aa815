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

// Package sio provides event I/O processors that connect sessions to
// the outside world.
//
// Each processor is a core.IOProcessor for out-bound events (<send>
// with the processor's type) and, for in-bound events, delivers what
// it hears to sessions through a Router (usually a *crew.Crew).
//
// Events on the wire are JSON objects shaped like core.Event:
//
//	{"name":"coin","data":{"amount":25}}
package sio

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/crew"
)

// Router delivers an external event to the session with the given
// id.  *crew.Crew is a Router.
type Router interface {
	Send(sessionId string, ev *core.Event) error
}

var _ Router = &crew.Crew{}

// NoRouter is returned when a processor that has no Router hears an
// in-bound event.
var NoRouter = errors.New("no router")

// DecodeEvent parses an in-bound JSON event.
//
// A payload that isn't a JSON object with a "name" becomes the data
// of an event with the given default name.  An empty default name
// makes that an error.
func DecodeEvent(payload []byte, defaultName string) (*core.Event, error) {
	var ev core.Event
	if err := json.Unmarshal(payload, &ev); err == nil && ev.Name != "" {
		ev.Type = core.ExternalEvent
		return &ev, nil
	}
	if defaultName == "" {
		return nil, fmt.Errorf("event without a name: %s", payload)
	}
	var x interface{}
	if err := json.Unmarshal(payload, &x); err != nil {
		x = string(payload)
	}
	return core.NewEvent(defaultName, x), nil
}

// EncodeEvent renders an out-bound event.
func EncodeEvent(ev *core.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// deliver sends the event through the router.
func deliver(r Router, sessionId string, ev *core.Event) error {
	if r == nil {
		return NoRouter
	}
	return r.Send(sessionId, ev)
}
