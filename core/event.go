package core

import (
	"encoding/json"
	"strings"
)

// EventType is the _event.type.
type EventType string

const (
	PlatformEvent EventType = "platform"
	InternalEvent EventType = "internal"
	ExternalEvent EventType = "external"
)

// Reserved event names.
const (
	ErrorExecution     = "error.execution"
	ErrorCommunication = "error.communication"
	DoneStatePrefix    = "done.state."
	DoneInvokePrefix   = "done.invoke."
)

// Event is an SCXML event.
type Event struct {
	Name       string      `json:"name"`
	Type       EventType   `json:"type,omitempty"`
	SendId     string      `json:"sendid,omitempty"`
	Origin     string      `json:"origin,omitempty"`
	OriginType string      `json:"origintype,omitempty"`
	InvokeId   string      `json:"invokeid,omitempty"`
	Data       interface{} `json:"data,omitempty"`

	// fromChild marks events delivered by an invoked child.
	fromChild bool
}

// NewEvent makes an external event with the given name and data.
func NewEvent(name string, data interface{}) *Event {
	return &Event{
		Name: name,
		Type: ExternalEvent,
		Data: data,
	}
}

// Copy makes a shallow copy.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// IsError reports whether the event is a platform error event.
func (e *Event) IsError() bool {
	return strings.HasPrefix(e.Name, "error.")
}

func (e *Event) String() string {
	if e == nil {
		return "nil"
	}
	js, err := json.Marshal(e)
	if err != nil {
		return e.Name
	}
	return string(js)
}

// Map renders the event as the _event object a datamodel exposes.
func (e *Event) Map() map[string]interface{} {
	return map[string]interface{}{
		"name":       e.Name,
		"type":       string(e.Type),
		"sendid":     e.SendId,
		"origin":     e.Origin,
		"origintype": e.OriginType,
		"invokeid":   e.InvokeId,
		"data":       e.Data,
	}
}

func errorEvent(name string, err error, sendId, invokeId string) *Event {
	var data interface{}
	if err != nil {
		data = map[string]interface{}{
			"message": err.Error(),
		}
	}
	return &Event{
		Name:     name,
		Type:     PlatformEvent,
		SendId:   sendId,
		InvokeId: invokeId,
		Data:     data,
	}
}
