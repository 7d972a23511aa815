package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Comcast/scxml/timers"

	log "github.com/sirupsen/logrus"
)

var css2Time = regexp.MustCompile(`^\s*([0-9]*\.?[0-9]+)\s*(ms|s|m|h)?\s*$`)

// ParseDelay parses a delay.  CSS2 time values ("500ms", "1.5s") are
// accepted, as are bare numbers of milliseconds and Go durations
// ("1m30s").  The empty string is zero.  Negative delays are errors.
func ParseDelay(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if m := css2Time.FindStringSubmatch(s); m != nil {
		x, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadDelay, s)
		}
		unit := time.Millisecond
		switch m[2] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		}
		return time.Duration(x * float64(unit)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDelay, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative %q", ErrBadDelay, s)
	}
	return d, nil
}

// processor finds the I/O processor for the type.
func (s *Session) processor(typ string) IOProcessor {
	if isSCXMLType(typ) {
		return s.scxml
	}
	return s.processors[typ]
}

func (s *Session) send(a *Send) bool {
	name, ok := s.literalOrExpr(a.Event, a.EventExpr)
	if !ok {
		return false
	}
	target, ok := s.literalOrExpr(a.Target, a.TargetExpr)
	if !ok {
		return false
	}
	typ, ok := s.literalOrExpr(a.Type, a.TypeExpr)
	if !ok {
		return false
	}
	delaySrc, ok := s.literalOrExpr(a.Delay, a.DelayExpr)
	if !ok {
		return false
	}

	id := a.Id
	if id == "" {
		id = NewSendId()
		if a.IdLocation != "" && !s.dm.AssignValue(a.IdLocation, id) {
			return false
		}
	}

	delay, err := ParseDelay(delaySrc)
	if err != nil {
		s.raiseError(ErrorExecution, err, id, "")
		return false
	}

	var data interface{}
	if a.Content != nil {
		if data, ok = EvalContent(s.dm, a.Content); !ok {
			return false
		}
	} else {
		m, ok := s.dm.Params(a.Namelist, a.Params)
		if !ok {
			return false
		}
		if m != nil {
			data = m
		}
	}

	proc := s.processor(typ)
	if proc == nil {
		s.raiseError(ErrorExecution, fmt.Errorf("unsupported send type %q", typ), id, "")
		return false
	}

	if 0 < delay && target == TargetInternal && proc == s.scxml {
		s.raiseError(ErrorExecution, fmt.Errorf("%w: delayed send to %s", ErrBadTarget, target), id, "")
		return false
	}

	ev := &Event{
		Name: name,
		Type: ExternalEvent,
		Data: data,
	}
	if a.Id != "" || a.IdLocation != "" {
		ev.SendId = id
	}

	fields := log.Fields{
		"event":  name,
		"target": target,
		"sendid": id,
	}

	if delay <= 0 {
		s.logFields(fields).Debug("send")
		return s.dispatch(proc, target, ev, id)
	}

	fields["delay"] = delay
	s.logFields(fields).Debug("send delayed")

	err = s.timers.Add(&timers.Timer{
		Id: id,
		At: time.Now().Add(delay),
		F: func(ctx context.Context, _ *timers.Timer) {
			// On the timer goroutine: only enqueue.
			if err := proc.Send(ctx, s, target, ev); err != nil {
				name := ErrorCommunication
				if errors.Is(err, ErrBadTarget) {
					name = ErrorExecution
				}
				s.external.Put(errorEvent(name, err, id, ""))
			}
		},
	})
	if err != nil {
		s.raiseError(ErrorExecution, fmt.Errorf("delayed send %s: %w", id, err), id, "")
		return false
	}
	return true
}

// dispatch sends the event now.
func (s *Session) dispatch(proc IOProcessor, target string, ev *Event, id string) bool {
	err := proc.Send(s.ctx, s, target, ev)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrBadTarget) {
		s.raiseError(ErrorExecution, err, id, "")
		return false
	}
	s.raiseError(ErrorCommunication, err, id, "")
	return true
}

func (s *Session) cancelSend(a *Cancel) bool {
	id, ok := s.literalOrExpr(a.SendId, a.SendIdExpr)
	if !ok {
		return false
	}
	if err := s.timers.Rem(id); err != nil {
		s.debugf("cancel %s: %v", id, err)
	}
	return true
}
