package core

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Invoker starts an invoked service.
//
// The SCXML invoker (for child state machines) is built in.  Other
// types can be provided with Options.Invokers.
type Invoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (Invoked, error)
}

// Invoked is a running invoked service.
type Invoked interface {
	// Send delivers an event to the service.
	Send(ev *Event) error

	// Cancel stops the service.
	Cancel()
}

// InvokeRequest describes an invocation.
type InvokeRequest struct {
	Parent   *Session
	InvokeId string
	Type     string
	Src      string

	// Content is the evaluated <content>, if any.
	Content interface{}

	// Definition is the compiled inline document, if any.
	Definition *Definition

	// Data holds the evaluated params and namelist.
	Data map[string]interface{}
}

// Reply sends an event from the service back to the invoking
// session.  The event's invokeid is set.
func (r *InvokeRequest) Reply(ev *Event) error {
	return r.Parent.fromChild(r.InvokeId, ev)
}

type child struct {
	id     string
	inv    *Invoke
	handle Invoked
}

// sessionInvoker invokes child SCXML sessions.
type sessionInvoker struct{}

type invokedSession struct {
	s *Session
}

func (c *invokedSession) Send(ev *Event) error {
	return c.s.Send(ev)
}

func (c *invokedSession) Cancel() {
	c.s.Stop()
}

func (sessionInvoker) Invoke(ctx context.Context, req *InvokeRequest) (Invoked, error) {
	parent := req.Parent
	def := req.Definition
	if def == nil {
		var (
			doc *Document
			err error
		)
		loader := parent.opts.Loader
		switch vv := req.Content.(type) {
		case *Document:
			doc = vv
		case string:
			if loader == nil {
				return nil, ErrNoLoader
			}
			doc, err = loader.Parse(ctx, []byte(vv))
		case []byte:
			if loader == nil {
				return nil, ErrNoLoader
			}
			doc, err = loader.Parse(ctx, vv)
		case nil:
			if req.Src == "" {
				return nil, errors.New("invoke needs src or content")
			}
			if loader == nil {
				return nil, ErrNoLoader
			}
			doc, err = loader.Load(ctx, req.Src)
		default:
			return nil, fmt.Errorf("bad invoke content (%T)", req.Content)
		}
		if err != nil {
			return nil, err
		}
		if def, err = doc.Compile(ctx); err != nil {
			return nil, err
		}
	}

	o := parent.opts
	c := NewSession(def, &Options{
		Datamodels:   o.Datamodels,
		IOProcessors: o.IOProcessors,
		Invokers:     o.Invokers,
		Registry:     o.Registry,
		Loader:       o.Loader,
		Actions:      o.Actions,
		Monitor:      o.Monitor,
		Logger: parent.log.WithFields(log.Fields{
			"parent":   parent.id,
			"invokeid": req.InvokeId,
		}),
		Data:      req.Data,
		MaxTimers: o.MaxTimers,
		Verbose:   o.Verbose,
	})
	c.parent = parent
	c.invokeId = req.InvokeId

	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return &invokedSession{c}, nil
}

// invoke starts an invoke declared by an entered state.
func (s *Session) invoke(st int, inv *Invoke) {
	id := inv.Id
	if id == "" {
		s.invokeN++
		id = fmt.Sprintf("%s.%d", s.def.Path(st), s.invokeN)
		if inv.IdLocation != "" && !s.dm.AssignValue(inv.IdLocation, id) {
			return
		}
	}

	typ, ok := s.literalOrExpr(inv.Type, inv.TypeExpr)
	if !ok {
		return
	}
	src, ok := s.literalOrExpr(inv.Src, inv.SrcExpr)
	if !ok {
		return
	}
	data, ok := s.dm.Params(inv.Namelist, inv.Params)
	if !ok {
		return
	}

	req := &InvokeRequest{
		Parent:   s,
		InvokeId: id,
		Type:     typ,
		Src:      src,
		Data:     data,
	}
	if def, have := s.def.Inline(inv); have {
		req.Definition = def
	} else if inv.Content != nil {
		if req.Content, ok = EvalContent(s.dm, inv.Content); !ok {
			return
		}
	}

	var invoker Invoker
	if isSCXMLType(typ) {
		invoker = sessionInvoker{}
	} else {
		invoker = s.opts.Invokers[typ]
	}
	if invoker == nil {
		s.raiseError(ErrorExecution, fmt.Errorf("unsupported invoke type %q", typ), "", id)
		return
	}

	handle, err := invoker.Invoke(s.ctx, req)
	if err != nil {
		s.raiseError(ErrorExecution, fmt.Errorf("invoke %s: %w", id, err), "", id)
		return
	}

	s.debugf("invoked %s (%s)", id, typ)

	c := &child{
		id:     id,
		inv:    inv,
		handle: handle,
	}
	s.childLock.Lock()
	s.children[id] = c
	s.childLock.Unlock()
	s.invoked[st] = append(s.invoked[st], c)
}

// cancelInvokes stops the services invoked by the state.
func (s *Session) cancelInvokes(st int) {
	cs := s.invoked[st]
	if len(cs) == 0 {
		return
	}
	s.childLock.Lock()
	for _, c := range cs {
		delete(s.children, c.id)
	}
	s.childLock.Unlock()
	delete(s.invoked, st)

	for _, c := range cs {
		s.debugf("cancelling invoke %s", c.id)
		c.handle.Cancel()
	}
}

func (s *Session) child(id string) (Invoked, bool) {
	s.childLock.RLock()
	c, have := s.children[id]
	s.childLock.RUnlock()
	if !have {
		return nil, false
	}
	return c.handle, true
}

func (s *Session) isActiveInvoke(id string) bool {
	s.childLock.RLock()
	_, have := s.children[id]
	s.childLock.RUnlock()
	return have
}
