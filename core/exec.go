package core

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// execute runs a block of executable content.  Returns false if an
// action failed, which stops the rest of the block.  Failures other
// than a log of null have already been raised as error events.
func (s *Session) execute(block []Action) bool {
	for _, a := range block {
		if !s.executeAction(a) {
			return false
		}
	}
	return true
}

func (s *Session) executeAction(a Action) bool {
	switch vv := a.(type) {
	case *If:
		if s.dm.Cond(vv.Cond) {
			return s.execute(vv.Then)
		}
		for _, e := range vv.ElseIfs {
			if s.dm.Cond(e.Cond) {
				return s.execute(e.Actions)
			}
		}
		return s.execute(vv.Else)

	case *ForEach:
		return s.dm.ForEach(vv.Array, vv.Item, vv.Index, func() bool {
			return s.execute(vv.Actions)
		})

	case *Assign:
		if vv.Content != nil {
			return s.dm.AssignValue(vv.Location, vv.Content)
		}
		return s.dm.Assign(vv.Location, vv.Expr)

	case *Raise:
		s.raise(&Event{
			Name: vv.Event,
			Type: InternalEvent,
		})
		return true

	case *Log:
		// A null value stops the block.
		v, ok := s.dm.Log(vv.Label, vv.Expr)
		if ok && s.monitor != nil {
			s.monitor.Log(s, vv.Label, v)
		}
		return ok

	case *Send:
		return s.send(vv)

	case *Cancel:
		return s.cancelSend(vv)

	case *Script:
		return s.dm.Exec(vv.Src)

	default:
		panic(fmt.Sprintf("core: unknown action %T", a))
	}
}

// evalString evaluates an expression that should produce a string.
func (s *Session) evalString(expr string) (string, bool) {
	v, ok := s.dm.Eval(expr)
	if !ok {
		return "", false
	}
	switch vv := v.(type) {
	case string:
		return vv, true
	case nil:
		s.RaiseError(ErrorExecution, fmt.Errorf("%s evaluated to null", expr))
		return "", false
	default:
		return fmt.Sprint(vv), true
	}
}

// literalOrExpr returns the literal if not empty and otherwise
// evaluates the expression (if not empty).
func (s *Session) literalOrExpr(literal, expr string) (string, bool) {
	if literal != "" || expr == "" {
		return literal, true
	}
	return s.evalString(expr)
}

func (s *Session) logFields(fields log.Fields) *log.Entry {
	return s.log.WithFields(fields)
}
