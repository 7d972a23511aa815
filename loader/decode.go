package loader

import (
	"fmt"

	"github.com/Comcast/scxml/core"
)

func (r *rawDocument) document() (*core.Document, error) {
	initial, err := stringList("initial", r.Initial)
	if err != nil {
		return nil, err
	}
	doc := &core.Document{
		Name:      r.Name,
		Doc:       r.Doc,
		Datamodel: r.Datamodel,
		Binding:   core.Binding(r.Binding),
		Initial:   initial,
		Data:      data(r.Data),
		Script:    r.Script,
	}
	for _, rs := range r.States {
		s, err := rs.state()
		if err != nil {
			return nil, err
		}
		doc.States = append(doc.States, s)
	}
	return doc, nil
}

func data(rds []*rawData) []*core.Data {
	var acc []*core.Data
	for _, rd := range rds {
		acc = append(acc, &core.Data{
			Id:    rd.Id,
			Expr:  rd.Expr,
			Src:   rd.Src,
			Value: rd.Value,
		})
	}
	return acc
}

func params(rps []*rawParam) []*core.Param {
	var acc []*core.Param
	for _, rp := range rps {
		acc = append(acc, &core.Param{
			Name:     rp.Name,
			Expr:     rp.Expr,
			Location: rp.Location,
		})
	}
	return acc
}

func (r *rawContent) content() (*core.Content, error) {
	if r == nil {
		return nil, nil
	}
	c := &core.Content{
		Expr: r.Expr,
		Body: r.Body,
	}
	if r.Document != nil {
		if err := validate.Struct(r.Document); err != nil {
			return nil, err
		}
		doc, err := r.Document.document()
		if err != nil {
			return nil, err
		}
		c.Document = doc
	}
	return c, nil
}

func (r *rawState) state() (*core.State, error) {
	fail := func(err error) (*core.State, error) {
		return nil, fmt.Errorf("state %s: %w", r.Id, err)
	}

	initial, err := stringList("initial", r.Initial)
	if err != nil {
		return fail(err)
	}

	s := &core.State{
		Id:       r.Id,
		Parallel: r.Parallel,
		Final:    r.Final,
		History:  core.HistoryType(r.History),
		Initial:  initial,
		Data:     data(r.Data),
	}

	if r.InitialTransition != nil {
		if s.InitialTransition, err = r.InitialTransition.transition(); err != nil {
			return fail(err)
		}
	}

	if s.OnEntry, err = blocks(r.OnEntry); err != nil {
		return fail(fmt.Errorf("onentry: %w", err))
	}
	if s.OnExit, err = blocks(r.OnExit); err != nil {
		return fail(fmt.Errorf("onexit: %w", err))
	}

	for _, rt := range r.Transitions {
		t, err := rt.transition()
		if err != nil {
			return fail(err)
		}
		s.Transitions = append(s.Transitions, t)
	}

	for _, ri := range r.Invokes {
		inv, err := ri.invoke()
		if err != nil {
			return fail(err)
		}
		s.Invokes = append(s.Invokes, inv)
	}

	if r.DoneData != nil {
		c, err := r.DoneData.Content.content()
		if err != nil {
			return fail(err)
		}
		s.DoneData = &core.DoneData{
			Content: c,
			Params:  params(r.DoneData.Params),
		}
	}

	for _, rc := range r.States {
		c, err := rc.state()
		if err != nil {
			return nil, err
		}
		s.States = append(s.States, c)
	}

	return s, nil
}

func (r *rawTransition) transition() (*core.Transition, error) {
	targets, err := stringList("target", r.Target)
	if err != nil {
		return nil, err
	}
	as, err := actions(r.Actions)
	if err != nil {
		return nil, fmt.Errorf("transition %q: %w", r.Event, err)
	}
	return &core.Transition{
		Event:   r.Event,
		Cond:    r.Cond,
		Type:    core.TransitionType(r.Type),
		Targets: targets,
		Actions: as,
	}, nil
}

func (r *rawInvoke) invoke() (*core.Invoke, error) {
	namelist, err := stringList("namelist", r.Namelist)
	if err != nil {
		return nil, err
	}
	c, err := r.Content.content()
	if err != nil {
		return nil, err
	}
	finalize, err := actions(r.Finalize)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	return &core.Invoke{
		Type:        r.Type,
		TypeExpr:    r.TypeExpr,
		Src:         r.Src,
		SrcExpr:     r.SrcExpr,
		Id:          r.Id,
		IdLocation:  r.IdLocation,
		Namelist:    namelist,
		AutoForward: r.AutoForward,
		Params:      params(r.Params),
		Content:     c,
		Finalize:    finalize,
	}, nil
}

// blocks decodes onentry or onexit.  A list of actions is one block,
// and a list of lists is several.
func blocks(xs []interface{}) ([][]core.Action, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	if _, is := xs[0].([]interface{}); !is {
		as, err := actions(xs)
		if err != nil {
			return nil, err
		}
		return [][]core.Action{as}, nil
	}
	acc := make([][]core.Action, 0, len(xs))
	for _, x := range xs {
		block, is := x.([]interface{})
		if !is {
			return nil, fmt.Errorf("mixed actions and blocks")
		}
		as, err := actions(block)
		if err != nil {
			return nil, err
		}
		acc = append(acc, as)
	}
	return acc, nil
}

func actions(xs []interface{}) ([]core.Action, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	acc := make([]core.Action, 0, len(xs))
	for _, x := range xs {
		a, err := action(x)
		if err != nil {
			return nil, err
		}
		acc = append(acc, a)
	}
	return acc, nil
}

// action decodes a single-key map like {raise: {event: go}}.  raise
// and script also accept a string: {raise: go}.
func action(x interface{}) (core.Action, error) {
	m, is := x.(map[string]interface{})
	if !is {
		if mi, is := x.(map[interface{}]interface{}); is {
			m = make(map[string]interface{}, len(mi))
			for k, v := range mi {
				m[fmt.Sprint(k)] = v
			}
		} else {
			return nil, fmt.Errorf("action %#v isn't a map", x)
		}
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("action %#v should have exactly one key", x)
	}

	var (
		kind string
		v    interface{}
	)
	for k, x := range m {
		kind, v = k, x
	}

	fail := func(err error) (core.Action, error) {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	switch kind {
	case "raise":
		if s, is := v.(string); is {
			v = map[string]interface{}{"event": s}
		}
		var r rawRaise
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		return &core.Raise{Event: r.Event}, nil

	case "script":
		if s, is := v.(string); is {
			v = map[string]interface{}{"src": s}
		}
		var r rawScript
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		return &core.Script{Src: r.Src}, nil

	case "log":
		var r rawLog
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		return &core.Log{Label: r.Label, Expr: r.Expr}, nil

	case "assign":
		var r rawAssign
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		return &core.Assign{Location: r.Location, Expr: r.Expr, Content: r.Value}, nil

	case "cancel":
		var r rawCancel
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		return &core.Cancel{SendId: r.SendId, SendIdExpr: r.SendIdExpr}, nil

	case "foreach":
		var r rawForEach
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		body, err := actions(r.Actions)
		if err != nil {
			return fail(err)
		}
		return &core.ForEach{Array: r.Array, Item: r.Item, Index: r.Index, Actions: body}, nil

	case "if":
		var r rawIf
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		a := &core.If{Cond: r.Cond}
		var err error
		if a.Then, err = actions(r.Then); err != nil {
			return fail(err)
		}
		for _, e := range r.ElseIf {
			as, err := actions(e.Actions)
			if err != nil {
				return fail(err)
			}
			a.ElseIfs = append(a.ElseIfs, &core.ElseIf{Cond: e.Cond, Actions: as})
		}
		if a.Else, err = actions(r.Else); err != nil {
			return fail(err)
		}
		return a, nil

	case "send":
		var r rawSend
		if err := recode(v, &r); err != nil {
			return fail(err)
		}
		namelist, err := stringList("namelist", r.Namelist)
		if err != nil {
			return fail(err)
		}
		c, err := r.Content.content()
		if err != nil {
			return fail(err)
		}
		return &core.Send{
			Event:      r.Event,
			EventExpr:  r.EventExpr,
			Target:     r.Target,
			TargetExpr: r.TargetExpr,
			Type:       r.Type,
			TypeExpr:   r.TypeExpr,
			Id:         r.Id,
			IdLocation: r.IdLocation,
			Delay:      r.Delay,
			DelayExpr:  r.DelayExpr,
			Namelist:   namelist,
			Params:     params(r.Params),
			Content:    c,
		}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", kind)
	}
}
