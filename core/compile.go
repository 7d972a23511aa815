package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/Comcast/scxml/match"
)

// Root is the index of the root pseudo-state in a Definition.
const Root = 0

// Definition is a compiled Document.
//
// Nodes are held in an arena in document order, so a node's index is
// its document order.  Parent links are indexes.  A Definition is
// never modified after Compile, so it can be shared by any number of
// Sessions.
type Definition struct {
	Document *Document

	Nodes []*Node

	// Transitions lists every transition (including synthesized
	// initial transitions) in document order.
	Transitions []*TransitionNode

	ids map[string]int

	// inline holds compiled inline documents for invokes.
	inline map[*Invoke]*Definition
}

// Node is a compiled state.
type Node struct {
	Index int
	Id    string

	// Parent is the index of the parent node.  The root's Parent
	// is -1.
	Parent int

	Parallel bool
	Final    bool
	History  HistoryType

	// States are the indexes of the child states, excluding
	// history pseudostates.
	States []int

	// Histories are the indexes of child history pseudostates.
	Histories []int

	// Initial is the initial transition of a compound state.  It's
	// synthesized when the document doesn't give one.
	Initial *TransitionNode

	Transitions []*TransitionNode

	OnEntry [][]Action
	OnExit  [][]Action
	Invokes []*Invoke
	Data    []*Data

	DoneData *DoneData

	// State is the source State.  Nil for the root.
	State *State
}

// TransitionNode is a compiled transition.
type TransitionNode struct {
	DocOrder int
	Source   int

	// Events is nil for an eventless transition.
	Events match.Descriptors

	Cond    string
	Type    TransitionType
	Targets []int
	Actions []Action

	Transition *Transition
}

// IsAtomic reports whether the node has no child states.
func (n *Node) IsAtomic() bool {
	return len(n.States) == 0 && n.History == NoHistory
}

// IsCompound reports whether the node is a <state> with child states.
// The root is compound.
func (n *Node) IsCompound() bool {
	return !n.Parallel && len(n.States) > 0
}

// Eventless reports whether the transition has no event descriptors.
func (t *TransitionNode) Eventless() bool {
	return t.Events == nil
}

// Compile links the Document into a Definition.
//
// All definition errors (unknown targets, duplicate ids, illegal
// nesting, conflicting attributes) are reported here.
func (d *Document) Compile(ctx context.Context) (*Definition, error) {
	def := &Definition{
		Document: d,
		ids:      make(map[string]int),
		inline:   make(map[*Invoke]*Definition),
	}

	root := &Node{
		Index:  Root,
		Parent: -1,
		Data:   d.Data,
	}
	def.Nodes = append(def.Nodes, root)

	// First pass: allocate nodes in document order.
	var alloc func(parent int, ss []*State) error
	alloc = func(parent int, ss []*State) error {
		for _, s := range ss {
			if s.Id == "" {
				return &BadDocument{d, "", "state without an id"}
			}
			if _, have := def.ids[s.Id]; have {
				return &DuplicateId{d, s.Id}
			}
			n := &Node{
				Index:    len(def.Nodes),
				Id:       s.Id,
				Parent:   parent,
				Parallel: s.Parallel,
				Final:    s.Final,
				History:  s.History,
				OnEntry:  s.OnEntry,
				OnExit:   s.OnExit,
				Invokes:  s.Invokes,
				Data:     s.Data,
				DoneData: s.DoneData,
				State:    s,
			}
			if err := checkState(d, s); err != nil {
				return err
			}
			def.ids[s.Id] = n.Index
			def.Nodes = append(def.Nodes, n)
			p := def.Nodes[parent]
			if n.History != NoHistory {
				p.Histories = append(p.Histories, n.Index)
			} else {
				p.States = append(p.States, n.Index)
			}
			if err := alloc(n.Index, s.States); err != nil {
				return err
			}
		}
		return nil
	}
	if err := alloc(Root, d.States); err != nil {
		return nil, err
	}
	if len(root.States) == 0 {
		return nil, &BadDocument{d, "", "no states"}
	}

	// Second pass: transitions in document order.
	for _, n := range def.Nodes {
		if err := def.compileNode(ctx, n); err != nil {
			return nil, err
		}
	}

	return def, nil
}

func checkState(d *Document, s *State) error {
	bad := func(problem string) error {
		return &BadDocument{d, s.Id, problem}
	}
	if s.Parallel && s.Final {
		return bad("both parallel and final")
	}
	if s.Final && 0 < len(s.States) {
		return bad("final state with children")
	}
	if s.Final && 0 < len(s.Transitions) {
		return bad("final state with transitions")
	}
	if s.History != NoHistory {
		switch s.History {
		case ShallowHistory, DeepHistory:
		default:
			return bad(fmt.Sprintf("unknown history type %q", s.History))
		}
		if 0 < len(s.States) || s.Parallel || s.Final {
			return bad("history state with children or kind")
		}
		if 1 < len(s.Transitions) {
			return bad("history state with more than one transition")
		}
	}
	if s.DoneData != nil && !s.Final {
		return bad("donedata on a non-final state")
	}
	if 0 < len(s.Initial) && s.InitialTransition != nil {
		return bad("both initial and initialTransition")
	}
	if (0 < len(s.Initial) || s.InitialTransition != nil) && (len(s.States) == 0 || s.Parallel) {
		return bad("initial on a state that isn't compound")
	}
	for _, inv := range s.Invokes {
		if err := checkInvoke(inv); err != nil {
			return bad(err.Error())
		}
	}
	for _, block := range s.OnEntry {
		if err := checkActions(block); err != nil {
			return bad(err.Error())
		}
	}
	for _, block := range s.OnExit {
		if err := checkActions(block); err != nil {
			return bad(err.Error())
		}
	}
	for _, t := range s.Transitions {
		if t.Type != "" && t.Type != External && t.Type != Internal {
			return bad(fmt.Sprintf("unknown transition type %q", t.Type))
		}
		if err := checkActions(t.Actions); err != nil {
			return bad(err.Error())
		}
	}
	return nil
}

func exclusive(what string, xs ...string) error {
	var given []string
	for i := 0; i < len(xs); i += 2 {
		if xs[i+1] != "" {
			given = append(given, xs[i])
		}
	}
	if 1 < len(given) {
		return fmt.Errorf("%s: %s are mutually exclusive", what, strings.Join(given, " and "))
	}
	return nil
}

func checkInvoke(inv *Invoke) error {
	if err := exclusive("invoke", "type", inv.Type, "typeexpr", inv.TypeExpr); err != nil {
		return err
	}
	if err := exclusive("invoke", "src", inv.Src, "srcexpr", inv.SrcExpr); err != nil {
		return err
	}
	if err := exclusive("invoke", "id", inv.Id, "idlocation", inv.IdLocation); err != nil {
		return err
	}
	if inv.Content != nil && (inv.Src != "" || inv.SrcExpr != "") {
		return fmt.Errorf("invoke: content with src")
	}
	if 0 < len(inv.Namelist) && 0 < len(inv.Params) {
		return fmt.Errorf("invoke: namelist with params")
	}
	return checkActions(inv.Finalize)
}

func checkActions(as []Action) error {
	var err error
	WalkActions(as, func(a Action) {
		if err != nil {
			return
		}
		switch vv := a.(type) {
		case *Send:
			if err = exclusive("send", "event", vv.Event, "eventexpr", vv.EventExpr); err != nil {
				return
			}
			if err = exclusive("send", "target", vv.Target, "targetexpr", vv.TargetExpr); err != nil {
				return
			}
			if err = exclusive("send", "type", vv.Type, "typeexpr", vv.TypeExpr); err != nil {
				return
			}
			if err = exclusive("send", "id", vv.Id, "idlocation", vv.IdLocation); err != nil {
				return
			}
			if err = exclusive("send", "delay", vv.Delay, "delayexpr", vv.DelayExpr); err != nil {
				return
			}
			if vv.Content != nil && (0 < len(vv.Params) || 0 < len(vv.Namelist)) {
				err = fmt.Errorf("send: content with params or namelist")
				return
			}
			if vv.Content != nil && (vv.Event != "" || vv.EventExpr != "") {
				err = fmt.Errorf("send: content with event")
			}
		case *Cancel:
			if vv.SendId == "" && vv.SendIdExpr == "" {
				err = fmt.Errorf("cancel: sendid or sendidexpr required")
				return
			}
			err = exclusive("cancel", "sendid", vv.SendId, "sendidexpr", vv.SendIdExpr)
		case *Raise:
			if vv.Event == "" {
				err = fmt.Errorf("raise: event required")
			}
		case *Assign:
			if vv.Location == "" {
				err = fmt.Errorf("assign: location required")
			}
		case *ForEach:
			if vv.Array == "" || vv.Item == "" {
				err = fmt.Errorf("foreach: array and item required")
			}
		case *If:
			if vv.Cond == "" {
				err = fmt.Errorf("if: cond required")
			}
		}
	})
	return err
}

func (def *Definition) resolve(from string, ids []string) ([]int, error) {
	acc := make([]int, 0, len(ids))
	for _, id := range ids {
		i, have := def.ids[id]
		if !have {
			return nil, &UnknownState{def.Document, id, from}
		}
		acc = append(acc, i)
	}
	return acc, nil
}

func (def *Definition) addTransition(n *Node, t *Transition, synthesized bool) (*TransitionNode, error) {
	tn := &TransitionNode{
		DocOrder:   len(def.Transitions),
		Source:     n.Index,
		Cond:       t.Cond,
		Type:       t.Type,
		Actions:    t.Actions,
		Transition: t,
	}
	if tn.Type == "" {
		tn.Type = External
	}
	if t.Event != "" {
		ds, err := match.Parse(t.Event)
		if err != nil {
			return nil, &BadDocument{def.Document, n.Id, err.Error() + ": " + t.Event}
		}
		tn.Events = ds
	}
	targets, err := def.resolve(n.Id, t.Targets)
	if err != nil {
		return nil, err
	}
	tn.Targets = targets
	if synthesized {
		for _, target := range targets {
			if !def.IsDescendant(target, n.Index) {
				return nil, &BadDocument{def.Document, n.Id, "initial target " + def.Nodes[target].Id + " isn't a descendant"}
			}
		}
	}
	def.Transitions = append(def.Transitions, tn)
	return tn, nil
}

func (def *Definition) compileNode(ctx context.Context, n *Node) error {
	d := def.Document

	// Initial transitions of compound states.
	if n.IsCompound() {
		var t *Transition
		switch {
		case n.Index == Root && 0 < len(d.Initial):
			t = &Transition{Targets: d.Initial, Type: Internal}
		case n.Index == Root:
			t = &Transition{Targets: []string{def.Nodes[n.States[0]].Id}, Type: Internal}
		case n.State.InitialTransition != nil:
			t = n.State.InitialTransition
			if t.Event != "" || t.Cond != "" {
				return &BadDocument{d, n.Id, "initial transition with event or cond"}
			}
		case 0 < len(n.State.Initial):
			t = &Transition{Targets: n.State.Initial}
		default:
			t = &Transition{Targets: []string{def.Nodes[n.States[0]].Id}}
		}
		tn, err := def.addTransition(n, t, true)
		if err != nil {
			return err
		}
		if len(tn.Targets) == 0 {
			return &BadDocument{d, n.Id, "initial transition without targets"}
		}
		n.Initial = tn
	}

	if n.State == nil {
		return nil
	}

	for _, t := range n.State.Transitions {
		tn, err := def.addTransition(n, t, false)
		if err != nil {
			return err
		}
		if n.History != NoHistory {
			if tn.Events != nil || tn.Cond != "" || len(tn.Targets) == 0 {
				return &BadDocument{d, n.Id, "history transition must be eventless, unguarded, and targeted"}
			}
			for _, target := range tn.Targets {
				if !def.IsDescendant(target, n.Parent) {
					return &BadDocument{d, n.Id, "history default target outside parent"}
				}
			}
		}
		n.Transitions = append(n.Transitions, tn)
	}

	if n.History != NoHistory && len(n.Transitions) == 0 {
		// Default to the parent's initial configuration.
		p := def.Nodes[n.Parent]
		var targets []string
		if p.Initial != nil {
			for _, i := range p.Initial.Targets {
				targets = append(targets, def.Nodes[i].Id)
			}
		} else {
			for _, i := range p.States {
				targets = append(targets, def.Nodes[i].Id)
			}
		}
		tn, err := def.addTransition(n, &Transition{Targets: targets}, false)
		if err != nil {
			return err
		}
		n.Transitions = append(n.Transitions, tn)
	}

	for _, inv := range n.Invokes {
		if inv.Content == nil || inv.Content.Document == nil {
			continue
		}
		child, err := inv.Content.Document.Compile(ctx)
		if err != nil {
			return fmt.Errorf("inline document in state %s: %w", n.Id, err)
		}
		def.inline[inv] = child
	}

	return nil
}

// Lookup returns the index of the node with the given id.
func (def *Definition) Lookup(id string) (int, bool) {
	i, have := def.ids[id]
	return i, have
}

// Node returns the node with the given index.
//
// Panics for an index that isn't in this Definition.
func (def *Definition) Node(i int) *Node {
	if i < 0 || len(def.Nodes) <= i {
		panic(fmt.Sprintf("core: unknown node %d in %s", i, def.Document.Name))
	}
	return def.Nodes[i]
}

// IsDescendant reports whether node a is a proper descendant of
// node b.
func (def *Definition) IsDescendant(a, b int) bool {
	for p := def.Node(a).Parent; 0 <= p; p = def.Nodes[p].Parent {
		if p == b {
			return true
		}
	}
	return false
}

// ProperAncestors returns the ancestors of the node up to but not
// including stop, innermost first.  A stop of -1 includes the root.
func (def *Definition) ProperAncestors(i, stop int) []int {
	var acc []int
	for p := def.Node(i).Parent; 0 <= p && p != stop; p = def.Nodes[p].Parent {
		acc = append(acc, p)
	}
	return acc
}

// Path returns the ids of the node's ancestors (outermost first,
// excluding the root) and the node itself joined with ".".
func (def *Definition) Path(i int) string {
	as := def.ProperAncestors(i, Root)
	ids := make([]string, 0, len(as)+1)
	for j := len(as) - 1; 0 <= j; j-- {
		ids = append(ids, def.Nodes[as[j]].Id)
	}
	return strings.Join(append(ids, def.Nodes[i].Id), ".")
}

// Inline returns the compiled inline document for an invoke.
func (def *Definition) Inline(inv *Invoke) (*Definition, bool) {
	child, have := def.inline[inv]
	return child, have
}

// Name returns the Document's name.
func (def *Definition) Name() string {
	return def.Document.Name
}
