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

package tools

import (
	"sort"
	"strings"

	"github.com/Comcast/scxml/core"
)

// Analysis reports some static properties of a compiled definition.
//
// The findings are conservative guesses.  A state that's reachable
// only through expressions (for example, a send with a targetexpr that
// leads to an event) is still considered reachable if any transition
// can get there.
type Analysis struct {
	def *core.Definition

	Name      string `json:"name"`
	Datamodel string `json:"datamodel"`

	States      int `json:"states"`
	Transitions int `json:"transitions"`
	Eventless   int `json:"eventless"`
	Guards      int `json:"guards"`
	Actions     int `json:"actions"`
	Invokes     int `json:"invokes"`

	Finals []string `json:"finals,omitempty"`

	// Unreachable states can't be entered from the initial
	// configuration.
	Unreachable []string `json:"unreachable,omitempty"`

	// DeadEnds are atomic, non-final states with no transitions
	// (counting the transitions of ancestors).
	DeadEnds []string `json:"deadEnds,omitempty"`

	// Handled lists the event descriptors that transitions consume.
	Handled []string `json:"handled,omitempty"`

	// Raised lists the events from raise actions.
	Raised []string `json:"raised,omitempty"`

	// Sent lists the literal events from send actions.
	Sent []string `json:"sent,omitempty"`

	// Unhandled lists raised events that no transition matches.
	Unhandled []string `json:"unhandled,omitempty"`
}

// Analyze inspects the definition.
func Analyze(def *core.Definition) *Analysis {
	a := &Analysis{
		def:       def,
		Name:      def.Name(),
		Datamodel: def.Document.Datamodel,
		States:    len(def.Nodes) - 1,
	}

	handled, raised, sent := make(map[string]bool), make(map[string]bool), make(map[string]bool)

	count := func(as []core.Action) {
		core.WalkActions(as, func(x core.Action) {
			a.Actions++
			switch vv := x.(type) {
			case *core.Raise:
				raised[vv.Event] = true
			case *core.Send:
				if vv.Event != "" {
					sent[vv.Event] = true
				}
			}
		})
	}

	for _, n := range def.Nodes {
		if n.Final {
			a.Finals = append(a.Finals, n.Id)
		}
		for _, block := range n.OnEntry {
			count(block)
		}
		for _, block := range n.OnExit {
			count(block)
		}
		a.Invokes += len(n.Invokes)
		for _, inv := range n.Invokes {
			count(inv.Finalize)
		}
		if n.Initial != nil {
			count(n.Initial.Actions)
		}
		for _, t := range n.Transitions {
			a.Transitions++
			if t.Eventless() {
				a.Eventless++
			} else {
				for _, d := range t.Events {
					handled[d.String()] = true
				}
			}
			if t.Cond != "" {
				a.Guards++
			}
			count(t.Actions)
		}
	}

	a.Handled = keys(handled)
	a.Raised = keys(raised)
	a.Sent = keys(sent)

	for _, name := range a.Raised {
		if !a.handles(name) {
			a.Unhandled = append(a.Unhandled, name)
		}
	}

	reached := reachable(def)
	for _, n := range def.Nodes[1:] {
		if !reached[n.Index] && n.History == core.NoHistory {
			a.Unreachable = append(a.Unreachable, n.Id)
		}
	}

	for _, n := range def.Nodes[1:] {
		if !n.IsAtomic() || n.Final {
			continue
		}
		dead := true
		for i := n.Index; i != core.Root; i = def.Node(i).Parent {
			if 0 < len(def.Node(i).Transitions) {
				dead = false
				break
			}
		}
		if dead {
			a.DeadEnds = append(a.DeadEnds, n.Id)
		}
	}

	return a
}

func (a *Analysis) handles(name string) bool {
	for _, t := range a.def.Transitions {
		if t.Events.Matches(name) {
			return true
		}
	}
	return false
}

// reachable finds the states that some sequence of transitions could
// enter.
func reachable(def *core.Definition) map[int]bool {
	var (
		active   = make(map[int]bool)
		defaults = make(map[int]bool)
		todo     []int
	)

	var enter func(i int)
	var activate func(i int)

	activate = func(i int) {
		if active[i] {
			return
		}
		active[i] = true
		todo = append(todo, i)
	}

	// enter is default entry, which follows initial transitions and
	// enters every region of a parallel state.
	enter = func(i int) {
		if defaults[i] {
			return
		}
		defaults[i] = true
		activate(i)
		n := def.Node(i)
		switch {
		case n.Parallel:
			for _, c := range n.States {
				enter(c)
			}
		case n.Initial != nil:
			for _, t := range n.Initial.Targets {
				target(def, t, enter, activate)
			}
		}
	}

	enter(core.Root)

	for 0 < len(todo) {
		i := todo[0]
		todo = todo[1:]
		for _, t := range def.Node(i).Transitions {
			for _, to := range t.Targets {
				target(def, to, enter, activate)
			}
		}
	}

	return active
}

// target handles explicit entry of a target: the target gets default
// entry, its ancestors become active, and parallel ancestors enter
// their other regions.
func target(def *core.Definition, i int, enter, activate func(int)) {
	enter(i)
	child := i
	for p := def.Node(i).Parent; 0 <= p; p = def.Node(p).Parent {
		activate(p)
		if def.Node(p).Parallel {
			for _, c := range def.Node(p).States {
				if c != child {
					enter(c)
				}
			}
		}
		child = p
	}
}

func keys(m map[string]bool) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// Summary is a short human-readable report.
func (a *Analysis) Summary() string {
	var b strings.Builder
	line := func(label string, xs []string) {
		if 0 < len(xs) {
			b.WriteString(label + ": " + strings.Join(xs, ", ") + "\n")
		}
	}
	line("unreachable", a.Unreachable)
	line("dead ends", a.DeadEnds)
	line("unhandled raises", a.Unhandled)
	return b.String()
}
