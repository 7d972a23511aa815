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
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/scxml/core"

	log "github.com/sirupsen/logrus"
)

type MermaidOpts struct {
	// ShowConds adds transition conditions to transition labels.
	ShowConds bool `json:"showConds"`

	// FinalFill is the fill color for final states.
	FinalFill string `json:"finalFill,omitempty"`

	// CurrentFill is the fill color for the current state given
	// to Mermaid.
	CurrentFill string `json:"currentFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) state
// diagram for the given definition.
//
// Parallel regions are separated by "--".  History pseudostates are
// drawn as plain states named "H" or "H*".  The optional current state
// is highlighted.
func Mermaid(def *core.Definition, w io.Writer, opts *MermaidOpts, current string) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowConds:   true,
			FinalFill:   "#52aa5e",
			CurrentFill: "#f98b8b",
		}
	}

	log.WithField("nodes", len(def.Nodes)).Debug("mermaid")

	var err error
	f := func(indent int, format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, strings.Repeat("  ", indent)+format+"\n", args...)
	}

	// Mermaid ids are restrictive, so every state gets a generated one.
	nid := func(i int) string {
		return fmt.Sprintf("s%d", i)
	}

	f(0, "stateDiagram-v2")

	for _, n := range def.Nodes[1:] {
		name := n.Id
		switch n.History {
		case core.ShallowHistory:
			name = "H"
		case core.DeepHistory:
			name = "H*"
		}
		f(1, `state "%s" as %s`, mermaidText(name), nid(n.Index))
	}

	var transitions func(indent int, n *core.Node)
	transitions = func(indent int, n *core.Node) {
		if n.Initial != nil {
			for _, target := range n.Initial.Targets {
				f(indent, "[*] --> %s", nid(target))
			}
		}
		for _, c := range n.States {
			c := def.Node(c)
			if c.Final {
				f(indent, "%s --> [*]", nid(c.Index))
			}
		}
		for _, c := range append(append([]int{}, n.Histories...), n.States...) {
			for _, t := range def.Node(c).Transitions {
				label := ""
				if t.Events != nil {
					label = t.Events.String()
				}
				if opts.ShowConds && t.Cond != "" {
					label = strings.TrimSpace(label + " [" + t.Cond + "]")
				}
				if label != "" {
					label = " : " + mermaidText(label)
				}
				targets := t.Targets
				if len(targets) == 0 {
					targets = []int{c}
				}
				for _, target := range targets {
					f(indent, "%s --> %s%s", nid(c), nid(target), label)
				}
			}
		}
	}

	var composite func(indent int, n *core.Node)
	composite = func(indent int, n *core.Node) {
		for _, c := range n.States {
			c := def.Node(c)
			if len(c.States) == 0 {
				continue
			}
			f(indent, "state %s {", nid(c.Index))
			if c.Parallel {
				for j, r := range c.States {
					if 0 < j {
						f(indent+1, "--")
					}
					region := def.Node(r)
					if len(region.States) == 0 {
						f(indent+1, "%s", nid(r))
						continue
					}
					composite(indent+1, &core.Node{States: []int{r}})
				}
				transitions(indent+1, c)
			} else {
				composite(indent+1, c)
				transitions(indent+1, c)
			}
			f(indent, "}")
		}
	}

	root := def.Node(core.Root)
	composite(1, root)
	transitions(1, root)

	if opts.FinalFill != "" {
		f(1, "classDef final fill:%s", opts.FinalFill)
		for _, n := range def.Nodes[1:] {
			if n.Final {
				f(1, "class %s final", nid(n.Index))
			}
		}
	}
	if opts.CurrentFill != "" && current != "" {
		if i, have := def.Lookup(current); have {
			f(1, "classDef current fill:%s", opts.CurrentFill)
			f(1, "class %s current", nid(i))
		}
	}

	return err
}

// mermaidText makes a string safe for a Mermaid label.
func mermaidText(s string) string {
	s = strings.Replace(s, `"`, `'`, -1)
	s = strings.Replace(s, ";", "#59;", -1)
	s = strings.Replace(s, ":", "#58;", -1)
	return strings.Replace(s, "\n", " ", -1)
}
