package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/scxml/core"

	log "github.com/sirupsen/logrus"
)

const (
	atomicFill   = "#99ddc8"
	finalFill    = "#52aa5e"
	historyFill  = "#f5e6a3"
	compoundFill = "#eef7f3"
	currentFill  = "#f98b8b"
)

// Dot writes a Graphviz dot file for the given definition.
//
// Compound and parallel states are clusters.  Each cluster has a small
// anchor node for the state itself, and transitions to or from the
// state are drawn to the anchor and clipped at the cluster.
//
// The optional fromState and toState can be ids of states during a
// transition.  If given, the toState will be red, and so will any
// transition from fromState to toState.
func Dot(def *core.Definition, w io.Writer, fromState, toState string) error {
	log.WithField("nodes", len(def.Nodes)).Debug("dot")

	var err error
	f := func(indent int, format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, strings.Repeat("  ", indent)+format+"\n", args...)
	}

	f(0, "digraph G {")
	f(1, `graph [compound=true,ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6,fontsize="12"]`)
	f(1, `node [shape="record" style="rounded,filled" fontsize="12"]`)
	f(1, `edge [fontsize="10"]`)

	var state func(indent, i int)
	state = func(indent, i int) {
		n := def.Node(i)
		label := "<B>" + html.EscapeString(n.Id) + "</B>"
		if entry := onEntryExit(n); entry != "" {
			label += `<FONT POINT-SIZE="8">` + entry + `</FONT>`
		}

		if leaf(n) {
			fill, style, shape := atomicFill, "rounded,filled", "record"
			switch {
			case n.Final:
				fill, style = finalFill, "rounded,filled,bold"
			case n.History != core.NoHistory:
				fill, shape = historyFill, "circle"
				label = "H"
				if n.History == core.DeepHistory {
					label = "H*"
				}
			}
			if n.Id == toState {
				fill = currentFill
			}
			f(indent, `%s [shape="%s", style="%s", fillcolor="%s", label=<%s>]`,
				quote(n.Id), shape, style, fill, label)
			return
		}

		style := "rounded,filled"
		if n.Parallel {
			style = "dashed,filled"
		}
		fill := compoundFill
		if n.Id == toState {
			fill = currentFill
		}
		f(indent, "subgraph %s {", quote("cluster_"+n.Id))
		f(indent+1, `label=<%s>; style="%s"; fillcolor="%s"`, label, style, fill)
		f(indent+1, `%s [shape="point", width=0.1, label=""]`, quote(n.Id))
		for _, h := range n.Histories {
			state(indent+1, h)
		}
		for _, c := range n.States {
			state(indent+1, c)
		}
		f(indent, "}")
	}

	f(1, `%s [shape="circle", style="filled", fillcolor="black", width=0.2, label=""]`, quote(startNode))
	root := def.Node(core.Root)
	for _, c := range root.States {
		state(1, c)
	}

	edge := func(from, to int, label, color, style string) {
		src, dst := def.Node(from), def.Node(to)
		attrs := fmt.Sprintf(`color="%s", style="%s", label=<%s>`, color, style, label)
		if src.Index != core.Root && !leaf(src) && from != to && !def.IsDescendant(to, from) {
			attrs += fmt.Sprintf(`, ltail=%s`, quote("cluster_"+src.Id))
		}
		if !leaf(dst) && from != to && !def.IsDescendant(from, to) {
			attrs += fmt.Sprintf(`, lhead=%s`, quote("cluster_"+dst.Id))
		}
		name := src.Id
		if from == core.Root {
			name = startNode
		}
		f(1, "%s -> %s [%s]", quote(name), quote(dst.Id), attrs)
	}

	for _, n := range def.Nodes {
		if n.Initial != nil {
			for _, target := range n.Initial.Targets {
				edge(n.Index, target, "", "gray40", "dashed")
			}
		}
		for _, t := range n.Transitions {
			label := htmlLines(transitionLabel(t))
			if acts := ActionsYAML(t.Actions); acts != "" {
				label += `<FONT POINT-SIZE="8">` + htmlLines(acts) + `</FONT>`
			}
			if len(t.Targets) == 0 {
				f(1, "%s -> %s [style=\"dotted\", label=<%s>]", quote(n.Id), quote(n.Id), label)
				continue
			}
			for _, target := range t.Targets {
				color := "black"
				if n.Id == fromState && def.Node(target).Id == toState {
					color = "red"
				}
				edge(n.Index, target, label, color, "solid")
			}
		}
	}

	f(0, "}")
	return err
}

const startNode = "_start"

// leaf reports whether the node is drawn as a node rather than a
// cluster.  History pseudostates are leaves.
func leaf(n *core.Node) bool {
	return len(n.States) == 0
}

func onEntryExit(n *core.Node) string {
	var acc string
	for _, block := range n.OnEntry {
		if y := ActionsYAML(block); y != "" {
			acc += `<BR ALIGN="LEFT"/>entry:<BR ALIGN="LEFT"/>` + htmlLines(y)
		}
	}
	for _, block := range n.OnExit {
		if y := ActionsYAML(block); y != "" {
			acc += `<BR ALIGN="LEFT"/>exit:<BR ALIGN="LEFT"/>` + htmlLines(y)
		}
	}
	return acc
}

// PNG generates a PNG image based on output from Dot.
//
// This function with write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(def *core.Definition, basename string, fromState, toState string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err = Dot(def, dotfile, fromState, toState); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err = dotfile.Close(); err != nil {
		return pngname, err
	}
	if err = exec.Command("dot", "-Tpng", "-Gstart=1", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func quote(s string) string {
	return `"` + escape(s) + `"`
}

func escape(s string) string {
	s = strings.Replace(s, `\`, `\\`, -1)
	return strings.Replace(s, `"`, `\"`, -1)
}
