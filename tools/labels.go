package tools

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/Comcast/scxml/core"

	"gopkg.in/yaml.v2"
)

// summarize turns executable content into generic data suitable for
// YAML rendering.  Each action becomes a single-key map like the ones
// the loader reads.
func summarize(as []core.Action) []interface{} {
	acc := make([]interface{}, 0, len(as))
	for _, a := range as {
		m := make(map[string]interface{})
		js, err := json.Marshal(a)
		if err == nil {
			err = json.Unmarshal(js, &m)
		}
		if err != nil {
			m = map[string]interface{}{"error": err.Error()}
		}
		switch vv := a.(type) {
		case *core.If:
			if 0 < len(vv.Then) {
				m["then"] = summarize(vv.Then)
			}
			if 0 < len(vv.ElseIfs) {
				elseifs := make([]interface{}, 0, len(vv.ElseIfs))
				for _, e := range vv.ElseIfs {
					elseifs = append(elseifs, map[string]interface{}{
						"cond":    e.Cond,
						"actions": summarize(e.Actions),
					})
				}
				m["elseif"] = elseifs
			}
			if 0 < len(vv.Else) {
				m["else"] = summarize(vv.Else)
			}
		case *core.ForEach:
			if 0 < len(vv.Actions) {
				m["actions"] = summarize(vv.Actions)
			}
		}
		acc = append(acc, map[string]interface{}{a.Kind(): m})
	}
	return acc
}

// ActionsYAML renders executable content as YAML.
func ActionsYAML(as []core.Action) string {
	if len(as) == 0 {
		return ""
	}
	bs, err := yaml.Marshal(summarize(as))
	if err != nil {
		return err.Error()
	}
	return string(bs)
}

// htmlLines escapes s for a Graphviz HTML label and left-justifies
// each line.
func htmlLines(s string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return strings.Replace(html.EscapeString(s), "\n", `<BR ALIGN="LEFT"/>`, -1) + `<BR ALIGN="LEFT"/>`
}

// transitionLabel is the short description of a transition: its
// events and its condition.
func transitionLabel(t *core.TransitionNode) string {
	var label string
	if t.Events != nil {
		label = t.Events.String()
	}
	if t.Cond != "" {
		if label != "" {
			label += " "
		}
		label += "[" + t.Cond + "]"
	}
	return label
}

func ids(def *core.Definition, is []int) []string {
	acc := make([]string, 0, len(is))
	for _, i := range is {
		acc = append(acc, def.Node(i).Id)
	}
	return acc
}
