package tools

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/Comcast/scxml/core"

	md "github.com/russross/blackfriday/v2"
)

// RenderHTML writes an HTML fragment describing the definition: the
// document's Markdown doc followed by a table of states.
func RenderHTML(def *core.Definition, out io.Writer) error {
	var err error
	f := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(out, format+"\n", args...)
	}
	esc := html.EscapeString
	code := func(class, s string) {
		if s != "" {
			f(`<div class="%s code"><pre>%s</pre></div>`, class, esc(s))
		}
	}

	doc := def.Document
	if doc.Doc != "" {
		f(`<div class="specDoc doc">%s</div>`, md.Run([]byte(doc.Doc)))
	}
	if doc.Datamodel != "" {
		f(`<div>datamodel: <span class="datamodel">%s</span></div>`, esc(doc.Datamodel))
	}

	f(`<div class="states"><table>`)
	for _, n := range def.Nodes[1:] {
		f(`<tr class="state"><td><span id="%s" class="stateName">%s</span></td><td>`, esc(n.Id), esc(n.Id))

		var kind []string
		switch {
		case n.Parallel:
			kind = append(kind, "parallel")
		case n.Final:
			kind = append(kind, "final")
		case n.History != core.NoHistory:
			kind = append(kind, string(n.History)+" history")
		case len(n.States) == 0:
			kind = append(kind, "atomic")
		default:
			kind = append(kind, "compound")
		}
		if n.Parent != core.Root {
			p := def.Node(n.Parent).Id
			kind = append(kind, fmt.Sprintf(`in <a href="#%s">%s</a>`, esc(p), esc(p)))
		}
		f(`<div class="stateKind">%s</div>`, strings.Join(kind, " "))

		if n.Initial != nil && !isDefaultInitial(n) {
			f(`<div class="initial">initial: %s</div>`, links(def, n.Initial.Targets))
		}
		for _, block := range n.OnEntry {
			code("onentry", ActionsYAML(block))
		}
		for _, block := range n.OnExit {
			code("onexit", ActionsYAML(block))
		}
		for _, inv := range n.Invokes {
			what := inv.Src
			if what == "" && inv.Content != nil && inv.Content.Document != nil {
				what = "inline " + inv.Content.Document.Name
			}
			f(`<div class="invoke">invoke <code>%s</code> %s</div>`, esc(inv.Id), esc(what))
		}

		if 0 < len(n.Transitions) {
			f(`<div class="transitions"><table>`)
			for i, t := range n.Transitions {
				f(`<tr><td><div class="transitionNum">%d</div></td><td><table>`, i)
				if t.Events != nil {
					f(`<tr><td>event</td><td><code>%s</code></td></tr>`, esc(t.Events.String()))
				}
				if t.Cond != "" {
					f(`<tr><td>cond</td><td><code>%s</code></td></tr>`, esc(t.Cond))
				}
				if t.Type == core.Internal {
					f(`<tr><td>type</td><td>internal</td></tr>`)
				}
				if 0 < len(t.Targets) {
					f(`<tr><td>target</td><td>%s</td></tr>`, links(def, t.Targets))
				}
				if acts := ActionsYAML(t.Actions); acts != "" {
					f(`<tr><td>actions</td><td><div class="code"><pre>%s</pre></div></td></tr>`, esc(acts))
				}
				f(`</table></td></tr>`)
			}
			f(`</table></div>`)
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return err
}

func isDefaultInitial(n *core.Node) bool {
	ts := n.Initial.Targets
	return len(ts) == 1 && 0 < len(n.States) && ts[0] == n.States[0] && len(n.Initial.Actions) == 0
}

func links(def *core.Definition, targets []int) string {
	acc := make([]string, 0, len(targets))
	for _, id := range ids(def, targets) {
		id = html.EscapeString(id)
		acc = append(acc, fmt.Sprintf(`<a href="#%s"><code>%s</code></a>`, id, id))
	}
	return strings.Join(acc, " ")
}

// RenderPage writes a complete HTML page for the definition.  If
// includeGraph, the page includes a Mermaid diagram.
func RenderPage(def *core.Definition, out io.Writer, cssFiles []string, includeGraph bool) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/scxml.css"}
	}

	name := html.EscapeString(def.Name())

	fmt.Fprintf(out, `<!DOCTYPE html>
<html>
  <head>
  <meta charset="utf-8">
  <title>%s</title>
`, name)

	if includeGraph {
		fmt.Fprintf(out, `  <script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad: true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", html.EscapeString(cssFile))
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, name)

	if includeGraph {
		var buf bytes.Buffer
		if err := Mermaid(def, &buf, nil, ""); err != nil {
			return err
		}
		fmt.Fprintf(out, "<pre class=\"mermaid\">\n%s</pre>\n", html.EscapeString(buf.String()))
	}

	if err := RenderHTML(def, out); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, `
  </body>
</html>
`)
	return err
}

// ReadAndRenderPage loads, compiles, and renders the document at the
// source.
func ReadAndRenderPage(ctx context.Context, l core.Loader, src string, cssFiles []string, out io.Writer, includeGraph bool) error {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return err
	}
	def, err := doc.Compile(ctx)
	if err != nil {
		return err
	}
	return RenderPage(def, out, cssFiles, includeGraph)
}
