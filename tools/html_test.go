package tools

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/scxml/loader"
	"github.com/Comcast/scxml/util/testutil"
)

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(testutil.Definition(t, testutil.Turnstile), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"<strong>turnstile</strong>",
		`<span id="locked" class="stateName">locked</span>`,
		`<a href="#unlocked"><code>unlocked</code></a>`,
		"coins &gt; 10",
		`<div class="stateKind">final</div>`,
		"raise:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("no %q in\n%s", want, out)
		}
	}
}

func TestRenderPage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "turnstile.yaml"), []byte(testutil.Turnstile), 0644); err != nil {
		t.Fatal(err)
	}
	l := loader.NewLoader(dir)

	t.Run("withoutGraph", func(t *testing.T) {
		out := bytes.NewBuffer(make([]byte, 0, 1024*128))

		if err := ReadAndRenderPage(context.Background(), l, "turnstile.yaml", []string{"spec.css"}, out, false); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(out.String(), "mermaid") {
			t.Fatal("unwanted graph")
		}
	})

	t.Run("withGraph", func(t *testing.T) {
		out := bytes.NewBuffer(make([]byte, 0, 1024*128))

		if err := ReadAndRenderPage(context.Background(), l, "turnstile.yaml", []string{"spec.css"}, out, true); err != nil {
			t.Fatal(err)
		}
		s := out.String()
		if !strings.Contains(s, `<pre class="mermaid">`) || !strings.Contains(s, "stateDiagram-v2") {
			t.Fatal(s)
		}
		if !strings.Contains(s, `<link href="spec.css" rel="stylesheet">`) {
			t.Fatal(s)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if err := ReadAndRenderPage(context.Background(), l, "nope.yaml", nil, &bytes.Buffer{}, false); err == nil {
			t.Fatal("expected an error")
		}
	})
}
