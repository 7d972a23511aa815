package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Comcast/scxml/util/testutil"
)

func TestMermaid(t *testing.T) {
	def := testutil.Definition(t, testutil.Turnstile)

	var buf bytes.Buffer
	if err := Mermaid(def, &buf, nil, "unlocked"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"stateDiagram-v2",
		`state "locked" as s1`,
		"[*] --> s1",
		"s1 --> s2 : coin",
		"s2 --> s2 : coin [coins > 10]",
		"s3 --> [*]",
		"class s3 final",
		"class s2 current",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("no %q in\n%s", want, out)
		}
	}
}

func TestMermaidParallel(t *testing.T) {
	var buf bytes.Buffer
	opts := &MermaidOpts{}
	if err := Mermaid(testutil.Definition(t, nested), &buf, opts, ""); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		`state "H*" as s2`,
		"state s1 {",
		"state s5 {",
		"--",
		"s8 --> s9 : tick",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("no %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "In(") {
		t.Fatal("cond shown")
	}
	if strings.Contains(out, "classDef") {
		t.Fatal("unwanted classDef")
	}
}
