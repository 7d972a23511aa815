package tools

import (
	"reflect"
	"testing"

	"github.com/Comcast/scxml/util/testutil"
)

func TestAnalysis(t *testing.T) {
	a := Analyze(testutil.Definition(t, testutil.Turnstile))

	if a.States != 3 {
		t.Fatal(a.States)
	}
	if a.Transitions != 5 {
		t.Fatal(a.Transitions)
	}
	if a.Guards != 1 {
		t.Fatal(a.Guards)
	}
	if !reflect.DeepEqual(a.Finals, []string{"halted"}) {
		t.Fatal(a.Finals)
	}
	if !reflect.DeepEqual(a.Handled, []string{"coin", "halt", "push"}) {
		t.Fatal(a.Handled)
	}
	if !reflect.DeepEqual(a.Unhandled, []string{"rich"}) {
		t.Fatal(a.Unhandled)
	}
	if len(a.Unreachable) != 0 {
		t.Fatal(a.Unreachable)
	}
	if len(a.DeadEnds) != 0 {
		t.Fatal(a.DeadEnds)
	}
}

func TestAnalysisReachability(t *testing.T) {
	src := `
states:
  - id: a
    transitions:
      - event: go
        target: p1
  - id: orphan
  - id: p
    parallel: true
    states:
      - id: r1
        states:
          - id: p1
          - id: p2
      - id: r2
        states:
          - id: q1
          - id: q2
            transitions:
              - event: stuck
                target: q1
  - id: stuck
`
	a := Analyze(testutil.Definition(t, src))

	if !reflect.DeepEqual(a.Unreachable, []string{"orphan", "p2", "q2", "stuck"}) {
		t.Fatal(a.Unreachable)
	}
	if !reflect.DeepEqual(a.DeadEnds, []string{"orphan", "p1", "p2", "q1", "stuck"}) {
		t.Fatal(a.DeadEnds)
	}
	if a.Summary() == "" {
		t.Fatal("empty summary")
	}
}
