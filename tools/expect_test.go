package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/Comcast/scxml/interpreters/ecmascript"
	"github.com/Comcast/scxml/util/testutil"
)

func TestExpectBasic(t *testing.T) {
	s := &Scenario{
		Doc:            "Put in a coin, push, and halt",
		DefaultTimeout: Duration(5 * time.Second),
		IOs: []*IO{
			{
				Doc:       "Start locked",
				Active:    []string{"locked"},
				OutputSet: []*Output{{Pattern: "^log locked"}},
			},
			{
				Doc:    "Pay",
				Inputs: []interface{}{"coin"},
				Active: []string{"unlocked"},
				OutputSet: []*Output{
					{Pattern: "^transition locked -> unlocked$"},
					{Pattern: "^enter unlocked$"},
				},
			},
			{
				Doc:         "Push and halt",
				WaitBetween: Duration(10 * time.Millisecond),
				Inputs:      []interface{}{`{"name":"push"}`, map[string]interface{}{"name": "halt"}},
				Done:        true,
				Active:      []string{"halted"},
			},
		},
	}

	if err := s.Run(context.Background(), testutil.Definition(t, testutil.Turnstile), nil); err != nil {
		t.Fatal(err)
	}
}

func TestExpectTimeout(t *testing.T) {
	s := &Scenario{
		IOs: []*IO{
			{
				Active:  []string{"unlocked"},
				Timeout: Duration(50 * time.Millisecond),
			},
		},
	}

	err := s.Run(context.Background(), testutil.Definition(t, testutil.Turnstile), nil)
	if !errors.Is(err, Timeout) {
		t.Fatal(err)
	}
}

func TestExpectTerminated(t *testing.T) {
	s := &Scenario{
		IOs: []*IO{
			{
				Inputs:    []interface{}{"halt"},
				OutputSet: []*Output{{Pattern: "^enter unlocked$"}},
			},
		},
	}

	err := s.Run(context.Background(), testutil.Definition(t, testutil.Turnstile), nil)
	if !errors.Is(err, Terminated) {
		t.Fatal(err)
	}
}

func TestReadScenario(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "s.yaml")
	src := `
doc: From a file
document: turnstile.yaml
defaultTimeout: 2s
ios:
  - inputs: [coin]
    waitAfter: 10ms
    active: [unlocked]
    outputSet:
      - pattern: "^enter unlocked$"
`
	if err := os.WriteFile(filename, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := ReadScenario(filename)
	if err != nil {
		t.Fatal(err)
	}
	if s.Document != "turnstile.yaml" {
		t.Fatal(s.Document)
	}
	if time.Duration(s.DefaultTimeout) != 2*time.Second {
		t.Fatal(s.DefaultTimeout)
	}
	if len(s.IOs) != 1 || time.Duration(s.IOs[0].WaitAfter) != 10*time.Millisecond {
		t.Fatal(testutil.JS(s))
	}

	if err = s.Run(context.Background(), testutil.Definition(t, testutil.Turnstile), nil); err != nil {
		t.Fatal(err)
	}
}
