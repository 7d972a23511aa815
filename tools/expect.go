package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Comcast/scxml/core"

	"github.com/jsccast/yaml"
	log "github.com/sirupsen/logrus"
)

var (
	// Timeout is returned when an IO's expectations weren't met in
	// time.
	Timeout = errors.New("timeout")

	// Terminated is returned when the session ended before an IO's
	// expectations were met.
	Terminated = errors.New("session terminated")
)

// Duration is a time.Duration that can be written as "100ms" in YAML
// or JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(bs []byte) error {
	var x interface{}
	if err := json.Unmarshal(bs, &x); err != nil {
		return err
	}
	switch vv := x.(type) {
	case string:
		parsed, err := time.ParseDuration(vv)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(int64(vv))
	default:
		return fmt.Errorf("bad duration %s", bs)
	}
	return nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var x interface{}
	if err := unmarshal(&x); err != nil {
		return err
	}
	js, err := json.Marshal(x)
	if err != nil {
		return err
	}
	return d.UnmarshalJSON(js)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Output is a specification for a trace line that's expected.
type Output struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Pattern is a regular expression that some trace line must
	// match.  See core.Trace for the lines.
	Pattern string `json:"pattern" yaml:"pattern"`

	re *regexp.Regexp
}

// IO is a package of input events and the expected results.
type IO struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// WaitBefore is the time to wait before sending the first event.
	WaitBefore Duration `json:"waitBefore,omitempty" yaml:"waitBefore,omitempty"`

	// WaitBetween is the time to wait between sending events.
	WaitBetween Duration `json:"waitBetween,omitempty" yaml:"waitBetween,omitempty"`

	// Inputs are the events to send.  An input is an event name,
	// JSON for an event, or a map with the event's fields.
	Inputs []interface{} `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// WaitAfter is the time to wait after sending the last event.
	WaitAfter Duration `json:"waitAfter,omitempty" yaml:"waitAfter,omitempty"`

	// OutputSet is the set (not a list) of outputs to verify.
	OutputSet []*Output `json:"outputSet,omitempty" yaml:"outputSet,omitempty"`

	// Active lists states that must be in the configuration.
	Active []string `json:"active,omitempty" yaml:"active,omitempty"`

	// Done requires that the session terminate.
	Done bool `json:"done,omitempty" yaml:"done,omitempty"`

	// Timeout is the optional timeout for this IO.
	// Scenario.DefaultTimeout is the default value.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Scenario is mostly a sequence of IOs that drive one session.
type Scenario struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Document is the source of the document to run.  The caller
	// can ignore it and run any definition.
	Document string `json:"document,omitempty" yaml:"document,omitempty"`

	// IOs is sequence of IOs that this scenario will run.
	IOs []*IO `json:"ios" yaml:"ios"`

	// DefaultTimeout is the default timeout for each IO.
	DefaultTimeout Duration `json:"defaultTimeout,omitempty" yaml:"defaultTimeout,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// ReadScenario reads a Scenario from a YAML (or JSON) file.
func ReadScenario(filename string) (*Scenario, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err = yaml.Unmarshal(bs, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &s, nil
}

// Input converts a scenario input to an event.
func Input(x interface{}) (*core.Event, error) {
	switch vv := x.(type) {
	case *core.Event:
		return vv, nil
	case string:
		s := strings.TrimSpace(vv)
		if !strings.HasPrefix(s, "{") {
			return core.NewEvent(s, nil), nil
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			m[fmt.Sprint(k)] = v
		}
		return Input(m)
	default:
		js, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		var ev core.Event
		if err = json.Unmarshal(js, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	}
}

// Run starts a session for the definition and processes all the IOs
// in the Scenario.  The given options (which can be nil) get a
// core.Trace as their Monitor.  The session is stopped when Run
// returns.
func (s *Scenario) Run(ctx context.Context, def *core.Definition, opts *core.Options) error {
	for _, iop := range s.IOs {
		for _, output := range iop.OutputSet {
			re, err := regexp.Compile(output.Pattern)
			if err != nil {
				return fmt.Errorf("output pattern %q: %w", output.Pattern, err)
			}
			output.re = re
		}
	}

	var o core.Options
	if opts != nil {
		o = *opts
	}
	trace := core.NewTrace()
	o.Monitor = trace

	ss := core.NewSession(def, &o)
	if err := ss.Start(ctx); err != nil {
		return err
	}
	defer func() {
		ss.Stop()
		<-ss.Done()
	}()

	// Lines are checked from the end of the previous IO, since
	// the session may have run before the IO sends anything.
	mark := 0
	for i, iop := range s.IOs {
		if err := s.run(ctx, ss, trace, mark, iop); err != nil {
			if iop.Doc != "" {
				return fmt.Errorf("io %d (%s): %w", i, iop.Doc, err)
			}
			return fmt.Errorf("io %d: %w", i, err)
		}
		mark = len(trace.Get())
	}

	return nil
}

func (s *Scenario) run(ctx context.Context, ss *core.Session, trace *core.Trace, mark int, iop *IO) error {
	s.pause("waitBefore", iop.WaitBefore)
	for i, input := range iop.Inputs {
		if 0 < i {
			s.pause("waitBetween", iop.WaitBetween)
		}
		ev, err := Input(input)
		if err != nil {
			return err
		}
		if s.Verbose {
			log.WithField("event", ev.Name).Info("scenario input")
		}
		if err = ss.Send(ev); err != nil {
			return err
		}
	}
	s.pause("waitAfter", iop.WaitAfter)

	timeout := iop.Timeout
	if timeout == 0 {
		timeout = s.DefaultTimeout
	}
	if timeout == 0 {
		timeout = Duration(5 * time.Second)
	}
	deadline := time.NewTimer(time.Duration(timeout))
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		missing := s.missing(ss, trace.Get()[mark:], iop)
		if missing == "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", Timeout, missing)
		case <-ss.Done():
			if missing = s.missing(ss, trace.Get()[mark:], iop); missing == "" {
				return nil
			}
			return fmt.Errorf("%w: %s", Terminated, missing)
		case <-ticker.C:
		}
	}
}

// missing describes the first unmet expectation or returns "".
func (s *Scenario) missing(ss *core.Session, lines []string, iop *IO) string {
	for _, output := range iop.OutputSet {
		found := false
		for _, line := range lines {
			if output.re.MatchString(line) {
				found = true
				break
			}
		}
		if !found {
			return "no line matching " + output.Pattern
		}
	}

	if iop.Done {
		select {
		case <-ss.Done():
		default:
			return "session still running"
		}
	}

	if 0 < len(iop.Active) {
		config := ss.Configuration()
		select {
		case <-ss.Done():
			config = ss.FinalConfiguration()
		default:
		}
		have := make(map[string]bool, len(config))
		for _, id := range config {
			have[id] = true
		}
		for _, id := range iop.Active {
			if !have[id] {
				return id + " isn't active in " + strings.Join(config, " ")
			}
		}
	}

	return ""
}

func (s *Scenario) pause(why string, d Duration) {
	if 0 < d {
		if s.Verbose {
			log.WithField("why", why).WithField("duration", time.Duration(d)).Info("scenario pause")
		}
		time.Sleep(time.Duration(d))
	}
}
