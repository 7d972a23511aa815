/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package sio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/scxml/core"

	log "github.com/sirupsen/logrus"
)

// Stdio reads events from stdin (or whatever In is) and writes trace
// lines to stdout (or whatever Out is).
//
// Each input line is a JSON event ({"name":"coin"}) or just an event
// name.  Blank lines and lines starting with '#' are ignored, and
// "quit" ends the input.
type Stdio struct {
	In  io.Reader
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (tagged "input") to the
	// output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "trace", "error").
	Tags bool

	// PadTags adds some padding to tags.
	PadTags bool

	sync.Mutex
}

// NewStdio creates a new Stdio with In and Out initialized to
// os.Stdin and os.Stdout.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
	}
}

// Printf writes a line to Out.
func (s *Stdio) Printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 6s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}
	s.Lock()
	fmt.Fprintf(s.Out, format, args...)
	s.Unlock()
}

// Trace returns a core.Trace that also writes its lines to Out.
func (s *Stdio) Trace() *core.Trace {
	t := core.NewTrace()
	t.Tee = func(sid, line string) {
		s.Printf("trace", "%s %s\n", sid, line)
	}
	return t
}

// Read reads events and sends them to the session until EOF, "quit",
// or the context is done.
func (s *Stdio) Read(ctx context.Context, r Router, sessionId string) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		in := bufio.NewReader(s.In)
		for {
			line, err := in.ReadString('\n')
			if 0 < len(line) {
				select {
				case <-ctx.Done():
					return
				case lines <- line:
				}
			}
			if err != nil {
				if err != io.EOF {
					errs <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if s.EchoInput {
				s.Printf("input", "%s", line)
			}
			line = strings.TrimSpace(line)
			if line == "quit" {
				return nil
			}
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ev, err := s.parse(ctx, line)
			if err != nil {
				s.Printf("error", "bad input: %s\n", err)
				continue
			}
			log.WithField("event", ev.Name).WithField("data", brief(ev.Data, 70)).Debug("stdio input")
			if err := deliver(r, sessionId, ev); err != nil {
				return err
			}
		}
	}
}

func (s *Stdio) parse(ctx context.Context, line string) (*core.Event, error) {
	if s.ShellExpand {
		var err error
		if line, err = expand(ctx, line); err != nil {
			return nil, err
		}
	}
	if strings.HasPrefix(line, "{") {
		return DecodeEvent([]byte(line), "")
	}
	if strings.ContainsAny(line, " \t") {
		return nil, fmt.Errorf("event name %q has spaces", line)
	}
	return core.NewEvent(line, nil), nil
}

var shellCommand = regexp.MustCompile(`<<(.*?)>>`)

// expand replaces each <<COMMAND>> in the line with the command's
// output (without trailing newlines).
func expand(ctx context.Context, line string) (string, error) {
	var err error
	expanded := shellCommand.ReplaceAllStringFunc(line, func(m string) string {
		if err != nil {
			return ""
		}
		src := shellCommand.FindStringSubmatch(m)[1]
		out, e := exec.CommandContext(ctx, "sh", "-c", src).Output()
		if e != nil {
			err = fmt.Errorf("shell %q: %w", src, e)
			return ""
		}
		return strings.TrimRight(string(out), "\n")
	})
	if err != nil {
		return "", err
	}
	return expanded, nil
}

// brief renders x as JSON, cut to n bytes for log lines.
func brief(x interface{}, n int) string {
	js, err := json.Marshal(x)
	if err != nil {
		return fmt.Sprintf("%v", x)
	}
	if len(js) <= n {
		return string(js)
	}
	return string(js[:n]) + "..."
}
