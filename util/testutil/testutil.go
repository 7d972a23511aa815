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

// Package testutil has helpers for tests of packages that run
// documents.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/loader"

	log "github.com/sirupsen/logrus"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Warnf("testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Definition parses and compiles the YAML document.
func Definition(t testing.TB, src string) *core.Definition {
	t.Helper()
	ctx := context.Background()
	doc, err := loader.NewLoader("").Parse(ctx, []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	def, err := doc.Compile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return def
}

// WaitDone waits for the session to terminate.
func WaitDone(t testing.TB, s *core.Session, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(timeout):
		t.Fatalf("session %s didn't terminate in %s", s.Id(), timeout)
	}
}

// Turnstile is a small document with data, a guard, and a final
// state.
const Turnstile = `
name: turnstile
datamodel: ecmascript
doc: |
  A **turnstile** that counts coins.
data:
  - id: coins
    expr: "0"
states:
  - id: locked
    onentry:
      - log: {label: locked, expr: coins}
    transitions:
      - event: coin
        target: unlocked
        actions:
          - assign: {location: coins, expr: coins + 1}
      - event: halt
        target: halted
  - id: unlocked
    transitions:
      - event: push
        target: locked
      - event: coin
        cond: coins > 10
        actions:
          - raise: rich
      - event: halt
        target: halted
  - id: halted
    final: true
`
