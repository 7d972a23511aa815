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

// Package match implements event descriptor matching.
//
// A transition's event attribute is a space-separated list of
// descriptors.  A descriptor matches an event name if the descriptor's
// tokens (split on ".") are a prefix of the name's tokens.  The
// descriptor "*" matches every name, and a trailing ".*" (or ".") is
// ignored, so "error", "error.*" and "error." all match
// "error.execution" but none of them match "errors".
package match

import (
	"errors"
	"strings"
)

var (
	// EmptyDescriptor is returned by Parse for a descriptor list
	// with no descriptors.
	EmptyDescriptor = errors.New("empty event descriptor")

	// BadDescriptor is returned by Parse for a descriptor with an
	// empty token (like "a..b").
	BadDescriptor = errors.New("bad event descriptor")
)

// Descriptor is a single parsed event descriptor.
type Descriptor struct {
	// Any is true for "*".
	Any bool

	// Tokens are the dot-separated parts with any trailing
	// wildcard removed.
	Tokens []string
}

// String renders the descriptor in normal form.
func (d Descriptor) String() string {
	if d.Any {
		return "*"
	}
	return strings.Join(d.Tokens, ".")
}

// Matches reports whether this descriptor matches the event name.
func (d Descriptor) Matches(name string) bool {
	if d.Any {
		return true
	}
	if name == "" {
		return false
	}
	rest := name
	for _, tok := range d.Tokens {
		if !strings.HasPrefix(rest, tok) {
			return false
		}
		rest = rest[len(tok):]
		if rest == "" {
			continue
		}
		if rest[0] != '.' {
			return false
		}
		rest = rest[1:]
	}
	return true
}

// Descriptors is a parsed descriptor list.
type Descriptors []Descriptor

// Matches reports whether any descriptor matches the event name.
func (ds Descriptors) Matches(name string) bool {
	for _, d := range ds {
		if d.Matches(name) {
			return true
		}
	}
	return false
}

func (ds Descriptors) String() string {
	acc := make([]string, len(ds))
	for i, d := range ds {
		acc[i] = d.String()
	}
	return strings.Join(acc, " ")
}

// Parse parses a space-separated descriptor list.
func Parse(s string) (Descriptors, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, EmptyDescriptor
	}
	ds := make(Descriptors, 0, len(fields))
	for _, f := range fields {
		d, err := parseOne(f)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, nil
}

func parseOne(f string) (Descriptor, error) {
	if f == "*" {
		return Descriptor{Any: true}, nil
	}
	f = strings.TrimSuffix(f, ".*")
	f = strings.TrimSuffix(f, ".")
	if f == "" || f == "*" {
		return Descriptor{Any: true}, nil
	}
	toks := strings.Split(f, ".")
	for _, tok := range toks {
		if tok == "" || tok == "*" {
			return Descriptor{}, BadDescriptor
		}
	}
	return Descriptor{Tokens: toks}, nil
}

// Matches parses the descriptor list and checks the name.  A list that
// doesn't parse doesn't match anything.
func Matches(descriptors, name string) bool {
	ds, err := Parse(descriptors)
	if err != nil {
		return false
	}
	return ds.Matches(name)
}
