/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

package crew

import (
	"context"
	"errors"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/loader"
)

// Source says where to find a document.
//
// Exactly one of the fields should be given.
type Source struct {
	// Name is the name of a document in the crew's Storage.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// URL is anything the crew's Loader can Load: a file name, a
	// file:// URL, or an http(s) URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source is a serialized document.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Inline is an actual document right here.
	Inline *core.Document `json:"-" yaml:"-"`
}

// EmptySource is returned for a Source with no fields.
var EmptySource = errors.New("empty source")

// NewSource makes a Source with the given name.
func NewSource(name string) *Source {
	return &Source{
		Name: name,
	}
}

// Copy makes a shallow copy.
func (s *Source) Copy() *Source {
	c := *s
	return &c
}

// key is used to cache compiled definitions.  Serialized and inline
// documents aren't cached.
func (s *Source) key() string {
	switch {
	case s.Name != "":
		return loader.StorePrefix + s.Name
	case s.URL != "":
		return s.URL
	}
	return ""
}

// Document gets the document with the given Loader.
func (s *Source) Document(ctx context.Context, l core.Loader) (*core.Document, error) {
	switch {
	case s.Inline != nil:
		return s.Inline, nil
	case s.Source != "":
		return l.Parse(ctx, []byte(s.Source))
	case s.key() != "":
		return l.Load(ctx, s.key())
	}
	return nil, EmptySource
}
