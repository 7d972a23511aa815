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

// Package loader reads state machine documents.
//
// Documents are YAML (or JSON, which is YAML).  A small example:
//
//	name: turnstile
//	data:
//	  - id: coins
//	    expr: "0"
//	states:
//	  - id: locked
//	    transitions:
//	      - event: coin
//	        target: unlocked
//	        actions:
//	          - assign: {location: coins, expr: coins + 1}
//	  - id: unlocked
//	    transitions:
//	      - event: push
//	        target: locked
//
// Executable content is a list of single-key maps, where the key is
// the kind of action ("raise", "send", "if", ...).
//
// A document's text can include '%inline("NAME")', which is replaced
// by the contents of the file NAME (relative to the document).
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/scxml/core"

	"github.com/jsccast/yaml"
	log "github.com/sirupsen/logrus"
)

// StorePrefix marks a source as the name of a document in a
// DocumentSource.
const StorePrefix = "store:"

// NoDocumentSource is returned for a "store:" source when the Loader
// has no Documents.
var NoDocumentSource = errors.New("no document source")

// DocumentSource provides documents by name.  See package store.
type DocumentSource interface {
	GetDocument(ctx context.Context, name string) ([]byte, error)
}

// Loader implements core.Loader.
//
// Sources can be file names (relative to Dir), "file://" URLs,
// "http://" and "https://" URLs, and "store:NAME".
type Loader struct {
	// Dir is the base directory for relative file names.
	Dir string

	// Client is used for HTTP sources.  Defaults to
	// http.DefaultClient.
	Client *http.Client

	// Documents, if not nil, resolves "store:" sources.
	Documents DocumentSource

	Logger *log.Entry
}

// NewLoader makes a Loader that reads files relative to dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		Dir:    dir,
		Logger: log.NewEntry(log.StandardLogger()),
	}
}

func (l *Loader) logger() *log.Entry {
	if l.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return l.Logger
}

func (l *Loader) path(name string) string {
	if filepath.IsAbs(name) || l.Dir == "" {
		return name
	}
	return filepath.Join(l.Dir, name)
}

// Read gets the bytes at the source.  File sources get Inline()
// expansion.
func (l *Loader) Read(ctx context.Context, src string) ([]byte, error) {
	l.logger().WithField("src", src).Debug("loader read")

	switch {
	case strings.HasPrefix(src, StorePrefix):
		if l.Documents == nil {
			return nil, NoDocumentSource
		}
		return l.Documents.GetDocument(ctx, src[len(StorePrefix):])

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, "GET", src, nil)
		if err != nil {
			return nil, err
		}
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: %s", src, resp.Status)
		}
		return io.ReadAll(resp.Body)

	default:
		filename := l.path(strings.TrimPrefix(src, "file://"))
		return ReadFileWithInlines(filename)
	}
}

// Load reads and parses the document at the source.  A document
// without a name is named after its source.
func (l *Loader) Load(ctx context.Context, src string) (*core.Document, error) {
	bs, err := l.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	doc, err := l.Parse(ctx, bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	if doc.Name == "" {
		base := filepath.Base(strings.TrimPrefix(src, StorePrefix))
		doc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc, nil
}

// Parse decodes a document.  Data items with a src are loaded.
func (l *Loader) Parse(ctx context.Context, bs []byte) (*core.Document, error) {
	var raw rawDocument
	if err := unmarshal(bs, &raw); err != nil {
		return nil, err
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, err
	}
	doc, err := raw.document()
	if err != nil {
		return nil, err
	}
	if err = l.resolveData(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func unmarshal(bs []byte, x interface{}) error {
	if trimmed := bytes.TrimSpace(bs); 0 < len(trimmed) && trimmed[0] == '{' {
		return json.Unmarshal(bs, x)
	}
	return yaml.Unmarshal(bs, x)
}

// resolveData loads the src of every data item (including those in
// inline documents) into the item's Value.
func (l *Loader) resolveData(ctx context.Context, doc *core.Document) error {
	resolve := func(ds []*core.Data) error {
		for _, d := range ds {
			if d.Src == "" || d.Value != nil {
				continue
			}
			bs, err := l.Read(ctx, d.Src)
			if err != nil {
				return fmt.Errorf("data %s: %w", d.Id, err)
			}
			var v interface{}
			if err := unmarshal(bs, &v); err != nil {
				v = string(bs)
			}
			if v == nil {
				v = string(bs)
			}
			d.Value = v
		}
		return nil
	}

	if err := resolve(doc.Data); err != nil {
		return err
	}
	var err error
	doc.Walk(func(_, s *core.State) {
		if err != nil {
			return
		}
		if err = resolve(s.Data); err != nil {
			return
		}
		for _, inv := range s.Invokes {
			if inv.Content != nil && inv.Content.Document != nil {
				if err = l.resolveData(ctx, inv.Content.Document); err != nil {
					return
				}
			}
		}
	})
	return err
}

// LoadDir loads every .yaml, .yml, and .json document in the
// directory.  Documents are keyed by name.
func (l *Loader) LoadDir(ctx context.Context, dir string) (map[string]*core.Document, error) {
	entries, err := os.ReadDir(l.path(dir))
	if err != nil {
		return nil, err
	}
	docs := make(map[string]*core.Document, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		doc, err := l.Load(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		docs[doc.Name] = doc
	}
	l.logger().WithField("count", len(docs)).Info("loaded documents")
	return docs, nil
}
