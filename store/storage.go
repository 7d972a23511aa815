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

// Package store persists state machine documents and records of
// terminated sessions.
//
// A Storage is also a loader.DocumentSource, so a Loader can resolve
// "store:NAME" sources from it.
package store

import (
	"context"
	"errors"
	"time"
)

// NotFound is returned when a document or session isn't in the
// Storage.
var NotFound = errors.New("not found")

// SessionRecord is what's remembered about a terminated session.
type SessionRecord struct {
	// Id is the session id.
	Id string `json:"id"`

	// Name is the name of the session's document.
	Name string `json:"name"`

	// Parent is the id of the invoking session, if any.
	Parent   string `json:"parent,omitempty"`
	InvokeId string `json:"invokeid,omitempty"`

	// Final is the configuration when the session terminated.
	Final []string `json:"final"`

	Terminated time.Time `json:"terminated"`
}

// Storage is a persistence interface for documents and session
// records.
type Storage interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// GetDocument returns NotFound (perhaps wrapped) if there is
	// no document with the given name.
	GetDocument(ctx context.Context, name string) ([]byte, error)

	// PutDocument replaces any existing document with the name.
	PutDocument(ctx context.Context, name string, src []byte) error

	RemDocument(ctx context.Context, name string) error

	// ListDocuments returns document names in lexical order.
	ListDocuments(ctx context.Context) ([]string, error)

	WriteSession(ctx context.Context, r *SessionRecord) error

	GetSession(ctx context.Context, id string) (*SessionRecord, error)
}
