// Package storetest exercises a store.Storage.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Comcast/scxml/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercise runs the basic operations against an open, empty Storage.
func Exercise(t *testing.T, s store.Storage) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.GetDocument(ctx, "turnstile")
	require.ErrorIs(t, err, store.NotFound)

	require.NoError(t, s.PutDocument(ctx, "turnstile", []byte("states: [{id: locked}]")))
	require.NoError(t, s.PutDocument(ctx, "door", []byte("states: [{id: closed}]")))

	src, err := s.GetDocument(ctx, "turnstile")
	require.NoError(t, err)
	assert.Equal(t, "states: [{id: locked}]", string(src))

	require.NoError(t, s.PutDocument(ctx, "turnstile", []byte("states: [{id: unlocked}]")))
	src, err = s.GetDocument(ctx, "turnstile")
	require.NoError(t, err)
	assert.Equal(t, "states: [{id: unlocked}]", string(src))

	names, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"door", "turnstile"}, names)

	require.NoError(t, s.RemDocument(ctx, "door"))
	_, err = s.GetDocument(ctx, "door")
	assert.ErrorIs(t, err, store.NotFound)

	_, err = s.GetSession(ctx, "s1")
	require.ErrorIs(t, err, store.NotFound)

	then := time.Date(2019, 3, 14, 15, 9, 26, 0, time.UTC)
	r := &store.SessionRecord{
		Id:         "s1",
		Name:       "turnstile",
		Parent:     "s0",
		InvokeId:   "a.1",
		Final:      []string{"a", "done"},
		Terminated: then,
	}
	require.NoError(t, s.WriteSession(ctx, r))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "turnstile", got.Name)
	assert.Equal(t, "s0", got.Parent)
	assert.Equal(t, "a.1", got.InvokeId)
	assert.Equal(t, []string{"a", "done"}, got.Final)
	assert.True(t, then.Equal(got.Terminated), "%v", got.Terminated)
}
