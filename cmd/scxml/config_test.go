package main

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/scxml/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
version: "1"
dir: docs
datamodel: ecmascript
maxTimers: 100
store:
  backend: bolt
  file: /tmp/scxml.db
http:
  listen: ":8080"
  timeout: 2s
`))
	require.NoError(t, err)
	assert.Equal(t, "docs", c.Dir)
	assert.Equal(t, 100, c.MaxTimers)
	assert.Equal(t, "bolt", c.Store.Backend)
	require.NotNil(t, c.HTTP)
	assert.Equal(t, ":8080", c.HTTP.Listen)
	assert.Nil(t, c.MQTT)
}

func TestConfigCheck(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		err  error
	}{
		{"empty", ``, nil},
		{"version", `version: "2"`, BadConfigVersion},
		{"backend", `store: {backend: redis}`, nil},
		{"bolt", `store: {backend: bolt}`, nil},
		{"datamodel", `datamodel: xpath`, core.ErrUnknownDatamodel},
		{"mqtt", `mqtt: {prefix: scxml}`, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml))
			if tc.name == "empty" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "%v", err)
			}
		})
	}
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	c := &Config{}
	s, err := c.OpenStorage(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.PutDocument(ctx, "x", []byte("name: x")))
	names, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)
}
