package sio

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/scxml/core"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const talker = `
name: talker
states:
  - id: idle
    transitions:
      - event: hello
        actions:
          - send:
              event: reply
              type: websocket
              targetexpr: _event.origin
              params:
                - name: got
                  expr: _event.data.n
`

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, bs, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(bs, &m))
	return m
}

func TestWebSocket(t *testing.T) {
	p := NewWebSocketProcessor("", nil)
	c := newCrew(p)
	p.Router = c

	srv := httptest.NewServer(p)
	defer srv.Close()
	p.Base = "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	spawn(t, c, "t1", talker, nil)
	assert.Equal(t, p.Base+"?session=t1", p.Location("t1"))

	conn := dial(t, srv, "session=t1&id=c1")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"name":"hello","data":{"n":7}}`)))

	m := read(t, conn)
	assert.Equal(t, "reply", m["name"])
	assert.Equal(t, WebSocketProcessorType, m["origintype"])
	assert.Equal(t, float64(7), m["data"].(map[string]interface{})["got"])

	assert.Equal(t, []string{"c1"}, p.Clients())

	lost := dial(t, srv, "session=nope")
	require.NoError(t, lost.WriteMessage(websocket.TextMessage, []byte(`{"name":"hello"}`)))
	m = read(t, lost)
	assert.Contains(t, m["error"], "not found")
}

func TestWebSocketSendUnknownClient(t *testing.T) {
	p := NewWebSocketProcessor("", nil)
	err := p.Send(nil, nil, "nobody", core.NewEvent("e", nil))
	assert.ErrorIs(t, err, core.ErrUnreachable)
	err = p.Send(nil, nil, "", core.NewEvent("e", nil))
	assert.ErrorIs(t, err, core.ErrBadTarget)
}

func TestWebSocketNoSession(t *testing.T) {
	p := NewWebSocketProcessor("", nil)
	srv := httptest.NewServer(p)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
