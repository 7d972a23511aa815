package sio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/crew"
	_ "github.com/Comcast/scxml/interpreters/ecmascript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routed struct {
	sid string
	ev  *core.Event
}

// router remembers what it's asked to deliver.
type router struct {
	sync.Mutex
	got []routed
	err error
}

func (r *router) Send(sid string, ev *core.Event) error {
	r.Lock()
	defer r.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, routed{sid, ev})
	return nil
}

func (r *router) Get() []routed {
	r.Lock()
	defer r.Unlock()
	return append([]routed(nil), r.got...)
}

// spawn starts a session with the given processors.
func spawn(t *testing.T, c *crew.Crew, id, src string, data map[string]interface{}) *core.Session {
	s, err := c.Spawn(context.Background(), id, &crew.Source{Source: src}, data)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func newCrew(ps ...core.IOProcessor) *crew.Crew {
	c := crew.NewCrew("sio", nil)
	c.Options.IOProcessors = ps
	return c
}

func inState(s *core.Session, id string) func() bool {
	return func() bool {
		for _, x := range s.Configuration() {
			if x == id {
				return true
			}
		}
		return false
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"name":"coin","data":{"amount":25}}`), "")
	require.NoError(t, err)
	assert.Equal(t, "coin", ev.Name)
	assert.Equal(t, core.ExternalEvent, ev.Type)
	assert.Equal(t, float64(25), ev.Data.(map[string]interface{})["amount"])

	ev, err = DecodeEvent([]byte(`{"amount":25}`), "message")
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, map[string]interface{}{"amount": float64(25)}, ev.Data)

	ev, err = DecodeEvent([]byte(`tacos`), "message")
	require.NoError(t, err)
	assert.Equal(t, "tacos", ev.Data)

	_, err = DecodeEvent([]byte(`{"amount":25}`), "")
	assert.Error(t, err)
}

func TestDeliverNoRouter(t *testing.T) {
	assert.ErrorIs(t, deliver(nil, "s1", core.NewEvent("e", nil)), NoRouter)
	r := &router{err: errors.New("nope")}
	assert.Error(t, deliver(r, "s1", core.NewEvent("e", nil)))
}

func TestBrief(t *testing.T) {
	assert.Equal(t, `{"likes":"tacos"}`, brief(map[string]interface{}{"likes": "tacos"}, 70))
	long := brief(map[string]interface{}{"likes": strings.Repeat("tacos ", 20)}, 70)
	assert.Len(t, long, 73)
	assert.Equal(t, "null", brief(nil, 70))
}

func TestExpand(t *testing.T) {
	ctx := context.Background()

	line, err := expand(ctx, `{"name":"<<echo coin>>","data":<<echo 4>>}`)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"coin","data":4}`, line)

	line, err = expand(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", line)

	_, err = expand(ctx, "<<exit 3>>")
	assert.Error(t, err)
}

func TestStdioRead(t *testing.T) {
	r := &router{}
	s := NewStdio(true)
	s.In = strings.NewReader("# comment\n<<echo coin>>\n{\"name\":\"push\"}\nbad event\nquit\nlost\n")
	var out strings.Builder
	s.Out = &out

	require.NoError(t, s.Read(context.Background(), r, "s1"))
	got := r.Get()
	require.Len(t, got, 2)
	assert.Equal(t, "coin", got[0].ev.Name)
	assert.Equal(t, "push", got[1].ev.Name)
	assert.Equal(t, "s1", got[0].sid)
	assert.Contains(t, out.String(), "bad input")
}
