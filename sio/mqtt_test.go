package sio

import (
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 1 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 1 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}

type token struct {
	err error
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Error() error                   { return t.err }
func (t *token) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type publisher struct {
	sync.Mutex
	got []published
	err error
}

func (p *publisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.Lock()
	defer p.Unlock()
	p.got = append(p.got, published{topic, qos, payload.([]byte)})
	return &token{err: p.err}
}

func (p *publisher) Get() []published {
	p.Lock()
	defer p.Unlock()
	return append([]published(nil), p.got...)
}

func TestParseTopic(t *testing.T) {
	for s, want := range map[string]struct {
		topic string
		qos   byte
	}{
		"a/b":     {"a/b", 0},
		"a/b:1":   {"a/b", 1},
		"a/b:2":   {"a/b", 2},
		"a/b:9":   {"a/b:9", 0},
		"a:b/c":   {"a:b/c", 0},
		"":        {"", 0},
		"tcp:0":   {"tcp", 0},
		"x/y/z:1": {"x/y/z", 1},
	} {
		topic, qos := ParseTopic(s)
		assert.Equal(t, want.topic, topic, s)
		assert.Equal(t, want.qos, qos, s)
	}
}

func TestMQTTHandle(t *testing.T) {
	r := &router{}
	p := &MQTTProcessor{
		Router:       r,
		Prefix:       "rooms/",
		DefaultEvent: "message",
	}
	assert.Equal(t, "rooms/s1", p.Location("s1"))

	p.Handle(nil, &message{"rooms/s1", []byte(`{"name":"coin"}`)})
	p.Handle(nil, &message{"rooms/s2", []byte(`42`)})
	p.Handle(nil, &message{"elsewhere/s1", []byte(`{"name":"lost"}`)})
	p.Handle(nil, &message{"rooms/s1/deeper", []byte(`{"name":"lost"}`)})

	got := r.Get()
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].sid)
	assert.Equal(t, "coin", got[0].ev.Name)
	assert.Equal(t, "rooms/s1", got[0].ev.Origin)
	assert.Equal(t, MQTTProcessorType, got[0].ev.OriginType)
	assert.Equal(t, "s2", got[1].sid)
	assert.Equal(t, "message", got[1].ev.Name)
	assert.Equal(t, float64(42), got[1].ev.Data)
}

const publishing = `
name: publishing
states:
  - id: a
    onentry:
      - send:
          event: hi
          type: mqtt
          target: "out/x:1"
          params:
            - name: n
              expr: "1"
    transitions:
      - event: error.communication
        target: failed
  - id: failed
`

func TestMQTTSend(t *testing.T) {
	pub := &publisher{}
	p := &MQTTProcessor{Client: pub}
	c := newCrew(p)

	spawn(t, c, "m1", publishing, nil)

	assert.Eventually(t, func() bool {
		return len(pub.Get()) == 1
	}, 5*time.Second, 2*time.Millisecond)

	got := pub.Get()[0]
	assert.Equal(t, "out/x", got.topic)
	assert.Equal(t, byte(1), got.qos)

	ev, err := DecodeEvent(got.payload, "")
	require.NoError(t, err)
	assert.Equal(t, "hi", ev.Name)
	assert.Equal(t, "scxml/m1", ev.Origin)
	assert.Equal(t, MQTTProcessorType, ev.OriginType)
	assert.Equal(t, float64(1), ev.Data.(map[string]interface{})["n"])
}

func TestMQTTSendFails(t *testing.T) {
	pub := &publisher{err: errors.New("broker gone")}
	c := newCrew(&MQTTProcessor{Client: pub})

	s := spawn(t, c, "m2", publishing, nil)
	assert.Eventually(t, inState(s, "failed"), 5*time.Second, 2*time.Millisecond)
}
