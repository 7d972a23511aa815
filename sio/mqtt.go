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

package sio

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/Comcast/scxml/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTProcessorType is the <send> type for MQTT.
const MQTTProcessorType = "mqtt"

// Publisher is the part of an mqtt.Client that MQTTProcessor uses to
// send events.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTProcessor publishes events to MQTT topics and routes messages
// from subscribed topics to sessions.
//
// A <send> target is a topic, optionally with a QoS suffix
// ("TOPIC:QOS").  In-bound messages on "PREFIX/SESSIONID" go to the
// session SESSIONID.
type MQTTProcessor struct {
	Client Publisher

	// Router delivers in-bound events.
	Router Router

	// Prefix is the topic prefix for in-bound events.  Defaults
	// to "scxml".
	Prefix string

	// QoS is the default QoS for publishing.
	QoS byte

	// Timeout bounds the wait for a publish to complete.
	Timeout time.Duration

	// DefaultEvent names in-bound messages that aren't events.
	DefaultEvent string

	Logger *log.Entry
}

// MQTTConf has the basic knobs for connecting to a broker.
type MQTTConf struct {
	Broker    string        `yaml:"broker"`
	ClientId  string        `yaml:"clientId"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	KeepAlive time.Duration `yaml:"keepAlive"`
	Reconnect bool          `yaml:"reconnect"`
	Insecure  bool          `yaml:"insecure"`
	Prefix    string        `yaml:"prefix"`
}

// NewMQTTClient makes (but does not connect) a client.
func NewMQTTClient(conf *MQTTConf) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientId).
		SetUsername(conf.Username).
		SetPassword(conf.Password).
		SetAutoReconnect(conf.Reconnect).
		SetCleanSession(true)
	if 0 < conf.KeepAlive {
		opts.SetKeepAlive(conf.KeepAlive)
	}
	if conf.Insecure {
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}
	return mqtt.NewClient(opts)
}

func (p *MQTTProcessor) prefix() string {
	if p.Prefix == "" {
		return "scxml"
	}
	return strings.TrimSuffix(p.Prefix, "/")
}

func (p *MQTTProcessor) logger() *log.Entry {
	if p.Logger == nil {
		return log.WithField("processor", MQTTProcessorType)
	}
	return p.Logger
}

func (p *MQTTProcessor) Type() string {
	return MQTTProcessorType
}

// Location is the topic that reaches the session.
func (p *MQTTProcessor) Location(sessionId string) string {
	return p.prefix() + "/" + sessionId
}

// Send publishes the event as JSON.
func (p *MQTTProcessor) Send(ctx context.Context, from *core.Session, target string, ev *core.Event) error {
	topic, qos := ParseTopic(target)
	if topic == "" {
		return fmt.Errorf("%w: empty topic", core.ErrBadTarget)
	}
	if qos == 0 {
		qos = p.QoS
	}
	ev.OriginType = MQTTProcessorType
	if ev.Origin == "" {
		ev.Origin = p.Location(from.Id())
	}
	js, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	p.logger().WithField("topic", topic).Debugf("publishing %s", js)
	token := p.Client.Publish(topic, qos, false, js)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: publish to %s timed out", core.ErrUnreachable, topic)
	}
	return token.Error()
}

// Handle is a paho MessageHandler for in-bound messages.
func (p *MQTTProcessor) Handle(client mqtt.Client, msg mqtt.Message) {
	if err := p.handle(msg); err != nil {
		p.logger().WithError(err).WithField("topic", msg.Topic()).Warn("dropped in-bound message")
	}
}

func (p *MQTTProcessor) handle(msg mqtt.Message) error {
	pfx := p.prefix() + "/"
	topic := msg.Topic()
	if !strings.HasPrefix(topic, pfx) {
		return fmt.Errorf("unexpected topic %s", topic)
	}
	sid := topic[len(pfx):]
	if sid == "" || strings.Contains(sid, "/") {
		return fmt.Errorf("no session in topic %s", topic)
	}
	ev, err := DecodeEvent(msg.Payload(), p.DefaultEvent)
	if err != nil {
		return err
	}
	if ev.Origin == "" {
		ev.Origin = topic
	}
	ev.OriginType = MQTTProcessorType
	return deliver(p.Router, sid, ev)
}

// Subscribe subscribes the client to in-bound topics.
func (p *MQTTProcessor) Subscribe(client mqtt.Client) error {
	topic := p.prefix() + "/+"
	token := client.Subscribe(topic, 1, p.Handle)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	return token.Error()
}

// ParseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func ParseTopic(s string) (string, byte) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	var qos byte
	switch s[i+1:] {
	case "0":
	case "1":
		qos = 1
	case "2":
		qos = 2
	default:
		return s, 0
	}
	return s[:i], qos
}
