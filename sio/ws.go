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

package sio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/scxml/core"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebSocketProcessorType is the <send> type for WebSockets.
const WebSocketProcessorType = "websocket"

// WebSocketProcessor is an http.Handler that accepts WebSocket
// clients.
//
// A client connects with "?session=SESSIONID&id=CLIENTID".  Frames
// from the client go to the session.  A <send> with this processor's
// type and target CLIENTID writes a frame to that client.  The client
// id defaults to the session id.
type WebSocketProcessor struct {
	Router Router

	// Base is the URL of this handler, used for Location.
	Base string

	DefaultEvent string

	// WriteTimeout bounds each write.
	WriteTimeout time.Duration

	Upgrader websocket.Upgrader

	Logger *log.Entry

	sync.RWMutex
	conns map[string]*wsConn
}

type wsConn struct {
	sync.Mutex
	conn *websocket.Conn
}

func NewWebSocketProcessor(base string, r Router) *WebSocketProcessor {
	return &WebSocketProcessor{
		Router:       r,
		Base:         base,
		WriteTimeout: 5 * time.Second,
		Logger:       log.WithField("processor", WebSocketProcessorType),
		conns:        make(map[string]*wsConn),
	}
}

func (p *WebSocketProcessor) Type() string {
	return WebSocketProcessorType
}

func (p *WebSocketProcessor) Location(sessionId string) string {
	return p.Base + "?session=" + url.QueryEscape(sessionId)
}

// Clients returns the ids of the connected clients.
func (p *WebSocketProcessor) Clients() []string {
	p.RLock()
	acc := make([]string, 0, len(p.conns))
	for id := range p.conns {
		acc = append(acc, id)
	}
	p.RUnlock()
	sort.Strings(acc)
	return acc
}

// Send writes the event to the client named by the target.
func (p *WebSocketProcessor) Send(ctx context.Context, from *core.Session, target string, ev *core.Event) error {
	if target == "" {
		return fmt.Errorf("%w: empty client id", core.ErrBadTarget)
	}
	p.RLock()
	c, have := p.conns[target]
	p.RUnlock()
	if !have {
		return fmt.Errorf("%w: no client %s", core.ErrUnreachable, target)
	}

	ev.OriginType = WebSocketProcessorType
	if ev.Origin == "" {
		ev.Origin = p.Location(from.Id())
	}
	js, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(p.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, js)
}

func (p *WebSocketProcessor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session")
	if sid == "" {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		id = sid
	}

	conn, err := p.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		p.Logger.WithError(err).Warn("upgrade failed")
		return
	}

	c := &wsConn{conn: conn}
	p.Lock()
	if old, have := p.conns[id]; have {
		old.conn.Close()
	}
	p.conns[id] = c
	p.Unlock()

	logger := p.Logger.WithFields(log.Fields{
		"client":  id,
		"session": sid,
	})
	logger.Debug("client connected")

	defer func() {
		p.Lock()
		if p.conns[id] == c {
			delete(p.conns, id)
		}
		p.Unlock()
		conn.Close()
		logger.Debug("client disconnected")
	}()

	for {
		_, bs, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(bs) == 0 {
			continue
		}
		ev, err := DecodeEvent(bs, p.DefaultEvent)
		if err != nil {
			logger.WithError(err).Warn("bad frame")
			continue
		}
		ev.Origin = id
		ev.OriginType = WebSocketProcessorType
		if err := deliver(p.Router, sid, ev); err != nil {
			logger.WithError(err).Warn("undeliverable")
			c.Lock()
			c.conn.WriteJSON(map[string]interface{}{
				"error": err.Error(),
			})
			c.Unlock()
		}
	}
}
