package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/crew"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// BasicHTTPProcessorType is the type of the SCXML Basic HTTP Event
// I/O Processor.
const BasicHTTPProcessorType = "http://www.w3.org/TR/scxml/#BasicHTTPEventProcessor"

// Form fields.
const (
	EventNameField = "_scxmleventname"
	ContentField   = "_scxmlcontent"
)

// HTTPProcessor is the Basic HTTP Event I/O Processor.
//
// Out-bound events are POSTed as forms to the target URL, with the
// event name in EventNameField and each data property as its own
// field.  The POST happens in the background; a failure is reported
// back to the sending session as error.communication.
//
// As an http.Handler, it accepts POSTs with "?session=SESSIONID" as
// forms (like the ones it sends) or JSON events.
type HTTPProcessor struct {
	Router Router

	// Base is the URL of this handler, used for Location.
	Base string

	// Client sends out-bound events.  NewHTTPProcessor gives it a
	// cookie jar.
	Client *http.Client

	Timeout time.Duration

	DefaultEvent string

	Logger *log.Entry
}

func NewHTTPProcessor(base string, r Router) (*HTTPProcessor, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &HTTPProcessor{
		Router: r,
		Base:   base,
		Client: &http.Client{
			Jar: jar,
		},
		Timeout: 10 * time.Second,
		Logger:  log.WithField("processor", "basichttp"),
	}, nil
}

func (p *HTTPProcessor) Type() string {
	return BasicHTTPProcessorType
}

func (p *HTTPProcessor) Location(sessionId string) string {
	return p.Base + "?session=" + url.QueryEscape(sessionId)
}

// Form renders an event as form values.
func Form(ev *core.Event) (url.Values, error) {
	form := url.Values{}
	form.Set(EventNameField, ev.Name)
	switch vv := ev.Data.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range vv {
			if s, is := v.(string); is {
				form.Set(k, s)
				continue
			}
			js, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			form.Set(k, string(js))
		}
	case string:
		form.Set(ContentField, vv)
	default:
		js, err := json.Marshal(vv)
		if err != nil {
			return nil, err
		}
		form.Set(ContentField, string(js))
	}
	return form, nil
}

func (p *HTTPProcessor) Send(ctx context.Context, from *core.Session, target string, ev *core.Event) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s", core.ErrBadTarget, target)
	}
	form, err := Form(ev)
	if err != nil {
		return err
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	go func() {
		ctx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		if err := p.post(ctx, client, target, form); err != nil {
			p.Logger.WithError(err).WithField("target", target).Warn("post failed")
			from.Send(&core.Event{
				Name:   core.ErrorCommunication,
				Type:   core.PlatformEvent,
				SendId: ev.SendId,
				Data: map[string]interface{}{
					"message": err.Error(),
				},
			})
		}
	}()

	return nil
}

func (p *HTTPProcessor) post(ctx context.Context, client *http.Client, target string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, "POST", target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return fmt.Errorf("POST %s: %s", target, resp.Status)
	}
	return nil
}

// event makes an event from an in-bound request.
func (p *HTTPProcessor) event(r *http.Request) (*core.Event, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		bs, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return DecodeEvent(bs, p.DefaultEvent)
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	name := r.PostForm.Get(EventNameField)
	if name == "" {
		name = p.DefaultEvent
	}
	if name == "" {
		return nil, errors.New("no event name")
	}
	var data interface{}
	if c := r.PostForm.Get(ContentField); c != "" {
		data = c
	} else {
		m := make(map[string]interface{}, len(r.PostForm))
		for k, vs := range r.PostForm {
			if k == EventNameField {
				continue
			}
			if len(vs) == 1 {
				m[k] = vs[0]
			} else {
				m[k] = vs
			}
		}
		if 0 < len(m) {
			data = m
		}
	}
	return core.NewEvent(name, data), nil
}

func (p *HTTPProcessor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	sid := r.URL.Query().Get("session")
	if sid == "" {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}
	ev, err := p.event(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev.Origin = r.RemoteAddr
	ev.OriginType = BasicHTTPProcessorType

	if err := deliver(p.Router, sid, ev); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, crew.NotFound), errors.Is(err, core.ErrTerminated):
			status = http.StatusNotFound
		case errors.Is(err, NoRouter):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusOK)
}
