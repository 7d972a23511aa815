package null

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/scxml/core"

	log "github.com/sirupsen/logrus"
)

type host struct {
	errs []error
}

func (h *host) SessionId() string                   { return "s" }
func (h *host) Name() string                        { return "" }
func (h *host) In(id string) bool                   { return id == "here" }
func (h *host) RaiseError(name string, err error)   { h.errs = append(h.errs, err) }
func (h *host) IOProcessors() map[string]string     { return nil }
func (h *host) Actions() map[string]core.ActionFunc { return nil }
func (h *host) Context() context.Context            { return context.Background() }
func (h *host) Logger() *log.Entry                  { return log.NewEntry(log.StandardLogger()) }

func TestNull(t *testing.T) {
	h := &host{}
	dm := NewDatamodel()
	if err := dm.Init(context.Background(), h); err != nil {
		t.Fatal(err)
	}

	if !dm.Cond("In('here')") || !dm.Cond(` In("here") `) {
		t.Fatal("not here")
	}
	if dm.Cond("In('there')") {
		t.Fatal("there")
	}
	if len(h.errs) != 0 {
		t.Fatal(h.errs)
	}

	if dm.Cond("1 == 1") {
		t.Fatal("evaluated an expression")
	}
	if _, ok := dm.Eval("1"); ok {
		t.Fatal("evaluated an expression")
	}
	if dm.Assign("x", "1") {
		t.Fatal("assigned")
	}
	if !dm.DeclareValue("x", nil) {
		t.Fatal("late binding declaration failed")
	}
	if len(h.errs) != 3 {
		t.Fatal(h.errs)
	}
	for _, err := range h.errs {
		if !errors.Is(err, Unsupported) {
			t.Fatal(err)
		}
	}
}

func TestNullLogAndParams(t *testing.T) {
	h := &host{}
	dm := NewDatamodel()
	if err := dm.Init(context.Background(), h); err != nil {
		t.Fatal(err)
	}

	if _, ok := dm.Log("label", ""); !ok {
		t.Fatal("label only")
	}
	if _, ok := dm.Log("label", "x"); ok {
		t.Fatal("evaluated an expression")
	}
	if m, ok := dm.Params(nil, nil); !ok || m != nil {
		t.Fatalf("%#v", m)
	}
	if _, ok := dm.Params([]string{"x"}, nil); ok {
		t.Fatal("namelist")
	}
	if len(h.errs) != 2 {
		t.Fatal(h.errs)
	}
}
