package core_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/Comcast/scxml/core"
	_ "github.com/Comcast/scxml/interpreters/ecmascript"
)

// start runs the document and returns the session and its trace.
func start(t *testing.T, doc *Document, opts *Options) (*Session, *Trace) {
	def, err := doc.Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if opts == nil {
		opts = &Options{}
	}
	trace := NewTrace()
	if opts.Monitor == nil {
		opts.Monitor = trace
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	s := NewSession(def, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return s, trace
}

func send(t *testing.T, s *Session, names ...string) {
	for _, name := range names {
		if err := s.Send(NewEvent(name, nil)); err != nil {
			t.Fatal(err)
		}
	}
}

func wait(t *testing.T, s *Session) []string {
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session didn't terminate: %v", s.Configuration())
	}
	return s.FinalConfiguration()
}

func eventually(t *testing.T, what string, f func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for " + what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func same(t *testing.T, got, want []string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got\n  %s\nwant\n  %s", strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

func to(event string, targets ...string) *Transition {
	return &Transition{Event: event, Targets: targets}
}

func do(as ...Action) [][]Action {
	return [][]Action{as}
}

func TestTurnstile(t *testing.T) {
	doc := TurnstileDocument()
	doc.States[2].OnExit = do(&Log{Label: "coins", Expr: "coins"})

	s, trace := start(t, doc, nil)
	send(t, s, "coin", "push", "coin", "coin", "halt")

	same(t, wait(t, s), []string{"halted"})
	same(t, trace.Filter("enter "), []string{
		"enter locked",
		"enter unlocked",
		"enter locked",
		"enter unlocked",
		"enter unlocked",
		"enter halted",
	})
	same(t, trace.Filter("log "), []string{"log coins 3"})
	same(t, trace.Filter("done"), []string{"done halted"})

	if err := s.Send(NewEvent("coin", nil)); !errors.Is(err, ErrTerminated) {
		t.Fatal(err)
	}
}

func TestStop(t *testing.T) {
	s, trace := start(t, TurnstileDocument(), nil)
	if !s.Running() {
		t.Fatal("not running")
	}
	s.Stop()
	same(t, wait(t, s), []string{"locked"})
	if s.Running() {
		t.Fatal("still running")
	}
	same(t, trace.Filter("exit "), []string{"exit locked"})
	if s.Err() != nil {
		t.Fatal(s.Err())
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatal(err)
	}
}

func TestUnknownDatamodel(t *testing.T) {
	def, err := (&Document{Datamodel: "cobol", States: []*State{{Id: "a"}}}).Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession(def, &Options{Registry: NewRegistry()})
	if err := s.Start(context.Background()); !errors.Is(err, ErrUnknownDatamodel) {
		t.Fatal(err)
	}
	if !errors.Is(s.Err(), ErrUnknownDatamodel) {
		t.Fatal(s.Err())
	}
	if s.Running() {
		t.Fatal("running")
	}
}

func parallelDocument() *Document {
	return &Document{
		Name: "parallel",
		States: []*State{
			{
				Id:       "P",
				Parallel: true,
				States: []*State{
					{Id: "A", States: []*State{
						{Id: "A1", Transitions: []*Transition{to("e", "Af")}},
						{Id: "Af", Final: true},
					}},
					{Id: "B", States: []*State{
						{Id: "B1", Transitions: []*Transition{to("f", "Bf")}},
						{Id: "Bf", Final: true},
					}},
				},
				Transitions: []*Transition{to("done.state.P", "End")},
			},
			{Id: "End", Final: true},
		},
	}
}

func TestParallelDone(t *testing.T) {
	s, trace := start(t, parallelDocument(), nil)
	send(t, s, "e", "f")

	same(t, wait(t, s), []string{"End"})
	same(t, trace.Filter("enter "), []string{
		"enter P",
		"enter A",
		"enter A1",
		"enter B",
		"enter B1",
		"enter Af",
		"enter Bf",
		"enter End",
	})
	same(t, trace.Filter("event done.state."), []string{
		"event done.state.A",
		"event done.state.B",
		"event done.state.P",
	})
	// Exits happen in reverse document order.
	same(t, trace.Filter("exit "), []string{
		"exit A1",
		"exit B1",
		"exit Bf",
		"exit B",
		"exit Af",
		"exit A",
		"exit P",
		"exit End",
	})
}

func TestDeterminism(t *testing.T) {
	var first []string
	for i := 0; i < 5; i++ {
		s, trace := start(t, parallelDocument(), nil)
		send(t, s, "f", "x", "e")
		wait(t, s)
		lines := trace.Get()
		if first == nil {
			first = lines
			continue
		}
		same(t, lines, first)
	}
}

func regionsDocument() *Document {
	return &Document{
		States: []*State{
			{
				Id:       "P",
				Parallel: true,
				States: []*State{
					{Id: "A", States: []*State{
						{Id: "A1", Transitions: []*Transition{to("go", "A2"), to("bail", "Out")}},
						{Id: "A2"},
					}},
					{Id: "B", States: []*State{
						{Id: "B1", Transitions: []*Transition{to("go", "B2"), to("bail", "B2")}},
						{Id: "B2"},
					}},
				},
			},
			{Id: "Out", Transitions: []*Transition{to("stop", "F")}},
			{Id: "F", Final: true},
		},
	}
}

func TestNonConflicting(t *testing.T) {
	s, _ := start(t, regionsDocument(), nil)
	send(t, s, "go")
	eventually(t, "A2 and B2", func() bool {
		return reflect.DeepEqual(s.Configuration(), []string{"P", "A", "A2", "B", "B2"})
	})
	s.Stop()
	wait(t, s)
}

func TestConflictPreemption(t *testing.T) {
	s, trace := start(t, regionsDocument(), nil)
	send(t, s, "bail", "stop")

	same(t, wait(t, s), []string{"F"})
	for _, line := range trace.Get() {
		if line == "enter B2" {
			t.Fatal("preempted transition was taken")
		}
	}
	same(t, trace.Filter("transition "), []string{
		"transition A1 -> Out",
		"transition Out -> F",
	})
}

func TestBubbling(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "P",
				States: []*State{
					{
						Id: "C",
						States: []*State{
							{Id: "Leaf", Transitions: []*Transition{to("a", "Leaf2")}},
							{Id: "Leaf2"},
						},
						Transitions: []*Transition{to("a", "Bad"), to("b", "Mid")},
					},
					{Id: "Mid"},
				},
				Transitions: []*Transition{to("a", "Bad"), to("b", "Bad"), to("c", "Done")},
			},
			{Id: "Done", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, trace := start(t, doc, nil)
	send(t, s, "a", "b", "c")
	same(t, wait(t, s), []string{"Done"})
	same(t, trace.Filter("transition "), []string{
		"transition Leaf -> Leaf2",
		"transition C -> Mid",
		"transition P -> Done",
	})
}

func TestEventlessFirst(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id:      "A",
				OnEntry: do(&Raise{Event: "e"}),
				Transitions: []*Transition{
					to("e", "C"),
					{Targets: []string{"B"}},
				},
			},
			{Id: "B", Transitions: []*Transition{to("e", "D")}},
			{Id: "C", Final: true},
			{Id: "D", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"D"})
}

func TestDescriptors(t *testing.T) {
	doc := &Document{
		States: []*State{
			{Id: "A", Transitions: []*Transition{to("error", "Bad"), to("ev.*", "B")}},
			{Id: "B", Transitions: []*Transition{to("done evx", "Bad"), to("*", "C")}},
			{Id: "C", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	send(t, s, "evx", "ev.x.y", "whatever")
	same(t, wait(t, s), []string{"C"})
}

func TestEarlyVsLateBinding(t *testing.T) {
	doc := func(binding Binding) *Document {
		return &Document{
			Binding: binding,
			Data:    []*Data{{Id: "a", Expr: "1"}},
			States: []*State{
				{
					Id:          "S0",
					OnEntry:     do(&Log{Label: "b", Expr: "typeof b"}),
					Transitions: []*Transition{{Targets: []string{"S1"}}},
				},
				{
					Id:          "S1",
					Data:        []*Data{{Id: "b", Expr: "a + 1"}},
					OnEntry:     do(&Log{Label: "b", Expr: "b"}),
					Transitions: []*Transition{{Targets: []string{"F"}}},
				},
				{Id: "F", Final: true},
			},
		}
	}

	s, trace := start(t, doc(EarlyBinding), nil)
	wait(t, s)
	same(t, trace.Filter("log "), []string{"log b number", "log b 2"})

	s, trace = start(t, doc(LateBinding), nil)
	wait(t, s)
	same(t, trace.Filter("log "), []string{"log b undefined", "log b 2"})
}

func TestOptionsData(t *testing.T) {
	doc := &Document{
		Data: []*Data{{Id: "x", Expr: "1"}},
		States: []*State{
			{Id: "A", OnEntry: do(&Log{Label: "x", Expr: "x"}), Transitions: []*Transition{{Targets: []string{"F"}}}},
			{Id: "F", Final: true},
		},
	}
	s, trace := start(t, doc, &Options{Data: map[string]interface{}{"x": "override"}})
	wait(t, s)
	same(t, trace.Filter("log "), []string{"log x override"})
}

func TestHistory(t *testing.T) {
	doc := func(typ HistoryType) *Document {
		return &Document{
			States: []*State{
				{
					Id: "S",
					States: []*State{
						{Id: "H", History: typ},
						{Id: "S1", States: []*State{
							{Id: "S11", Transitions: []*Transition{to("next", "S12")}},
							{Id: "S12"},
						}},
						{Id: "S2"},
					},
					Transitions: []*Transition{to("out", "O")},
				},
				{Id: "O", Transitions: []*Transition{to("back", "H"), to("quit", "F")}},
				{Id: "F", Final: true},
			},
		}
	}

	s, trace := start(t, doc(DeepHistory), nil)
	send(t, s, "next", "out", "back", "out", "back", "out", "quit")
	wait(t, s)
	same(t, trace.Filter("enter "), []string{
		"enter S", "enter S1", "enter S11",
		"enter S12",
		"enter O",
		"enter S", "enter S1", "enter S12",
		"enter O",
		"enter S", "enter S1", "enter S12",
		"enter O",
		"enter F",
	})

	s, trace = start(t, doc(ShallowHistory), nil)
	send(t, s, "next", "out", "back", "out", "quit")
	wait(t, s)
	same(t, trace.Filter("enter "), []string{
		"enter S", "enter S1", "enter S11",
		"enter S12",
		"enter O",
		"enter S", "enter S1", "enter S11",
		"enter O",
		"enter F",
	})
}

func TestHistoryDefault(t *testing.T) {
	doc := &Document{
		Initial: []string{"O"},
		States: []*State{
			{
				Id: "S",
				States: []*State{
					{Id: "H", History: ShallowHistory, Transitions: []*Transition{{
						Targets: []string{"S2"},
						Actions: []Action{&Log{Label: "default", Expr: "'history'"}},
					}}},
					{Id: "S1"},
					{Id: "S2", Transitions: []*Transition{to("quit", "F")}},
				},
			},
			{Id: "O", Transitions: []*Transition{to("back", "H")}},
			{Id: "F", Final: true},
		},
	}
	s, trace := start(t, doc, nil)
	send(t, s, "back", "quit")
	wait(t, s)
	same(t, trace.Filter("enter "), []string{"enter O", "enter S", "enter S2", "enter F"})
	same(t, trace.Filter("log "), []string{"log default history"})
}

func TestErrorExecution(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&Assign{Location: "nope", Expr: "1"},
					&Raise{Event: "after"},
				),
				Transitions: []*Transition{to("after", "Bad"), to("error.execution", "B")},
			},
			{Id: "B", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"B"})
}

func TestCommunicationErrorContinues(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&Send{Event: "lost", Target: "#_scxml_nosuchsession"},
					&Raise{Event: "next"},
				),
				Transitions: []*Transition{to("error.communication", "B")},
			},
			{Id: "B", Transitions: []*Transition{to("next", "C")}},
			{Id: "C", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"C"})
}

func TestBadTarget(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&Send{Event: "lost", Target: "bogus", Id: "s1"},
					&Raise{Event: "after"},
				),
				Transitions: []*Transition{
					to("after", "Bad"),
					{Event: "error.execution", Cond: "_event.sendid == 's1'", Targets: []string{"B"}},
				},
			},
			{Id: "B", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"B"})
}

func TestSendInternalAndSelf(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&Send{Event: "external"},
					&Send{Event: "internal", Target: TargetInternal},
				),
				Transitions: []*Transition{
					{Event: "internal", Cond: "_event.type == 'internal'", Targets: []string{"B"}},
				},
			},
			{
				Id: "B",
				Transitions: []*Transition{
					{Event: "external", Cond: "_event.type == 'external' && _event.origintype == 'http://www.w3.org/TR/scxml/#SCXMLEventProcessor'", Targets: []string{"C"}},
				},
			},
			{Id: "C", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"C"})
}

func TestDelayedSendCancelled(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&Send{Event: "late", Delay: "10ms", Id: "s1"},
					&Cancel{SendId: "s1"},
					&Send{Event: "ontime", Delay: "50ms"},
				),
				Transitions: []*Transition{to("late", "Bad"), to("ontime", "Good")},
			},
			{Id: "Good", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"Good"})
}

func TestCancelAfterFire(t *testing.T) {
	doc := &Document{
		Data: []*Data{{Id: "tid"}},
		States: []*State{
			{
				Id:      "A",
				OnEntry: do(&Send{Event: "tick", Delay: "1ms", IdLocation: "tid"}),
				Transitions: []*Transition{
					{Event: "tick", Cond: "_event.sendid == tid", Targets: []string{"B"}},
				},
			},
			{
				Id: "B",
				OnEntry: do(
					&Cancel{SendIdExpr: "tid"},
					&Send{Event: "fin"},
				),
				Transitions: []*Transition{to("error", "Bad"), to("fin", "Good")},
			},
			{Id: "Good", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"Good"})
}

func TestDelayedInternalRejected(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id:          "A",
				OnEntry:     do(&Send{Event: "x", Target: TargetInternal, Delay: "1ms"}),
				Transitions: []*Transition{to("x", "Bad"), to("error.execution", "Good")},
			},
			{Id: "Good", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"Good"})
}

func TestExecutableContent(t *testing.T) {
	doc := &Document{
		Data: []*Data{
			{Id: "xs", Expr: "[1, 2, 3, 4]"},
			{Id: "evens", Expr: "0"},
			{Id: "odds", Expr: "0"},
		},
		States: []*State{
			{
				Id: "A",
				OnEntry: do(
					&ForEach{Array: "xs", Item: "x", Actions: []Action{
						&If{
							Cond: "x % 2 == 0",
							Then: []Action{&Assign{Location: "evens", Expr: "evens + 1"}},
							Else: []Action{&Assign{Location: "odds", Expr: "odds + 1"}},
						},
					}},
					&If{
						Cond: "evens == 0",
						Then: []Action{&Raise{Event: "wrong"}},
						ElseIfs: []*ElseIf{
							{Cond: "evens == 2 && odds == 2", Actions: []Action{&Raise{Event: "right"}}},
						},
						Else: []Action{&Raise{Event: "wrong"}},
					},
					&Script{Src: "var scripted = evens * 10;"},
					&Log{Label: "scripted", Expr: "scripted"},
				),
				Transitions: []*Transition{to("right", "Good"), to("wrong", "Bad")},
			},
			{Id: "Good", Final: true},
			{Id: "Bad", Final: true},
		},
	}
	s, trace := start(t, doc, nil)
	same(t, wait(t, s), []string{"Good"})
	same(t, trace.Filter("log "), []string{"log scripted 20"})
}

func TestLogNullStopsBlock(t *testing.T) {
	doc := func(l *Log) *Document {
		return &Document{
			States: []*State{
				{
					Id:          "S0",
					OnEntry:     do(l, &Raise{Event: "after"}),
					Transitions: []*Transition{to("after", "Continued"), to("*", "Stopped")},
				},
				{Id: "Continued", Final: true},
				{Id: "Stopped", Final: true},
			},
		}
	}

	s, trace := start(t, doc(&Log{Label: "nothing", Expr: "null"}), nil)
	send(t, s, "tick")
	same(t, wait(t, s), []string{"Stopped"})
	if lines := trace.Filter("log "); len(lines) != 0 {
		t.Fatal(lines)
	}

	s, trace = start(t, doc(&Log{Label: "just a label"}), nil)
	same(t, wait(t, s), []string{"Continued"})
	same(t, trace.Filter("log "), []string{"log just a label <nil>"})
}

func TestFirstMatchingTransitionOnly(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "s0",
				Transitions: []*Transition{
					{Event: "ev", Cond: "true", Targets: []string{"s1"}, Actions: []Action{&Log{Label: "taken", Expr: "'first'"}}},
					{Event: "*", Targets: []string{"s1"}, Actions: []Action{&Log{Label: "taken", Expr: "'second'"}}},
				},
			},
			{Id: "s1", Final: true},
		},
	}
	s, trace := start(t, doc, nil)
	send(t, s, "ev")
	same(t, wait(t, s), []string{"s1"})
	same(t, trace.Filter("log "), []string{"log taken first"})
}

func TestInvoke(t *testing.T) {
	child := &Document{
		Name: "child",
		Data: []*Data{{Id: "x"}},
		States: []*State{
			{
				Id: "C1",
				Transitions: []*Transition{
					{
						Event:   "ping",
						Actions: []Action{&Send{Event: "pong", Target: TargetParent}},
					},
					to("finish", "CF"),
				},
			},
			{
				Id:    "CF",
				Final: true,
				DoneData: &DoneData{
					Params: []*Param{{Name: "x", Expr: "x"}},
				},
			},
		},
	}

	doc := &Document{
		Name: "parent",
		States: []*State{
			{
				Id: "P",
				Invokes: []*Invoke{{
					Id:          "kid",
					AutoForward: true,
					Params:      []*Param{{Name: "x", Expr: "40 + 2"}},
					Content:     &Content{Document: child},
					Finalize:    []Action{&Log{Label: "finalize", Expr: "_event.name"}},
				}},
				States: []*State{
					{Id: "P1", Transitions: []*Transition{{
						Event:   "pong",
						Cond:    "_event.invokeid == 'kid'",
						Targets: []string{"P2"},
					}}},
					{Id: "P2", Transitions: []*Transition{{
						Event:   "done.invoke.kid",
						Cond:    "_event.data.x == 42",
						Targets: []string{"End"},
					}}},
				},
			},
			{Id: "End", Final: true},
		},
	}

	s, trace := start(t, doc, nil)
	send(t, s, "ping", "finish")
	same(t, wait(t, s), []string{"End"})

	same(t, trace.Filter("log finalize"), []string{
		"log finalize pong",
		"log finalize done.invoke.kid",
	})
	// The child's termination and the parent's race.
	done := trace.Filter("done")
	if len(done) != 2 {
		t.Fatal(done)
	}
	for _, line := range []string{"done CF", "done End"} {
		if done[0] != line && done[1] != line {
			t.Fatal(done)
		}
	}
}

func TestInvokeCancelledOnExit(t *testing.T) {
	child := &Document{
		States: []*State{
			{Id: "C1", OnExit: do(&Log{Label: "child", Expr: "'exiting'"})},
		},
	}
	doc := &Document{
		States: []*State{
			{
				Id: "P",
				Invokes: []*Invoke{{
					IdLocation: "kid",
					Content:    &Content{Document: child},
				}},
				Transitions: []*Transition{to("leave", "Q")},
			},
			{Id: "Q", Transitions: []*Transition{to("stop", "F")}},
			{Id: "F", Final: true},
		},
		Data: []*Data{{Id: "kid"}},
	}

	s, trace := start(t, doc, nil)
	eventually(t, "child", func() bool {
		return len(trace.Filter("enter C1")) == 1
	})
	send(t, s, "leave")
	eventually(t, "child exit", func() bool {
		return len(trace.Filter("done C1")) == 1
	})
	same(t, trace.Filter("log child"), []string{"log child exiting"})
	send(t, s, "stop")
	same(t, wait(t, s), []string{"F"})
}

func TestGeneratedInvokeId(t *testing.T) {
	child := &Document{
		States: []*State{
			{Id: "C1", OnEntry: do(&Send{Event: "hi", Target: TargetParent})},
		},
	}
	doc := &Document{
		States: []*State{
			{
				Id: "P",
				States: []*State{{
					Id:      "P1",
					Invokes: []*Invoke{{Content: &Content{Document: child}}},
					Transitions: []*Transition{{
						Event:   "hi",
						Targets: []string{"F"},
						Actions: []Action{&Log{Label: "from", Expr: "_event.invokeid"}},
					}},
				}},
			},
			{Id: "F", Final: true},
		},
	}
	s, trace := start(t, doc, nil)
	same(t, wait(t, s), []string{"F"})
	same(t, trace.Filter("log from"), []string{"log from P.P1.1"})
}

func TestSendToChild(t *testing.T) {
	child := &Document{
		States: []*State{
			{Id: "C1", Transitions: []*Transition{{
				Event:   "hello",
				Actions: []Action{&Send{Event: "hi", Target: TargetParent}},
			}}},
		},
	}
	doc := &Document{
		States: []*State{
			{
				Id: "P",
				Invokes: []*Invoke{{
					Id:      "kid",
					Content: &Content{Document: child},
				}},
				OnEntry:     do(&Send{Event: "hello", Target: "#_kid", Delay: "50ms"}),
				Transitions: []*Transition{to("hi", "F")},
			},
			{Id: "F", Final: true},
		},
	}
	s, _ := start(t, doc, nil)
	same(t, wait(t, s), []string{"F"})
}

// checker is a Monitor that checks that the configuration is legal
// whenever the session starts processing an event.
type checker struct {
	*Trace
	sync.Mutex
	problems []string
}

func (c *checker) Event(s *Session, ev *Event) {
	c.Trace.Event(s, ev)
	if problem := illegal(s.Definition(), s.Configuration()); problem != "" {
		c.Lock()
		c.problems = append(c.problems, fmt.Sprintf("%s: %s", ev.Name, problem))
		c.Unlock()
	}
}

func illegal(def *Definition, config []string) string {
	active := make(map[int]bool)
	for _, id := range config {
		i, have := def.Lookup(id)
		if !have {
			return "unknown " + id
		}
		active[i] = true
	}
	for i := range active {
		n := def.Node(i)
		if n.Parent != Root && !active[n.Parent] {
			return n.Id + " without its parent"
		}
		if n.History != NoHistory {
			return "history state " + n.Id + " is active"
		}
		count := 0
		for _, c := range n.States {
			if active[c] {
				count++
			}
		}
		switch {
		case n.IsAtomic():
		case n.Parallel && count != len(n.States):
			return "parallel " + n.Id + " missing regions"
		case n.IsCompound() && count != 1:
			return fmt.Sprintf("compound %s has %d active children", n.Id, count)
		}
	}
	count := 0
	for _, c := range def.Node(Root).States {
		if active[c] {
			count++
		}
	}
	if count != 1 {
		return fmt.Sprintf("%d active top-level states", count)
	}
	return ""
}

func TestConfigurationsLegal(t *testing.T) {
	doc := &Document{
		States: []*State{
			{
				Id: "S",
				States: []*State{
					{Id: "H", History: DeepHistory},
					{
						Id:       "P",
						Parallel: true,
						States: []*State{
							{Id: "A", States: []*State{
								{Id: "A1", Transitions: []*Transition{to("a", "A2")}},
								{Id: "A2", Transitions: []*Transition{to("a", "A1"), to("c", "Q")}},
							}},
							{Id: "B", States: []*State{
								{Id: "B1", Transitions: []*Transition{to("b", "B2")}},
								{Id: "B2", Transitions: []*Transition{to("b", "B1"), to("c", "P")}},
							}},
						},
					},
					{Id: "Q", Transitions: []*Transition{to("q", "P")}},
				},
				Transitions: []*Transition{to("out", "O")},
			},
			{Id: "O", Transitions: []*Transition{to("h", "H"), to("q", "S")}},
			{Id: "F", Final: true},
		},
	}
	doc.States[0].Transitions = append(doc.States[0].Transitions, to("stop", "F"))
	doc.States[1].Transitions = append(doc.States[1].Transitions, to("stop", "F"))

	c := &checker{Trace: NewTrace()}
	s, _ := start(t, doc, &Options{Monitor: c})

	r := rand.New(rand.NewSource(42))
	names := []string{"a", "b", "c", "q", "h", "out", "x"}
	for i := 0; i < 300; i++ {
		send(t, s, names[r.Intn(len(names))])
	}
	send(t, s, "stop")
	same(t, wait(t, s), []string{"F"})

	c.Lock()
	defer c.Unlock()
	if 0 < len(c.problems) {
		t.Fatal(strings.Join(c.problems, "\n"))
	}
}
