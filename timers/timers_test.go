package timers

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"
)

func start(t *testing.T, max int) (*Timers, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := NewTimers(max)
	go func() {
		ts.Run(ctx)
	}()
	if !ts.Wait(time.Second) {
		cancel()
		t.Fatal("timers didn't start running")
	}
	return ts, cancel
}

func TestTimersBasic(t *testing.T) {
	ts, cancel := start(t, 10)
	defer cancel()

	var (
		lock  sync.Mutex
		heard []string
	)
	f := func(_ context.Context, t *Timer) {
		lock.Lock()
		heard = append(heard, t.Id)
		lock.Unlock()
	}

	ft := func(id string, d time.Duration) {
		if err := ts.Add(&Timer{Id: id, At: time.Now().Add(d), F: f}); err != nil {
			t.Fatal(err)
		}
	}

	ft("3", 300*time.Millisecond)
	ft("2", 150*time.Millisecond)
	ft("1", 30*time.Millisecond)
	if err := ts.Rem("2"); err != nil {
		t.Fatal(err)
	}
	ft("5", 450*time.Millisecond)
	ft("4", 360*time.Millisecond)
	if err := ts.Rem("5"); err != nil {
		t.Fatal(err)
	}
	ft("6", 600*time.Millisecond)

	time.Sleep(time.Second)

	want := []string{"1", "3", "4", "6"}
	lock.Lock()
	defer lock.Unlock()
	if len(heard) != len(want) {
		t.Fatalf("heard %v", heard)
	}
	for i, s := range heard {
		if want[i] != s {
			t.Fatalf("expected '%s' but got '%s' at %d", want[i], s, i)
		}
	}
}

func TestTimersRemOnlyPending(t *testing.T) {
	ts, cancel := start(t, 10)
	defer cancel()

	fired := make(chan string, 1)
	if err := ts.Add(&Timer{
		Id: "only",
		At: time.Now().Add(20 * time.Millisecond),
		F: func(_ context.Context, t *Timer) {
			fired <- t.Id
		},
	}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem("only"); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-fired:
		t.Fatalf("removed timer %s fired", id)
	case <-time.After(100 * time.Millisecond):
	}

	if err := ts.Rem("only"); err != NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestTimersLimits(t *testing.T) {
	ts, cancel := start(t, 2)
	defer cancel()

	at := time.Now().Add(time.Hour)
	f := func(context.Context, *Timer) {}

	if err := ts.Add(&Timer{Id: "a", At: at, F: f}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(&Timer{Id: "a", At: at, F: f}); err != IdExists {
		t.Fatalf("expected IdExists, got %v", err)
	}
	if err := ts.Add(&Timer{Id: "b", At: at, F: f}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(&Timer{Id: "c", At: at, F: f}); err != TooMany {
		t.Fatalf("expected TooMany, got %v", err)
	}
	if ps := ts.Pending(); len(ps) != 2 || ps[0] != "a" || ps[1] != "b" {
		t.Fatalf("pending %v", ps)
	}
}

func TestTimersNotRunning(t *testing.T) {
	ts := NewTimers(0)
	if ts.Max != DefaultLimit {
		t.Fatal(ts.Max)
	}
	err := ts.Add(&Timer{Id: "a", At: time.Now(), F: func(context.Context, *Timer) {}})
	if err != NotRunning {
		t.Fatalf("expected NotRunning, got %v", err)
	}

	ts, cancel := start(t, 1)
	if err := ts.Run(context.Background()); err != AlreadyRunning {
		t.Fatalf("expected AlreadyRunning, got %v", err)
	}
	cancel()
	select {
	case <-ts.Done():
	case <-time.After(time.Second):
		t.Fatal("timers didn't stop")
	}
}

func TestTimersLag010(t *testing.T) {
	testTimersLag(t, 10*time.Millisecond, 50)
}

func TestTimersLag100(t *testing.T) {
	testTimersLag(t, 100*time.Millisecond, 50)
}

func testTimersLag(t *testing.T, dMax time.Duration, n int) {
	timeout := 10 * dMax * time.Duration(n)

	ts, cancel := start(t, n)
	defer cancel()

	var (
		wg         sync.WaitGroup
		totalLag   time.Duration
		totalFired int
	)

	f := func(_ context.Context, t *Timer) {
		totalLag += time.Since(t.At)
		totalFired++
		wg.Done()
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		d := time.Duration(rand.Intn(int(dMax/time.Millisecond))) * time.Millisecond
		err := ts.Add(&Timer{
			Id: strconv.Itoa(i),
			At: time.Now().Add(d),
			F:  f,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	waited := make(chan bool)
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-time.After(timeout):
		t.Fatalf("timeout; pending %v", ts.Pending())
	case <-waited:
	}

	t.Logf("dMax: %v fired: %d mean lag: %v", dMax, totalFired, totalLag/time.Duration(totalFired))
}
