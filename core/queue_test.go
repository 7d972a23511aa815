package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]string, 0, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			ev, err := q.Take(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			got = append(got, ev.Name)
		}
	}()

	for _, name := range []string{"a", "b", "c"} {
		if !q.Put(NewEvent(name, nil)) {
			t.Fatal("put failed")
		}
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatal(got)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Put(NewEvent("pending", nil))
	q.Close()

	if q.Put(NewEvent("late", nil)) {
		t.Fatal("put after close")
	}

	ev, err := q.Take(context.Background())
	if err != nil || ev.Name != "pending" {
		t.Fatal(ev, err)
	}
	if _, err = q.Take(context.Background()); !errors.Is(err, ErrTerminated) {
		t.Fatal(err)
	}
}

func TestQueueCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Take(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal(err)
	}
	if q.Len() != 0 {
		t.Fatal(q.Len())
	}
}
