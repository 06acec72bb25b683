package mailbox

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/ircterm/internal/testutil/testlog"
)

func TestQueuePreservesOrderWithoutReader(t *testing.T) {
	testlog.Start(t)
	q := New[int]()
	for i := 0; i < 1000; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	q.Close()

	want := 0
	for v := range q.Out() {
		if v != want {
			t.Fatalf("out of order: got=%d want=%d", v, want)
		}
		want++
	}
	if want != 1000 {
		t.Fatalf("drained %d items, want 1000", want)
	}
}

func TestQueueRejectsPushAfterClose(t *testing.T) {
	testlog.Start(t)
	q := New[string]()
	q.Close()
	q.Close()
	if err := q.Push("late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if !q.Closed() {
		t.Fatalf("expected closed queue")
	}
}

func TestQueueMultipleProducersKeepPerProducerOrder(t *testing.T) {
	testlog.Start(t)
	q := New[[2]int]()
	const producers, per = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				_ = q.Push([2]int{p, i})
			}
		}(p)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	total := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-q.Out():
			if !ok {
				if total != producers*per {
					t.Fatalf("received %d items, want %d", total, producers*per)
				}
				return
			}
			if v[1] != last[v[0]]+1 {
				t.Fatalf("producer %d out of order: got=%d after %d", v[0], v[1], last[v[0]])
			}
			last[v[0]] = v[1]
			total++
		case <-timeout:
			t.Fatalf("timed out after %d items", total)
		}
	}
}

func TestQueueDiscardClosesOut(t *testing.T) {
	testlog.Start(t)
	q := New[int]()
	_ = q.Push(1)
	_ = q.Push(2)
	q.Discard()
	select {
	case _, ok := <-q.Out():
		if ok {
			// the pump may have already staged the first item; the channel must still close
			if _, ok := <-q.Out(); ok {
				t.Fatalf("expected out to close after discard")
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("out not closed after discard")
	}
}
