package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgsink/pkg/event"
)

// collector is a fake EmitFunc recording every batch it receives; failFirst
// makes the first N calls fail.
type collector struct {
	mu        sync.Mutex
	batches   [][]*event.LogEvent
	calls     int
	failFirst int
}

func (c *collector) emit(_ context.Context, events []*event.LogEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFirst {
		return errors.New("transient failure")
	}
	cp := make([]*event.LogEvent, len(events))
	copy(cp, events)
	c.batches = append(c.batches, cp)
	return nil
}

func (c *collector) snapshot() [][]*event.LogEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]*event.LogEvent, len(c.batches))
	copy(out, c.batches)
	return out
}

func mkEvents(n int) []*event.LogEvent {
	out := make([]*event.LogEvent, n)
	for i := range out {
		out[i] = &event.LogEvent{Level: event.InfoLevel, MessageTemplate: "x"}
	}
	return out
}

// TestEmitter_SizeFlush verifies batches are cut at MaxBatchSize and the
// remainder flushes on Close, preserving event order.
func TestEmitter_SizeFlush(t *testing.T) {
	t.Parallel()

	c := &collector{}
	e := New(c.emit, Options{
		MaxBatchSize:  2,
		FlushInterval: time.Hour, // never fires in this test
	})

	events := mkEvents(5)
	for _, ev := range events {
		if err := e.Enqueue(ev); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got := c.snapshot()
	if len(got) != 3 {
		t.Fatalf("batches = %d, want 3 (2+2+1)", len(got))
	}
	if len(got[0]) != 2 || len(got[1]) != 2 || len(got[2]) != 1 {
		t.Fatalf("batch sizes = %d/%d/%d, want 2/2/1", len(got[0]), len(got[1]), len(got[2]))
	}
	i := 0
	for _, b := range got {
		for _, ev := range b {
			if ev != events[i] {
				t.Fatalf("event order broken at index %d", i)
			}
			i++
		}
	}
}

// TestEmitter_IntervalFlush verifies the timer flushes a partial batch.
func TestEmitter_IntervalFlush(t *testing.T) {
	t.Parallel()

	c := &collector{}
	e := New(c.emit, Options{
		MaxBatchSize:  100,
		FlushInterval: 20 * time.Millisecond,
	})
	defer e.Close()

	if err := e.Enqueue(&event.LogEvent{MessageTemplate: "tick"}); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.snapshot()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("interval flush never happened")
}

// TestEmitter_RetryThenSuccess: a transiently failing emit succeeds within the
// retry budget and no events are lost.
func TestEmitter_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	c := &collector{failFirst: 2}
	e := New(c.emit, Options{
		MaxBatchSize:     2,
		FlushInterval:    time.Hour,
		MaxRetries:       3,
		RetryInitialWait: time.Millisecond,
	})

	for _, ev := range mkEvents(2) {
		if err := e.Enqueue(ev); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got := c.snapshot()
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of 2", got)
	}
	if c.calls != 3 {
		t.Fatalf("emit calls = %d, want 3 (2 failures + 1 success)", c.calls)
	}
}

// TestEmitter_DropAfterRetries: a batch that keeps failing is dropped and the
// worker keeps going; Close still returns nil.
func TestEmitter_DropAfterRetries(t *testing.T) {
	t.Parallel()

	c := &collector{failFirst: 1 << 30} // always fail
	e := New(c.emit, Options{
		MaxBatchSize:     1,
		FlushInterval:    time.Hour,
		MaxRetries:       1,
		RetryInitialWait: time.Millisecond,
	})

	if err := e.Enqueue(&event.LogEvent{MessageTemplate: "doomed"}); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if got := c.snapshot(); len(got) != 0 {
		t.Fatalf("batches = %d, want 0 (all dropped)", len(got))
	}
}

// TestEmitter_DropOnFull: with DropOnFull set and the worker wedged, Enqueue
// reports ErrBufferFull instead of blocking.
func TestEmitter_DropOnFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	emit := func(context.Context, []*event.LogEvent) error {
		<-block
		return nil
	}
	e := New(emit, Options{
		BufferSize:    1,
		MaxBatchSize:  1,
		FlushInterval: time.Hour,
		DropOnFull:    true,
	})

	// Wedge the worker, then overfill the 1-slot buffer. The worker may pull
	// one event before wedging, so allow a couple of successful Enqueues
	// before the buffer reports full.
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := e.Enqueue(&event.LogEvent{MessageTemplate: "spill"}); errors.Is(err, ErrBufferFull) {
			sawFull = true
			break
		}
	}
	close(block)
	if err := e.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !sawFull {
		t.Fatal("Enqueue never returned ErrBufferFull")
	}
}
