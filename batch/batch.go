// Package batch is the buffering front-end for the sink: it accumulates log
// events and hands them to an emit function in batches, flushing on size or
// on a timer. The sink itself never retries; batch-level retry and the
// drop-after-retries policy live here.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pgsink/internal/metrics"
	"pgsink/pkg/event"
)

// ErrBufferFull is returned by Enqueue when the buffer is full and DropOnFull
// is set.
var ErrBufferFull = errors.New("batch: buffer full, event dropped")

// EmitFunc persists one batch. In production this is (*sink.Sink).Emit; tests
// substitute a fake.
type EmitFunc func(ctx context.Context, events []*event.LogEvent) error

// Options configures the batching front-end.
type Options struct {
	// Name labels diagnostics and metrics for this emitter, typically the
	// destination table name. Defaults to "sink".
	Name string

	// BufferSize is the pending-event channel capacity. Defaults to 1000.
	BufferSize int

	// MaxBatchSize flushes the buffer once this many events are pending.
	// Defaults to 100.
	MaxBatchSize int

	// FlushInterval flushes whatever is pending on this cadence.
	// Defaults to 5s.
	FlushInterval time.Duration

	// MaxRetries is how many times a failed flush is retried (with
	// exponential backoff) before the batch is dropped. Defaults to 2.
	MaxRetries uint64

	// RetryInitialWait seeds the backoff. Defaults to 500ms.
	RetryInitialWait time.Duration

	// DropOnFull makes Enqueue drop and return ErrBufferFull instead of
	// blocking when the buffer is full.
	DropOnFull bool

	// Logger receives flush diagnostics. nil disables them.
	Logger *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.Name == "" {
		o.Name = "sink"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 2
	}
	if o.RetryInitialWait <= 0 {
		o.RetryInitialWait = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Emitter buffers events and flushes them through an EmitFunc on a background
// goroutine. Enqueue is safe for concurrent use; Enqueue after Close is not
// allowed.
type Emitter struct {
	emit EmitFunc
	opts Options
	log  *zap.Logger

	in        chan *event.LogEvent
	g         *errgroup.Group
	closeOnce sync.Once
}

// New starts the background worker and returns a ready Emitter.
func New(emit EmitFunc, opts Options) *Emitter {
	opts.applyDefaults()
	e := &Emitter{
		emit: emit,
		opts: opts,
		log:  opts.Logger.With(zap.String("emitter", opts.Name)),
		in:   make(chan *event.LogEvent, opts.BufferSize),
	}
	g, ctx := errgroup.WithContext(context.Background())
	e.g = g
	g.Go(func() error { return e.run(ctx) })
	return e
}

// Enqueue hands one event to the worker. It blocks when the buffer is full
// unless DropOnFull is set, in which case the event is counted as dropped and
// ErrBufferFull is returned.
func (e *Emitter) Enqueue(ev *event.LogEvent) error {
	if !e.opts.DropOnFull {
		e.in <- ev
		return nil
	}
	select {
	case e.in <- ev:
		return nil
	default:
		metrics.RecordRows(e.opts.Name, "dropped", 1)
		return ErrBufferFull
	}
}

// Close stops intake, flushes everything pending, and waits for the worker.
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() { close(e.in) })
	return e.g.Wait()
}

func (e *Emitter) run(ctx context.Context) error {
	buf := make([]*event.LogEvent, 0, e.opts.MaxBatchSize)
	ticker := time.NewTicker(e.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-e.in:
			if !ok {
				e.flush(ctx, &buf, "shutdown")
				return nil
			}
			buf = append(buf, ev)
			if len(buf) >= e.opts.MaxBatchSize {
				e.flush(ctx, &buf, "size")
			}
		case <-ticker.C:
			e.flush(ctx, &buf, "interval")
		}
	}
}

// flush writes the pending batch, retrying with exponential backoff. A batch
// that still fails after MaxRetries is dropped: the upstream producer is a
// logger, and blocking it forever on a dead database is worse than losing the
// rows.
func (e *Emitter) flush(ctx context.Context, buf *[]*event.LogEvent, reason string) {
	if len(*buf) == 0 {
		return
	}
	events := *buf

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.RetryInitialWait
	err := backoff.Retry(
		func() error { return e.emit(ctx, events) },
		backoff.WithContext(backoff.WithMaxRetries(bo, e.opts.MaxRetries), ctx),
	)
	if err != nil {
		e.log.Error("dropping batch after retries",
			zap.Int("events", len(events)),
			zap.String("reason", reason),
			zap.Error(err))
		metrics.RecordRows(e.opts.Name, "dropped", int64(len(events)))
	} else {
		e.log.Debug("flushed batch",
			zap.Int("events", len(events)),
			zap.String("reason", reason))
	}
	*buf = (*buf)[:0]
}
