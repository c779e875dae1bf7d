package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pgsink/columns"
	"pgsink/internal/metrics"
	"pgsink/pkg/event"
)

// Sink writes batches of log events into one Postgres table.
//
// Provisioning is lazy and happens at most once per Sink lifetime: the first
// emit that finds a flag unset runs (or delegates) creation and flips the
// flag on success. Flags are never reset, even when a later step of the same
// cycle fails, so a batch that failed after provisioning does not re-provision.
type Sink struct {
	opts   Options
	pool   *pgxpool.Pool
	log    *zap.Logger
	format *columns.Format

	provMu        sync.Mutex
	schemaCreated bool
	tableCreated  bool

	// acquire obtains a scoped connection; tests replace it with a fake.
	acquire func(ctx context.Context) (Conn, func(), error)
	// now is the pruning clock; tests pin it.
	now func() time.Time
}

// New validates the options, opens the pool, and returns a ready Sink.
// Connection establishment is lazy in pgxpool, so New succeeds even when the
// server is briefly unreachable; the first emit surfaces the failure.
func New(ctx context.Context, opts Options) (*Sink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, opts.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("sink: pgxpool: %w", err)
	}

	s := newSink(opts)
	s.pool = pool
	s.acquire = func(ctx context.Context) (Conn, func(), error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire connection: %w", err)
		}
		return c, c.Release, nil
	}
	return s, nil
}

// newSink builds the sink sans pool. Split out so tests can wire a fake
// connection without a DSN.
func newSink(opts Options) *Sink {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	format := opts.Format
	if format == nil {
		format = columns.DefaultFormat()
	}
	return &Sink{
		opts:   opts,
		log:    log,
		format: format,
		// "already created" when auto-creation is disabled.
		schemaCreated: !opts.NeedAutoCreateSchema,
		tableCreated:  !opts.NeedAutoCreateTable,
		now:           time.Now,
	}
}

// Emit persists one batch of events: acquire a connection, provision once,
// write via the configured strategy, then prune when retention is set. Any
// step's failure aborts the rest of the cycle and is returned to the caller;
// no internal retry. An empty batch still runs provisioning and pruning.
func (s *Sink) Emit(ctx context.Context, events []*event.LogEvent) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordEmit(s.opts.TableName, err, time.Since(start))
		if err == nil {
			metrics.RecordRows(s.opts.TableName, "written", int64(len(events)))
		}
	}()

	conn, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err = s.provision(ctx, conn); err != nil {
		return err
	}

	if len(events) > 0 {
		if s.opts.UseCopy {
			err = s.copyEvents(ctx, conn, events)
		} else {
			err = s.insertEvents(ctx, conn, events)
		}
		if err != nil {
			return err
		}
	}

	if s.opts.RetentionTime > 0 {
		if err = s.prune(ctx, conn); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying pool. The sink must not be used afterwards.
func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
