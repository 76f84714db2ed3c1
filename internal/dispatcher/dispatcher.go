package dispatcher

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/blueetlcore/internal/ctxlog"
)

// Config sizes the pool.
type Config struct {
	// JobCount is the degree of parallelism: 1 runs jobs serially, N > 1
	// starts N workers, -1 uses every CPU and 0 uses half of them (at least
	// one).
	JobCount int
	// QueueSize bounds the number of queued jobs. Submit blocks while the
	// queue is full. Zero means four slots per worker.
	QueueSize int
}

// Workers resolves JobCount to a concrete number of workers.
func (c Config) Workers() int {
	switch {
	case c.JobCount > 0:
		return c.JobCount
	case c.JobCount < 0:
		return runtime.NumCPU()
	}
	return max(1, runtime.NumCPU()/2)
}

// Stats counts the jobs seen by a dispatcher.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	Retries   int64 `json:"retries"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used by the pool itself. Jobs log through the
// logger found in their submission context.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithVerbose sets the verbosity; above 10, every job start and end is logged
// at info level instead of debug.
func WithVerbose(level int) Option {
	return func(d *Dispatcher) { d.verbose = level }
}

// WithWorkerLogLevel restricts the logger handed to jobs to records of at
// least the given level.
func WithWorkerLogLevel(level slog.Level) Option {
	return func(d *Dispatcher) { d.workerLevel = &level }
}

// Dispatcher executes jobs with a fixed degree of parallelism.
type Dispatcher struct {
	workers     int
	logger      *slog.Logger
	verbose     int
	workerLevel *slog.Level

	serialMu sync.Mutex
	queue    chan *Future
	wg       sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	retries   atomic.Int64
}

// New creates a dispatcher and, in parallel mode, starts its workers.
func New(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{workers: cfg.Workers()}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	if d.workers > 1 {
		size := cfg.QueueSize
		if size <= 0 {
			size = d.workers * 4
		}
		d.queue = make(chan *Future, size)
		d.wg.Add(d.workers)
		for i := 1; i <= d.workers; i++ {
			go d.worker(i)
		}
	}
	d.logger.Debug("Dispatcher started.", "workers", d.workers, "serial", d.Serial())
	return d
}

// Workers returns the number of jobs that may run at the same time.
func (d *Dispatcher) Workers() int { return d.workers }

// Serial reports whether jobs run one at a time on the submitting goroutine.
func (d *Dispatcher) Serial() bool { return d.workers == 1 }

// Submit schedules a job and returns its future. In serial mode the job has
// already run when Submit returns. Cancelling ctx before the job starts
// resolves the future with the context error.
func (d *Dispatcher) Submit(ctx context.Context, job Job) *Future {
	f := newFuture(ctx, job)

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		f.resolve(nil, ErrClosed)
		return f
	}
	d.submitted.Add(1)

	if d.Serial() {
		d.serialMu.Lock()
		defer d.serialMu.Unlock()
		d.run(f, 0)
		return f
	}

	select {
	case d.queue <- f:
	case <-ctx.Done():
		if f.start() {
			d.cancelled.Add(1)
			f.resolve(nil, ctx.Err())
		}
	}
	return f
}

// Close stops accepting jobs, lets the queued ones finish and waits for the
// workers to exit.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	d.closeMu.Unlock()
	d.wg.Wait()
	d.logger.Debug("Dispatcher closed.", "stats", d.Stats())
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Cancelled: d.cancelled.Load(),
		Retries:   d.retries.Load(),
	}
}

// jobLogger returns the logger handed to a job, honouring the worker level.
func (d *Dispatcher) jobLogger(ctx context.Context) *slog.Logger {
	logger := ctxlog.FromContext(ctx)
	if d.workerLevel == nil {
		return logger
	}
	return slog.New(&levelHandler{level: *d.workerLevel, Handler: logger.Handler()})
}

func (d *Dispatcher) progressLevel() slog.Level {
	if d.verbose > 10 {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// levelHandler drops records below a minimum level.
type levelHandler struct {
	level slog.Level
	slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithGroup(name)}
}
