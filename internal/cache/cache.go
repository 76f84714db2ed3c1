package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/fingerprint"
)

// Status is the state of a cache entry.
type Status int

const (
	Absent Status = iota
	Pending
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Source tells how a value was obtained.
type Source int

const (
	// Computed means the caller triggered the computation.
	Computed Source = iota
	// Cached means the entry had already resolved.
	Cached
	// Joined means the caller waited for a computation started by another
	// caller.
	Joined
)

func (s Source) String() string {
	switch s {
	case Computed:
		return "computed"
	case Cached:
		return "cached"
	case Joined:
		return "joined"
	}
	return "unknown"
}

// Submitter runs jobs; *dispatcher.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, job dispatcher.Job) *dispatcher.Future
}

// Outcome is the result of a lookup.
type Outcome struct {
	Value  any
	Source Source
}

// Stats counts cache activity.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Joins         int64 `json:"joins"`
	Failures      int64 `json:"failures"`
	Invalidations int64 `json:"invalidations"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires resolved entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

type entry struct {
	done chan struct{}

	// Written once before done is closed.
	status     Status
	value      any
	err        error
	cancelled  bool
	resolvedAt time.Time
}

func (e *entry) resolved() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Cache memoizes computations by fingerprint.
type Cache struct {
	entries   sync.Map // Key: fingerprint.Fingerprint, Value: *entry
	submitter Submitter
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	joins         atomic.Int64
	failures      atomic.Int64
	invalidations atomic.Int64
}

// New creates an empty cache computing misses through submitter.
func New(submitter Submitter, opts ...Option) *Cache {
	c := &Cache{submitter: submitter, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// GetOrCompute returns the value stored for fp, computing it with job when
// the fingerprint is unknown. See Get.
func (c *Cache) GetOrCompute(ctx context.Context, fp fingerprint.Fingerprint, job dispatcher.Job) (any, error) {
	out, err := c.Get(ctx, fp, job)
	return out.Value, err
}

// Get resolves fp:
//   - a done or failed entry is returned as is,
//   - a pending entry is waited for,
//   - otherwise a pending entry is stored and job is submitted.
//
// If ctx ends while waiting, Get returns ctx.Err() and the computation goes
// on for the other callers.
func (c *Cache) Get(ctx context.Context, fp fingerprint.Fingerprint, job dispatcher.Job) (Outcome, error) {
	logger := c.logger.With("fingerprint", fp.Short(), "job", job.Name)
	for {
		fresh := &entry{done: make(chan struct{})}
		actual, loaded := c.entries.LoadOrStore(fp, fresh)
		e := actual.(*entry)

		if !loaded {
			c.misses.Add(1)
			logger.Debug("Cache miss, computing.")
			fut := c.submitter.Submit(ctx, job)
			go c.complete(fp, e, fut)
			return c.wait(ctx, e, Computed)
		}

		if e.resolved() {
			if c.expired(e) {
				c.entries.CompareAndDelete(fp, e)
				continue
			}
			c.hits.Add(1)
			logger.Debug("Cache hit.", "status", e.status)
			return Outcome{Value: e.value, Source: Cached}, e.err
		}

		c.joins.Add(1)
		logger.Debug("Joining pending computation.")
		out, err := c.wait(ctx, e, Joined)
		if err == nil || ctx.Err() != nil || !e.cancelled {
			return out, err
		}
		// The owner was cancelled; compete to recompute.
		logger.Debug("Pending computation was cancelled, retrying.")
	}
}

func (c *Cache) wait(ctx context.Context, e *entry, source Source) (Outcome, error) {
	select {
	case <-e.done:
		return Outcome{Value: e.value, Source: source}, e.err
	case <-ctx.Done():
		return Outcome{Source: source}, ctx.Err()
	}
}

// complete records the outcome of fut on e and wakes its waiters.
func (c *Cache) complete(fp fingerprint.Fingerprint, e *entry, fut *dispatcher.Future) {
	value, err := fut.Wait(context.Background())
	e.value, e.err = value, err
	e.resolvedAt = c.now()
	switch {
	case err == nil:
		e.status = Done
	case dispatcher.IsCancellation(err):
		e.status = Failed
		e.cancelled = true
		c.entries.CompareAndDelete(fp, e)
	default:
		e.status = Failed
		c.failures.Add(1)
		c.logger.Debug("Computation failed.", "fingerprint", fp.Short(), "error", err)
	}
	close(e.done)
}

func (c *Cache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.resolvedAt) > c.ttl
}

// Status returns the state of the entry for fp.
func (c *Cache) Status(fp fingerprint.Fingerprint) Status {
	actual, ok := c.entries.Load(fp)
	if !ok {
		return Absent
	}
	e := actual.(*entry)
	if !e.resolved() {
		return Pending
	}
	if c.expired(e) {
		return Absent
	}
	return e.status
}

// Invalidate removes the entry for fp whatever its state. A pending
// computation still delivers to its current waiters but is not stored.
func (c *Cache) Invalidate(fp fingerprint.Fingerprint) {
	if _, ok := c.entries.LoadAndDelete(fp); ok {
		c.invalidations.Add(1)
		c.logger.Debug("Cache entry invalidated.", "fingerprint", fp.Short())
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.entries.Range(func(key, _ any) bool {
		c.Invalidate(key.(fingerprint.Fingerprint))
		return true
	})
}

// Len returns the number of stored entries, pending ones included.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Joins:         c.joins.Load(),
		Failures:      c.failures.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
