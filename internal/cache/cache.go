// Package cache holds the in-process library index: a snapshot of every
// library, primed lazily and rebuilt after content changes.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// DefaultDebounce coalesces bursts of change events into one rebuild.
const DefaultDebounce = 150 * time.Millisecond

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Builder produces the full set of library records for one snapshot.
type Builder interface {
	Build(ctx context.Context) ([]models.LibraryRecord, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context) ([]models.LibraryRecord, error)

// Build calls f(ctx).
func (f BuilderFunc) Build(ctx context.Context) ([]models.LibraryRecord, error) { return f(ctx) }

// Cache publishes Snapshots built by a Builder. Reads never block on a
// rebuild; they see the previous snapshot until the new one is swapped in.
type Cache struct {
	builder   Builder
	logger    *zap.Logger
	debounce  time.Duration
	onPublish []func(*Snapshot)

	current atomic.Pointer[Snapshot]

	buildMu sync.Mutex // held for the duration of one build

	mu       sync.Mutex
	timer    *time.Timer
	building bool
	pending  bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithDebounce sets the quiet period between the last Invalidate and the rebuild.
func WithDebounce(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithOnPublish registers fn to run after each snapshot is published.
func WithOnPublish(fn func(*Snapshot)) Option {
	return func(c *Cache) { c.onPublish = append(c.onPublish, fn) }
}

// New creates an unprimed cache.
func New(builder Builder, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		builder:  builder,
		debounce: DefaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Init primes the cache if no snapshot has been published yet and returns
// the current snapshot. Concurrent callers share a single build.
func (c *Cache) Init(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.buildLocked(ctx)
}

// Rebuild runs a build now and publishes it, waiting for any build in flight.
func (c *Cache) Rebuild(ctx context.Context) (*Snapshot, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.buildLocked(ctx)
}

// Current returns the published snapshot, or nil before priming.
func (c *Cache) Current() *Snapshot { return c.current.Load() }

// Primed reports whether a snapshot has been published.
func (c *Cache) Primed() bool { return c.current.Load() != nil }

// Invalidate requests a rebuild once changes go quiet for the debounce
// period. A request during a running rebuild queues exactly one more.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

func (c *Cache) fire() {
	c.mu.Lock()
	c.timer = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.building {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.building = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.rebuildLoop()
}

func (c *Cache) rebuildLoop() {
	defer c.wg.Done()
	for {
		c.buildMu.Lock()
		if _, err := c.buildLocked(c.ctx); err != nil && c.ctx.Err() == nil {
			c.logger.Warn("library index rebuild failed", zap.Error(err))
		}
		c.buildMu.Unlock()

		c.mu.Lock()
		if !c.pending || c.closed {
			c.building = false
			c.pending = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Cache) buildLocked(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	records, err := c.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	s := NewSnapshot(records)
	c.current.Store(s)
	c.logger.Info("library index published",
		zap.Int("libraries", s.Len()),
		zap.String("generation", s.Generation),
		zap.Duration("took", time.Since(start)))
	for _, fn := range c.onPublish {
		fn(s)
	}
	return s, nil
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close cancels pending rebuilds and waits for a running one to finish.
// The last published snapshot stays readable.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	return nil
}
