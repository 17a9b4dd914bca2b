// Package cache keeps decoded frames for the lifetime of a scrubber and
// prefetches the frames ahead of the playhead.
package cache

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/scrubber/internal/source"
)

var ErrClosed = errors.New("frame cache closed")

// Cache maps frame locators to decoded images. Entries are never evicted.
// Concurrent requests for one locator share a single load.
type Cache struct {
	loader source.Loader
	logger *log.Logger
	sem    *semaphore.Weighted
	group  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	frames  map[string]image.Image
	pending map[string]struct{}
	closed  bool

	// background prefetches
	wg sync.WaitGroup

	loads    atomic.Int64
	failures atomic.Int64

	// loadDone runs after finish, before the shared call returns; tests only.
	loadDone func(locator string)
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Cached   int
	Pending  int
	Loads    int64
	Failures int64
}

// New creates a cache reading through loader with at most maxConcurrent
// loads in flight. A nil logger uses log.Default().
func New(loader source.Loader, maxConcurrent int, logger *log.Logger) *Cache {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		loader:  loader,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:     ctx,
		cancel:  cancel,
		frames:  make(map[string]image.Image),
		pending: make(map[string]struct{}),
	}
}

// Get returns the cached image without loading.
func (c *Cache) Get(locator string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.frames[locator]
	return img, ok
}

// Pending reports whether a load for locator is in flight.
func (c *Cache) Pending(locator string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[locator]
	return ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Cached:   len(c.frames),
		Pending:  len(c.pending),
		Loads:    c.loads.Load(),
		Failures: c.failures.Load(),
	}
}

// Ensure returns the image for locator, loading it if needed. A locator that
// is already loading is not requested again; the caller waits for that load.
// ctx only bounds the wait, the load itself runs to completion.
func (c *Cache) Ensure(ctx context.Context, locator string) (image.Image, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if img, ok := c.frames[locator]; ok {
		c.mu.Unlock()
		return img, nil
	}
	c.pending[locator] = struct{}{}
	ch := c.group.DoChan(locator, func() (interface{}, error) {
		return c.load(locator)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		c.settle(locator)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	case <-ctx.Done():
		go func() {
			<-ch
			c.settle(locator)
		}()
		return nil, ctx.Err()
	}
}

// settle clears the pending entry once a caller's load has completed. A caller
// can join a call whose finish already ran; its entry is cleared here.
func (c *Cache) settle(locator string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		delete(c.pending, locator)
	}
}

func (c *Cache) load(locator string) (image.Image, error) {
	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		c.finish(locator, nil, err)
		return nil, err
	}
	c.loads.Add(1)
	img, err := c.loader.Load(c.ctx, locator)
	c.sem.Release(1)

	c.finish(locator, img, err)
	if c.loadDone != nil {
		c.loadDone(locator)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// finish records a completed load. Completions after Close are dropped.
func (c *Cache) finish(locator string, img image.Image, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	delete(c.pending, locator)
	if err != nil {
		c.failures.Add(1)
		c.logger.Printf("[!] failed to load frame %s: %v", locator, err)
		return
	}
	c.frames[locator] = img
}

// Wait blocks until all queued prefetches have completed.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close tears the cache down. Loads still running are abandoned and their
// results discarded; later calls are no-ops or return ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.frames = make(map[string]image.Image)
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	c.cancel()
}
