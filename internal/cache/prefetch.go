package cache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrubber/internal/sequence"
)

// QueuePrefetch starts loads for the PrefetchAhead frames from anchor onward.
// Indices past the end of the sequence collapse onto its last frame.
// Failures are logged and otherwise ignored.
func (c *Cache) QueuePrefetch(anchor int, seq sequence.Sequence) {
	n := sequence.Frames(seq)
	if n == 0 {
		return
	}
	for i := 0; i < sequence.PrefetchAhead; i++ {
		idx := anchor + i
		if idx > n-1 {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		c.queue(sequence.FrameKey{Sequence: seq, Index: idx}.Locator())
	}
}

// PreloadRange queues frames start..end inclusive.
func (c *Cache) PreloadRange(seq sequence.Sequence, start, end int) {
	start, end, ok := clampRange(seq, start, end)
	if !ok {
		return
	}
	for i := start; i <= end; i++ {
		c.queue(sequence.FrameKey{Sequence: seq, Index: i}.Locator())
	}
}

// Warm loads frames start..end inclusive and waits for them.
func (c *Cache) Warm(ctx context.Context, seq sequence.Sequence, start, end int) error {
	start, end, ok := clampRange(seq, start, end)
	if !ok {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := start; i <= end; i++ {
		locator := sequence.FrameKey{Sequence: seq, Index: i}.Locator()
		g.Go(func() error {
			_, err := c.Ensure(ctx, locator)
			return err
		})
	}
	return g.Wait()
}

// queue starts a background load unless the frame is cached or already loading.
func (c *Cache) queue(locator string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.frames[locator]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.pending[locator]; ok {
		c.mu.Unlock()
		return
	}
	c.pending[locator] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		// errors are logged in finish
		_, _ = c.Ensure(c.ctx, locator)
	}()
}

func clampRange(seq sequence.Sequence, start, end int) (int, int, bool) {
	n := sequence.Frames(seq)
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start = 0
	}
	if end > n-1 {
		end = n - 1
	}
	return start, end, start <= end
}
