// Package render repaints the current playback state on a fixed cadence,
// independent of how often the state changes.
package render

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivlev/scrubber/internal/effects"
	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/surface"
)

// StateSource yields the state to paint on each tick.
type StateSource interface {
	State() sequence.PlaybackState
}

// FrameLookup returns a decoded frame if it is already available.
type FrameLookup interface {
	Get(locator string) (image.Image, bool)
}

// FrameSink receives the painted surface; frame is only valid during the call.
type FrameSink func(frame *image.RGBA, st sequence.PlaybackState)

type Options struct {
	FPS        int
	Background color.Color
	Effect     effects.Effect
	OnFrame    FrameSink
}

type Loop struct {
	state   StateSource
	frames  FrameLookup
	surface *surface.Manager
	opts    Options

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	ticks  atomic.Uint64
	misses atomic.Uint64
}

func NewLoop(state StateSource, frames FrameLookup, mgr *surface.Manager, opts Options) *Loop {
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	return &Loop{
		state:   state,
		frames:  frames,
		surface: mgr,
		opts:    opts,
	}
}

// Interval is the time between ticks.
func (l *Loop) Interval() time.Duration {
	return time.Second / time.Duration(l.opts.FPS)
}

// Paint draws the current state once. A frame that is not cached yet leaves
// only the background. It reports false if there was nothing to draw on.
func (l *Loop) Paint() bool {
	st := l.state.State()
	img, ok := l.frames.Get(st.Key().Locator())

	painted := l.surface.Do(func(c surface.Canvas) {
		c.Fill(l.opts.Background)
		if ok {
			c.DrawImage(img, st.Opacity)
			if l.opts.Effect != nil {
				l.opts.Effect.Apply(c, st.Opacity)
			}
		}
		if l.opts.OnFrame != nil {
			l.opts.OnFrame(c.Snapshot(), st)
		}
	})
	if painted && !ok {
		l.misses.Add(1)
	}
	return painted
}

// Start runs the loop until Stop or ctx is done. Starting a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx, l.stop, l.done)
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			l.Paint()
			l.ticks.Add(1)
		}
	}
}

// Stop halts the loop and waits for an in-progress paint to finish.
// No paint happens after Stop returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	<-done
}

// Ticks counts loop iterations since creation.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Misses counts paints where the frame was not cached yet.
func (l *Loop) Misses() uint64 {
	return l.misses.Load()
}
