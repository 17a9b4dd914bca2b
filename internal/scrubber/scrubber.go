// Package scrubber maps page scroll onto a two-part frame sequence and keeps a
// canvas painted with the selected frame.
//
// A Scrubber is created unmounted. Mount sizes the surface, warms the first
// frames and starts the render loop; scroll and resize events then update the
// playback state, which the loop picks up on its next tick. Unmount releases
// everything, after which every method is a no-op.
package scrubber

import (
	"context"
	"image/color"
	"log"
	"sync"

	"github.com/ivlev/scrubber/internal/cache"
	"github.com/ivlev/scrubber/internal/effects"
	"github.com/ivlev/scrubber/internal/render"
	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/source"
	"github.com/ivlev/scrubber/internal/surface"
)

// StateObserver is told about every playback state change.
type StateObserver interface {
	ObserveState(st sequence.PlaybackState)
}

// EventSource delivers viewport signals.
type EventSource interface {
	Scroll() <-chan sequence.Geometry
	Resize() <-chan surface.Viewport
}

type options struct {
	logger        *log.Logger
	clock         sequence.Clock
	observer      StateObserver
	maxConcurrent int
	render        render.Options
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used by the scroll throttle.
func WithClock(c sequence.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithObserver(obs StateObserver) Option {
	return func(o *options) { o.observer = obs }
}

func WithMaxConcurrentLoads(n int) Option {
	return func(o *options) { o.maxConcurrent = n }
}

func WithFPS(fps int) Option {
	return func(o *options) { o.render.FPS = fps }
}

func WithBackground(c color.Color) Option {
	return func(o *options) { o.render.Background = c }
}

func WithEffect(e effects.Effect) Option {
	return func(o *options) { o.render.Effect = e }
}

func WithFrameSink(fn render.FrameSink) Option {
	return func(o *options) { o.render.OnFrame = fn }
}

type Scrubber struct {
	cache    *cache.Cache
	surface  *surface.Manager
	loop     *render.Loop
	throttle *sequence.Throttle
	logger   *log.Logger
	observer StateObserver

	mu      sync.RWMutex
	state   sequence.PlaybackState
	mounted bool
	closed  bool

	subMu sync.Mutex
	subs  []chan struct{}
	subWG sync.WaitGroup
}

// New builds an unmounted scrubber drawing on canvas. A nil canvas is allowed;
// painting then does nothing.
func New(loader source.Loader, canvas surface.Canvas, opts ...Option) *Scrubber {
	o := options{
		logger:        log.Default(),
		clock:         sequence.SystemClock{},
		maxConcurrent: 4,
		render: render.Options{
			Effect: effects.NewVignette(nil),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	mgr := surface.NewManager(canvas)

	s := &Scrubber{
		cache:    cache.New(loader, o.maxConcurrent, o.logger),
		surface:  mgr,
		throttle: sequence.NewThrottle(sequence.ScrollThrottle, o.clock),
		logger:   o.logger,
		observer: o.observer,
		state:    sequence.Initial(),
	}
	s.loop = render.NewLoop(s, s.cache, mgr, o.render)
	mgr.OnResize(func() { s.loop.Paint() })
	return s
}

// Mount attaches the scrubber to a viewport: size the surface, queue the
// opening frames and start the render loop. The loop stops with ctx or Unmount.
func (s *Scrubber) Mount(ctx context.Context, v surface.Viewport) {
	s.mu.Lock()
	if s.mounted || s.closed {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	s.surface.Resize(v)
	s.cache.PreloadRange(sequence.First, sequence.PreloadStart, sequence.PreloadEnd)
	s.loop.Start(ctx)
}

func (s *Scrubber) active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mounted && !s.closed
}

// HandleScroll recomputes the playback state from layout. A nil geometry means
// the scroll container is not in the page. It reports whether the event was
// processed or dropped by the throttle.
func (s *Scrubber) HandleScroll(g *sequence.Geometry) bool {
	if g == nil || !s.active() {
		return false
	}
	if !s.throttle.Allow() {
		return false
	}
	s.apply(sequence.Map(*g))
	return true
}

func (s *Scrubber) apply(st sequence.PlaybackState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := st != s.state
	s.state = st
	s.mu.Unlock()

	s.cache.QueuePrefetch(st.FrameIndex, st.Sequence)
	if changed && s.observer != nil {
		s.observer.ObserveState(st)
	}
}

// HandleResize resizes the surface and repaints immediately.
func (s *Scrubber) HandleResize(v surface.Viewport) {
	if !s.active() {
		return
	}
	s.surface.Resize(v)
}

// State returns the current playback state.
func (s *Scrubber) State() sequence.PlaybackState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Paint draws the current state now, outside the loop cadence.
func (s *Scrubber) Paint() bool {
	if !s.active() {
		return false
	}
	return s.loop.Paint()
}

func (s *Scrubber) Cache() *cache.Cache {
	return s.cache
}

func (s *Scrubber) Loop() *render.Loop {
	return s.loop
}

// Subscribe forwards events from src until Unmount. It returns a function
// that detaches src early.
func (s *Scrubber) Subscribe(src EventSource) func() {
	done := make(chan struct{})

	s.subMu.Lock()
	if !s.active() {
		s.subMu.Unlock()
		return func() {}
	}
	s.subs = append(s.subs, done)
	s.subWG.Add(1)
	s.subMu.Unlock()

	go func() {
		defer s.subWG.Done()
		scroll, resize := src.Scroll(), src.Resize()
		for {
			select {
			case <-done:
				return
			case g, ok := <-scroll:
				if !ok {
					scroll = nil
					continue
				}
				s.HandleScroll(&g)
			case v, ok := <-resize:
				if !ok {
					resize = nil
					continue
				}
				s.HandleResize(v)
			}
			if scroll == nil && resize == nil {
				return
			}
		}
	}()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		closeDone(done)
	}
}

// closeDone closes a subscription channel once; callers hold subMu.
func closeDone(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}

// Unmount detaches event sources, stops the render loop and drops the surface
// and the frame cache. Loads that finish later are discarded.
func (s *Scrubber) Unmount() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	for _, done := range s.subs {
		closeDone(done)
	}
	s.subs = nil
	s.subMu.Unlock()
	s.subWG.Wait()

	s.loop.Stop()
	s.surface.Detach()
	s.cache.Close()
	s.logger.Printf("[*] scrubber unmounted at %s frame %d", s.State().Sequence, s.State().FrameIndex+1)
}
