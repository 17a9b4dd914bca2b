package surface

import (
	"math"
	"sync"
)

// Viewport is the window size in logical pixels and its device pixel ratio.
type Viewport struct {
	Width            int
	Height           int
	DevicePixelRatio float64
}

// Backing returns the device-pixel size of a surface covering the viewport.
func (v Viewport) Backing() (int, int) {
	dpr := v.DPR()
	return int(math.Round(float64(v.Width) * dpr)), int(math.Round(float64(v.Height) * dpr))
}

// DPR is the device pixel ratio with unset values treated as 1.
func (v Viewport) DPR() float64 {
	if v.DevicePixelRatio <= 0 || math.IsNaN(v.DevicePixelRatio) {
		return 1
	}
	return v.DevicePixelRatio
}

// Manager owns a canvas, keeps its backing store matched to the viewport and
// serialises all drawing on it. A Manager without a canvas does nothing.
type Manager struct {
	mu       sync.Mutex
	canvas   Canvas
	viewport Viewport

	hookMu   sync.Mutex
	onResize func()
}

func NewManager(c Canvas) *Manager {
	return &Manager{canvas: c}
}

// OnResize registers the repaint hook run after every resize.
func (m *Manager) OnResize(fn func()) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onResize = fn
}

// Resize reconfigures the backing store for v and repaints immediately.
func (m *Manager) Resize(v Viewport) {
	m.mu.Lock()
	if m.canvas == nil {
		m.mu.Unlock()
		return
	}
	w, h := v.Backing()
	m.canvas.Configure(w, h, v.DPR())
	m.viewport = v
	m.mu.Unlock()

	m.hookMu.Lock()
	fn := m.onResize
	m.hookMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// Do runs fn with exclusive access to the canvas. It reports false when no
// canvas is attached or the canvas has no backing store yet.
func (m *Manager) Do(fn func(Canvas)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.canvas == nil {
		return false
	}
	if w, h := m.canvas.Size(); w == 0 || h == 0 {
		return false
	}
	fn(m.canvas)
	return true
}

// Detach drops the canvas; later calls are no-ops.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.canvas.(interface{ Release() }); ok {
		r.Release()
	}
	m.canvas = nil
}
