package surface

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestViewportBacking(t *testing.T) {
	tests := []struct {
		v    Viewport
		w, h int
	}{
		{Viewport{1280, 720, 1}, 1280, 720},
		{Viewport{390, 844, 3}, 1170, 2532},
		{Viewport{100, 50, 1.5}, 150, 75},
		{Viewport{100, 50, 0}, 100, 50},
	}
	for _, tt := range tests {
		w, h := tt.v.Backing()
		if w != tt.w || h != tt.h {
			t.Errorf("Backing(%+v) = %dx%d, want %dx%d", tt.v, w, h, tt.w, tt.h)
		}
	}
}

func TestManagerResizeRepaints(t *testing.T) {
	c := NewRGBACanvas()
	m := NewManager(c)

	repaints := 0
	m.OnResize(func() {
		repaints++
		m.Do(func(c Canvas) { c.Fill(color.White) })
	})

	m.Resize(Viewport{Width: 40, Height: 30, DevicePixelRatio: 2})
	if w, h := c.Size(); w != 80 || h != 60 {
		t.Errorf("expected 80x60 backing, got %dx%d", w, h)
	}
	if c.Scale() != 2 {
		t.Errorf("expected scale 2, got %v", c.Scale())
	}
	if repaints != 1 {
		t.Errorf("expected 1 repaint, got %d", repaints)
	}
	if got := c.Snapshot().RGBAAt(79, 59); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected repaint to fill the new backing, got %v", got)
	}

	m.Resize(Viewport{Width: 20, Height: 10, DevicePixelRatio: 1})
	if w, h := c.Size(); w != 20 || h != 10 {
		t.Errorf("expected 20x10 backing, got %dx%d", w, h)
	}
	if repaints != 2 {
		t.Errorf("expected 2 repaints, got %d", repaints)
	}
}

func TestManagerWithoutCanvas(t *testing.T) {
	m := NewManager(nil)
	called := false
	m.OnResize(func() { called = true })
	m.Resize(Viewport{Width: 10, Height: 10})
	if called {
		t.Error("resize hook must not run without a canvas")
	}
	if m.Do(func(Canvas) { called = true }) || called {
		t.Error("Do must be a no-op without a canvas")
	}

	m = NewManager(NewRGBACanvas())
	if m.Do(func(Canvas) {}) {
		t.Error("Do must be a no-op before the first resize")
	}
	m.Resize(Viewport{Width: 10, Height: 10})
	m.Detach()
	if m.Do(func(Canvas) {}) {
		t.Error("Do must be a no-op after detach")
	}
}

func TestDrawImageScalesToFill(t *testing.T) {
	c := NewRGBACanvas()
	c.Configure(64, 36, 2)
	c.Fill(color.Black)

	c.DrawImage(solid(16, 9, color.RGBA{R: 255, A: 255}), 1)
	for _, p := range []image.Point{{0, 0}, {63, 35}, {32, 18}} {
		if got := c.Snapshot().RGBAAt(p.X, p.Y); got.R < 250 || got.G > 5 {
			t.Errorf("pixel %v = %v, expected red", p, got)
		}
	}
}

func TestDrawImageAlpha(t *testing.T) {
	c := NewRGBACanvas()
	c.Configure(8, 8, 1)
	c.Fill(color.Black)

	c.DrawImage(solid(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255}), 0.5)
	got := c.Snapshot().RGBAAt(4, 4)
	if got.R < 120 || got.R > 135 {
		t.Errorf("expected half-blended pixel, got %v", got)
	}

	c.Fill(color.Black)
	c.DrawImage(solid(4, 4, color.White), 0)
	if got := c.Snapshot().RGBAAt(4, 4); got.R != 0 {
		t.Errorf("zero alpha must not draw, got %v", got)
	}
}

func TestFillRadial(t *testing.T) {
	c := NewRGBACanvas()
	c.Configure(200, 100, 1)
	c.Fill(color.White)

	g := RadialGradient{
		CX: 100, CY: 50, R0: 20, R1: 100,
		Stops: []ColorStop{
			{Offset: 0, Color: colorful.Color{R: 1, G: 1, B: 1}, Alpha: 0},
			{Offset: 1, Color: colorful.Color{}, Alpha: 1},
		},
	}
	c.FillRadial(g, 1)

	centre := c.Snapshot().RGBAAt(100, 50)
	if centre.R != 255 {
		t.Errorf("centre should be untouched, got %v", centre)
	}
	corner := c.Snapshot().RGBAAt(0, 0)
	if corner.R > 10 {
		t.Errorf("corner should be dark, got %v", corner)
	}
	mid := c.Snapshot().RGBAAt(160, 50)
	if mid.R <= corner.R || mid.R >= centre.R {
		t.Errorf("expected gradient between centre and corner, got %v", mid)
	}
}

func TestUnconfiguredCanvasIsNoop(t *testing.T) {
	c := NewRGBACanvas()
	c.Fill(color.White)
	c.DrawImage(solid(2, 2, color.White), 1)
	c.FillRadial(RadialGradient{Stops: []ColorStop{{}}}, 1)
	if c.Snapshot() != nil {
		t.Error("expected no backing store")
	}
}
