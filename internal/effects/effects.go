package effects

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/scrubber/internal/easing"
	"github.com/ivlev/scrubber/internal/surface"
)

// Effect is a post-processing pass painted over the current frame.
type Effect interface {
	Apply(c surface.Canvas, opacity float64)
}

// Chain applies effects in order.
type Chain []Effect

func (ch Chain) Apply(c surface.Canvas, opacity float64) {
	for _, e := range ch {
		e.Apply(c, opacity)
	}
}

// New builds the overlay chain named in configuration, in order.
func New(names []string, falloff easing.Func) (Chain, error) {
	ch := make(Chain, 0, len(names))
	for _, name := range names {
		switch name {
		case "vignette":
			ch = append(ch, NewVignette(falloff))
		default:
			return nil, fmt.Errorf("unknown effect %q", name)
		}
	}
	return ch, nil
}

// Vignette darkens the corners with a centred radial gradient. Radii are
// fractions of the logical surface width.
type Vignette struct {
	Inner, Outer float64
	Stops        []surface.ColorStop
	Falloff      easing.Func
}

// NewVignette returns the cinematic vignette: transparent inside 30% of the
// width, fading to 25% black at 80%.
func NewVignette(falloff easing.Func) *Vignette {
	return &Vignette{
		Inner: 0.3,
		Outer: 0.8,
		Stops: []surface.ColorStop{
			{Offset: 0, Color: colorful.Color{R: 1, G: 1, B: 1}, Alpha: 0},
			{Offset: 1, Color: colorful.Color{}, Alpha: 0.25},
		},
		Falloff: falloff,
	}
}

func (v *Vignette) Apply(c surface.Canvas, opacity float64) {
	w, h := c.Size()
	if w == 0 || h == 0 {
		return
	}
	s := c.Scale()
	lw, lh := float64(w)/s, float64(h)/s

	c.FillRadial(surface.RadialGradient{
		CX:      lw / 2,
		CY:      lh / 2,
		R0:      lw * v.Inner,
		R1:      lw * v.Outer,
		Stops:   v.Stops,
		Falloff: v.Falloff,
	}, opacity)
}
