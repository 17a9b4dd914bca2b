package script

import (
	"context"
	"time"

	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/surface"
)

// Player replays a script in real time as scroll and resize events.
type Player struct {
	script   *Script
	viewport surface.Viewport
	interval time.Duration

	scroll chan sequence.Geometry
	resize chan surface.Viewport
}

// NewPlayer emits eventRate scroll events per second, starting from viewport.
func NewPlayer(s *Script, viewport surface.Viewport, eventRate int) *Player {
	if eventRate <= 0 {
		eventRate = 120
	}
	return &Player{
		script:   s,
		viewport: viewport,
		interval: time.Second / time.Duration(eventRate),
		scroll:   make(chan sequence.Geometry),
		resize:   make(chan surface.Viewport),
	}
}

func (p *Player) Scroll() <-chan sequence.Geometry { return p.scroll }
func (p *Player) Resize() <-chan surface.Viewport  { return p.resize }

// Run plays the script and closes both channels when it ends or ctx is done.
// Resizes falling between two ticks collapse into the latest one.
func (p *Player) Run(ctx context.Context) error {
	defer close(p.scroll)
	defer close(p.resize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	start := time.Now()
	vp := p.viewport
	end := p.script.Duration()

	var applied Resize
	for {
		t := time.Since(start).Seconds()

		if r, ok := p.script.ResizeAt(t); ok && r != applied {
			applied = r
			vp = r.Viewport(vp)
			select {
			case p.resize <- vp:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		g := sequence.GeometryForProgress(p.script.ProgressAt(t), float64(vp.Height))
		select {
		case p.scroll <- g:
		case <-ctx.Done():
			return ctx.Err()
		}

		if t >= end {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Viewport applies the resize to the current viewport, keeping its DPR when unset.
func (r Resize) Viewport(cur surface.Viewport) surface.Viewport {
	v := surface.Viewport{Width: r.Width, Height: r.Height, DevicePixelRatio: r.DPR}
	if v.DevicePixelRatio <= 0 {
		v.DevicePixelRatio = cur.DevicePixelRatio
	}
	return v
}
