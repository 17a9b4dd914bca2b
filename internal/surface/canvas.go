package surface

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/scrubber/internal/system"
)

// Canvas is a 2D drawing target with a backing store in device pixels and a
// scale from logical (CSS) pixels to device pixels.
type Canvas interface {
	Configure(width, height int, scale float64)
	Size() (width, height int)
	Scale() float64
	Fill(c color.Color)
	// DrawImage draws img stretched over the whole logical surface.
	DrawImage(img image.Image, alpha float64)
	FillRadial(g RadialGradient, alpha float64)
	// Snapshot returns the backing store; it is valid until the next draw call.
	Snapshot() *image.RGBA
}

// ColorStop is a gradient stop at Offset in [0,1].
type ColorStop struct {
	Offset float64
	Color  colorful.Color
	Alpha  float64
}

// RadialGradient is a two-circle gradient sharing one centre, in logical pixels.
// Falloff reshapes the interpolation parameter; nil is linear.
type RadialGradient struct {
	CX, CY  float64
	R0, R1  float64
	Stops   []ColorStop
	Falloff func(float64) float64
}

// RGBACanvas is a software Canvas over pooled *image.RGBA buffers.
type RGBACanvas struct {
	backing *image.RGBA
	scale   float64
	scaler  xdraw.Scaler
}

// NewRGBACanvas returns an unconfigured canvas. Drawing before Configure is a no-op.
func NewRGBACanvas() *RGBACanvas {
	return &RGBACanvas{scale: 1, scaler: xdraw.CatmullRom}
}

func (c *RGBACanvas) Configure(width, height int, scale float64) {
	if scale <= 0 {
		scale = 1
	}
	c.scale = scale
	if width <= 0 || height <= 0 {
		c.release()
		return
	}
	if c.backing != nil && c.backing.Rect.Dx() == width && c.backing.Rect.Dy() == height {
		return
	}
	c.release()
	c.backing = system.GetImage(image.Rect(0, 0, width, height))
}

func (c *RGBACanvas) release() {
	if c.backing != nil {
		system.PutImage(c.backing)
		c.backing = nil
	}
}

// Release returns the backing store to the pool.
func (c *RGBACanvas) Release() {
	c.release()
}

func (c *RGBACanvas) Size() (int, int) {
	if c.backing == nil {
		return 0, 0
	}
	return c.backing.Rect.Dx(), c.backing.Rect.Dy()
}

func (c *RGBACanvas) Scale() float64 {
	return c.scale
}

func (c *RGBACanvas) Snapshot() *image.RGBA {
	return c.backing
}

func (c *RGBACanvas) Fill(col color.Color) {
	if c.backing == nil {
		return
	}
	xdraw.Draw(c.backing, c.backing.Rect, image.NewUniform(col), image.Point{}, xdraw.Src)
}

func (c *RGBACanvas) DrawImage(img image.Image, alpha float64) {
	if c.backing == nil || img == nil || alpha <= 0 {
		return
	}
	// the logical surface times the scale transform covers the whole backing store
	dr := c.backing.Rect
	if alpha >= 1 {
		c.scaler.Scale(c.backing, dr, img, img.Bounds(), xdraw.Over, nil)
		return
	}

	scratch := system.GetImage(dr)
	defer system.PutImage(scratch)
	c.scaler.Scale(scratch, dr, img, img.Bounds(), xdraw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: alphaByte(alpha)})
	xdraw.DrawMask(c.backing, dr, scratch, dr.Min, mask, image.Point{}, xdraw.Over)
}

func (c *RGBACanvas) FillRadial(g RadialGradient, alpha float64) {
	if c.backing == nil || alpha <= 0 || len(g.Stops) == 0 {
		return
	}
	lut := gradientLUT(g, alpha)

	s := c.scale
	cx, cy := g.CX*s, g.CY*s
	r0, r1 := g.R0*s, g.R1*s
	span := r1 - r0

	b := c.backing
	for y := b.Rect.Min.Y; y < b.Rect.Max.Y; y++ {
		dy := float64(y) + 0.5 - cy
		row := b.Pix[b.PixOffset(b.Rect.Min.X, y):]
		for x := 0; x < b.Rect.Dx(); x++ {
			dx := float64(b.Rect.Min.X+x) + 0.5 - cx
			d := math.Sqrt(dx*dx + dy*dy)

			t := 0.0
			switch {
			case span <= 0:
				if d >= r1 {
					t = 1
				}
			default:
				t = (d - r0) / span
			}
			src := lut[int(math.Round(clamp01(t)*(lutSize-1)))]
			if src.A == 0 {
				continue
			}
			blendOver(row[x*4:x*4+4], src)
		}
	}
}

const lutSize = 256

// gradientLUT samples the stops into premultiplied colours with alpha folded in.
func gradientLUT(g RadialGradient, alpha float64) [lutSize]color.RGBA {
	var lut [lutSize]color.RGBA
	for i := range lut {
		t := float64(i) / (lutSize - 1)
		if g.Falloff != nil {
			t = clamp01(g.Falloff(t))
		}
		col, a := sampleStops(g.Stops, t)
		a = clamp01(a * alpha)
		r, gg, bb := col.Clamped().RGB255()
		lut[i] = color.RGBA{
			R: uint8(math.Round(float64(r) * a)),
			G: uint8(math.Round(float64(gg) * a)),
			B: uint8(math.Round(float64(bb) * a)),
			A: uint8(math.Round(255 * a)),
		}
	}
	return lut
}

func sampleStops(stops []ColorStop, t float64) (colorful.Color, float64) {
	if t <= stops[0].Offset {
		return stops[0].Color, stops[0].Alpha
	}
	for i := 0; i < len(stops)-1; i++ {
		s0, s1 := stops[i], stops[i+1]
		if t <= s1.Offset {
			f := 0.0
			if s1.Offset > s0.Offset {
				f = (t - s0.Offset) / (s1.Offset - s0.Offset)
			}
			return s0.Color.BlendRgb(s1.Color, f), s0.Alpha + (s1.Alpha-s0.Alpha)*f
		}
	}
	last := stops[len(stops)-1]
	return last.Color, last.Alpha
}

// blendOver composites a premultiplied src over one RGBA pixel.
func blendOver(dst []uint8, src color.RGBA) {
	inv := 255 - uint32(src.A)
	dst[0] = uint8(uint32(src.R) + (uint32(dst[0])*inv+127)/255)
	dst[1] = uint8(uint32(src.G) + (uint32(dst[1])*inv+127)/255)
	dst[2] = uint8(uint32(src.B) + (uint32(dst[2])*inv+127)/255)
	dst[3] = uint8(uint32(src.A) + (uint32(dst[3])*inv+127)/255)
}

func alphaByte(a float64) uint8 {
	return uint8(math.Round(clamp01(a) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
