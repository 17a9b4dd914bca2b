package effects

import (
	"image/color"
	"testing"

	"github.com/ivlev/scrubber/internal/easing"
	"github.com/ivlev/scrubber/internal/surface"
)

func TestVignetteDarkensCorners(t *testing.T) {
	c := surface.NewRGBACanvas()
	c.Configure(320, 180, 2)
	c.Fill(color.White)

	NewVignette(nil).Apply(c, 1)

	img := c.Snapshot()
	centre := img.RGBAAt(160, 90)
	corner := img.RGBAAt(0, 0)
	if centre.R != 255 {
		t.Errorf("centre should be untouched, got %v", centre)
	}
	// 25% black at most: 255 * 0.75
	if corner.R >= 255 || corner.R < 185 {
		t.Errorf("corner should be darkened by at most 25%%, got %v", corner)
	}
}

func TestVignetteOpacity(t *testing.T) {
	full := surface.NewRGBACanvas()
	full.Configure(100, 100, 1)
	full.Fill(color.White)
	NewVignette(nil).Apply(full, 1)

	half := surface.NewRGBACanvas()
	half.Configure(100, 100, 1)
	half.Fill(color.White)
	NewVignette(nil).Apply(half, 0.5)

	if half.Snapshot().RGBAAt(0, 0).R <= full.Snapshot().RGBAAt(0, 0).R {
		t.Error("lower opacity should darken less")
	}

	none := surface.NewRGBACanvas()
	none.Configure(100, 100, 1)
	none.Fill(color.White)
	NewVignette(nil).Apply(none, 0)
	if none.Snapshot().RGBAAt(0, 0).R != 255 {
		t.Error("zero opacity should leave the frame untouched")
	}
}

func TestChainAndFalloff(t *testing.T) {
	in, err := easing.Lookup("in-cubic")
	if err != nil {
		t.Fatal(err)
	}

	linear := surface.NewRGBACanvas()
	linear.Configure(200, 100, 1)
	linear.Fill(color.White)
	Chain{NewVignette(nil)}.Apply(linear, 1)

	eased := surface.NewRGBACanvas()
	eased.Configure(200, 100, 1)
	eased.Fill(color.White)
	Chain{NewVignette(in)}.Apply(eased, 1)

	// in-cubic stays lighter in the middle of the ramp
	if eased.Snapshot().RGBAAt(190, 50).R <= linear.Snapshot().RGBAAt(190, 50).R {
		t.Error("expected in-cubic falloff to be lighter mid-ramp")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		names   []string
		want    int
		wantErr bool
	}{
		{[]string{"vignette"}, 1, false},
		{[]string{"vignette", "vignette"}, 2, false},
		{nil, 0, false},
		{[]string{"bloom"}, 0, true},
	}

	for _, tt := range tests {
		ch, err := New(tt.names, nil)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%v): expected error", tt.names)
			}
			continue
		}
		if err != nil || len(ch) != tt.want {
			t.Errorf("New(%v) = %d effects, %v; want %d", tt.names, len(ch), err, tt.want)
		}
	}

	// an empty chain paints nothing
	c := surface.NewRGBACanvas()
	c.Configure(40, 20, 1)
	c.Fill(color.White)
	Chain{}.Apply(c, 1)
	if got := c.Snapshot().RGBAAt(0, 0); got.R != 255 {
		t.Errorf("empty chain changed the frame: %v", got)
	}
}
