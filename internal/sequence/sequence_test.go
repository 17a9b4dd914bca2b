package sequence

import (
	"errors"
	"testing"
	"time"
)

func TestMapProgressScenarios(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		want     PlaybackState
	}{
		{"start", 0, PlaybackState{First, 0, 1}},
		{"middle of first", 0.25, PlaybackState{First, 120, 1}},
		{"sequence boundary", 0.5, PlaybackState{Second, 0, 1}},
		{"just before end", 0.999, PlaybackState{Second, 239, 1}},
		{"end", 1, PlaybackState{Second, 239, 1}},
		{"below range", -3, PlaybackState{First, 0, 1}},
		{"above range", 7, PlaybackState{Second, 239, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapProgress(tt.progress)
			if got != tt.want {
				t.Errorf("MapProgress(%v) = %+v, want %+v", tt.progress, got, tt.want)
			}
		})
	}
}

func TestProgressBounds(t *testing.T) {
	vh := 900.0
	h := ContainerHeight()

	// container top at the viewport bottom: not engaged yet
	if p := Progress(Geometry{ViewportHeight: vh, ContainerTop: vh, ContainerHeight: h}); p != 0 {
		t.Errorf("expected 0 at engagement, got %f", p)
	}
	if p := Progress(Geometry{ViewportHeight: vh, ContainerTop: vh + 500, ContainerHeight: h}); p != 0 {
		t.Errorf("expected 0 below the fold, got %f", p)
	}
	// container bottom at the viewport top
	if p := Progress(Geometry{ViewportHeight: vh, ContainerTop: -h, ContainerHeight: h}); p != 1 {
		t.Errorf("expected 1 when scrolled through, got %f", p)
	}
	if p := Progress(Geometry{}); p != 0 {
		t.Errorf("expected 0 for empty geometry, got %f", p)
	}
}

func TestMapMonotonicAndPinned(t *testing.T) {
	vh := 800.0
	prevRaw := -1
	pinned := false

	for scrollY := 0.0; scrollY <= ContainerHeight()+2*vh; scrollY += 7 {
		g := GeometryAt(scrollY, vh, vh)
		raw := RawFrame(Progress(g))
		if raw < prevRaw {
			t.Fatalf("raw frame decreased at scrollY=%.0f: %d -> %d", scrollY, prevRaw, raw)
		}
		prevRaw = raw

		st := Map(g)
		if st.FrameIndex < 0 || st.FrameIndex >= Frames(st.Sequence) {
			t.Fatalf("frame index out of range at scrollY=%.0f: %+v", scrollY, st)
		}
		if pinned {
			if !st.Pinned() || st.Opacity != 1 {
				t.Fatalf("left pinned state at scrollY=%.0f: %+v", scrollY, st)
			}
		}
		if st.Pinned() {
			pinned = true
		}
	}

	if !pinned {
		t.Error("expected to reach the pinned state")
	}
}

func TestLocator(t *testing.T) {
	tests := []struct {
		key  FrameKey
		want string
	}{
		{FrameKey{First, 0}, "/Sequence1/ezgif-frame-001.jpg"},
		{FrameKey{First, 41}, "/Sequence1/ezgif-frame-042.jpg"},
		{FrameKey{Second, 239}, "/Sequence2/ezgif-frame-240.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.key.Locator(); got != tt.want {
				t.Errorf("Locator() = %s, want %s", got, tt.want)
			}
			back, err := ParseLocator(tt.want)
			if err != nil {
				t.Fatalf("ParseLocator failed: %v", err)
			}
			if back != tt.key {
				t.Errorf("ParseLocator(%s) = %+v, want %+v", tt.want, back, tt.key)
			}
		})
	}
}

func TestParseLocatorRejects(t *testing.T) {
	bad := []string{
		"",
		"/Sequence3/ezgif-frame-001.jpg",
		"/Sequence1/ezgif-frame-000.jpg",
		"/Sequence1/ezgif-frame-241.jpg",
		"/Sequence1/frame-001.jpg",
		"/Sequence1/ezgif-frame-001.png",
		"/SequenceX/ezgif-frame-001.jpg",
		"/Sequence1",
	}
	for _, loc := range bad {
		if _, err := ParseLocator(loc); !errors.Is(err, ErrBadLocator) {
			t.Errorf("ParseLocator(%q): expected ErrBadLocator, got %v", loc, err)
		}
	}
}

func TestThrottle(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	th := NewThrottle(ScrollThrottle, clock)

	if !th.Allow() {
		t.Fatal("first call should pass")
	}
	if th.Allow() {
		t.Error("immediate second call should be throttled")
	}

	clock.Advance(ScrollThrottle)
	if th.Allow() {
		t.Error("call exactly at the interval should be throttled")
	}

	clock.Advance(time.Millisecond)
	if !th.Allow() {
		t.Error("call after the interval should pass")
	}
}

func TestVisible(t *testing.T) {
	if !Initial().Visible() {
		t.Error("initial state should be visible")
	}
	if (PlaybackState{Sequence: First, Opacity: 0.005}).Visible() {
		t.Error("near-zero opacity should be hidden")
	}
}

func TestGeometryForProgress(t *testing.T) {
	for _, p := range []float64{0, 0.1, 0.5, 0.75, 1} {
		got := Progress(GeometryForProgress(p, 720))
		if d := got - p; d > 1e-9 || d < -1e-9 {
			t.Errorf("Progress(GeometryForProgress(%v)) = %v", p, got)
		}
	}
}
