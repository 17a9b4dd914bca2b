package sequence

import "math"

// Geometry is a snapshot of viewport and scroll container layout, in CSS pixels.
// ContainerTop is the container's top edge relative to the viewport top.
type Geometry struct {
	ViewportHeight  float64
	ContainerTop    float64
	ContainerHeight float64
}

// GeometryAt returns the layout for a container of the standard track height
// placed at containerOffset in the document, with the page scrolled to scrollY.
func GeometryAt(scrollY, containerOffset, viewportHeight float64) Geometry {
	return Geometry{
		ViewportHeight:  viewportHeight,
		ContainerTop:    containerOffset - scrollY,
		ContainerHeight: ContainerHeight(),
	}
}

// Progress is 0 while the container top is at or below the viewport bottom and
// 1 once the container bottom has passed the viewport top.
func Progress(g Geometry) float64 {
	den := g.ViewportHeight + g.ContainerHeight
	if den <= 0 {
		return 0
	}
	return clamp((g.ViewportHeight-g.ContainerTop)/den, 0, 1)
}

// Map converts layout into a playback state.
func Map(g Geometry) PlaybackState {
	return MapProgress(Progress(g))
}

// MapProgress converts scroll progress in [0,1] into a playback state.
func MapProgress(progress float64) PlaybackState {
	progress = clamp(progress, 0, 1)
	raw := int(math.Round(progress * TotalFrames))

	st := PlaybackState{Sequence: First, FrameIndex: raw, Opacity: 1}
	if raw >= Sequence1Frames {
		st.Sequence = Second
		st.FrameIndex = raw - Sequence1Frames
		if st.FrameIndex >= Sequence2Frames-1 {
			// pinned on the last frame, stays visible
			st.FrameIndex = Sequence2Frames - 1
			st.Opacity = 1
		}
	}

	st.FrameIndex = clampInt(st.FrameIndex, 0, Frames(st.Sequence)-1)
	return st
}

// RawFrame is the unsplit frame position for a progress value.
func RawFrame(progress float64) int {
	return int(math.Round(clamp(progress, 0, 1) * TotalFrames))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GeometryForProgress returns a layout of the standard track that yields progress p.
func GeometryForProgress(p, viewportHeight float64) Geometry {
	h := ContainerHeight()
	return Geometry{
		ViewportHeight:  viewportHeight,
		ContainerTop:    viewportHeight - clamp(p, 0, 1)*(viewportHeight+h),
		ContainerHeight: h,
	}
}
