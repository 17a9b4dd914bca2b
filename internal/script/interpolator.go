package script

import "github.com/ivlev/scrubber/internal/easing"

// ProgressAt interpolates scroll progress at time t. Before the first keyframe
// and after the last the nearest keyframe holds.
func (s *Script) ProgressAt(t float64) float64 {
	kfs := s.Keyframes
	if len(kfs) == 0 {
		return 0
	}
	if t <= kfs[0].Time {
		return kfs[0].Progress
	}
	last := kfs[len(kfs)-1]
	if t >= last.Time {
		return last.Progress
	}

	var prev, next Keyframe
	for i := 0; i < len(kfs)-1; i++ {
		if t >= kfs[i].Time && t < kfs[i+1].Time {
			prev, next = kfs[i], kfs[i+1]
			break
		}
	}

	span := next.Time - prev.Time
	if span <= 0 {
		return next.Progress
	}
	f := (t - prev.Time) / span

	fn, err := easing.Lookup(next.Ease)
	if err != nil {
		fn, _ = easing.Lookup("linear")
	}
	return lerp(prev.Progress, next.Progress, fn(f))
}

// ResizeAt returns the last resize at or before t.
func (s *Script) ResizeAt(t float64) (Resize, bool) {
	var cur Resize
	found := false
	for _, r := range s.Resizes {
		if r.Time > t {
			break
		}
		cur, found = r, true
	}
	return cur, found
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
