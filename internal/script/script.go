package script

import (
	"fmt"

	"github.com/ivlev/scrubber/internal/easing"
)

// Script is a timed scroll performance over the scrubber track.
type Script struct {
	Version   string     `yaml:"version"`
	Name      string     `yaml:"name,omitempty"`
	Keyframes []Keyframe `yaml:"keyframes"`
	Resizes   []Resize   `yaml:"resizes,omitempty"`
}

// Keyframe pins scroll progress at a time. Ease shapes the segment that ends here.
type Keyframe struct {
	Time     float64 `yaml:"time"`     // seconds from start
	Progress float64 `yaml:"progress"` // 0..1 over the track
	Ease     string  `yaml:"ease,omitempty"`
}

// Resize changes the viewport at a time.
type Resize struct {
	Time   float64 `yaml:"time"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	DPR    float64 `yaml:"dpr,omitempty"`
}

// ScrollThrough returns a script that scrolls the whole track in duration seconds.
func ScrollThrough(duration float64) *Script {
	return &Script{
		Version: "1.0",
		Name:    "scroll-through",
		Keyframes: []Keyframe{
			{Time: 0, Progress: 0},
			{Time: duration, Progress: 1, Ease: "in-out-sine"},
		},
	}
}

// Duration is the time of the last keyframe or resize.
func (s *Script) Duration() float64 {
	d := 0.0
	for _, kf := range s.Keyframes {
		if kf.Time > d {
			d = kf.Time
		}
	}
	for _, r := range s.Resizes {
		if r.Time > d {
			d = r.Time
		}
	}
	return d
}

func (s *Script) Validate() error {
	if len(s.Keyframes) == 0 {
		return fmt.Errorf("script has no keyframes")
	}
	for i, kf := range s.Keyframes {
		if kf.Time < 0 {
			return fmt.Errorf("keyframe %d: negative time %.3f", i, kf.Time)
		}
		if i > 0 && kf.Time < s.Keyframes[i-1].Time {
			return fmt.Errorf("keyframe %d: time %.3f before previous keyframe", i, kf.Time)
		}
		if kf.Progress < 0 || kf.Progress > 1 {
			return fmt.Errorf("keyframe %d: progress %.3f outside [0,1]", i, kf.Progress)
		}
		if _, err := easing.Lookup(kf.Ease); err != nil {
			return fmt.Errorf("keyframe %d: %w", i, err)
		}
	}
	for i, r := range s.Resizes {
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("resize %d: invalid size %dx%d", i, r.Width, r.Height)
		}
		if i > 0 && r.Time < s.Resizes[i-1].Time {
			return fmt.Errorf("resize %d: time %.3f before previous resize", i, r.Time)
		}
	}
	return nil
}
