package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sequence identifies one of the two frame sequences.
type Sequence int

const (
	First  Sequence = 1
	Second Sequence = 2
)

const (
	Sequence1Frames = 240
	Sequence2Frames = 240
	TotalFrames     = Sequence1Frames + Sequence2Frames

	// ScrollHeightMultiplier is the number of scroll pixels per frame advance.
	ScrollHeightMultiplier = 12
	// ContainerPadding is extra track height so content after the scrubber stays reachable.
	ContainerPadding = 800

	PrefetchAhead = 8

	PreloadStart = 0
	PreloadEnd   = 10

	ScrollThrottle = 16 * time.Millisecond
)

var ErrBadLocator = errors.New("bad frame locator")

// Frames returns the frame count of s, or 0 for an unknown sequence.
func Frames(s Sequence) int {
	switch s {
	case First:
		return Sequence1Frames
	case Second:
		return Sequence2Frames
	default:
		return 0
	}
}

// ContainerHeight is the scroll track height in CSS pixels.
func ContainerHeight() float64 {
	return float64(TotalFrames*ScrollHeightMultiplier + ContainerPadding)
}

func (s Sequence) Valid() bool {
	return s == First || s == Second
}

func (s Sequence) String() string {
	return "Sequence" + strconv.Itoa(int(s))
}

// FrameKey addresses a single frame image.
type FrameKey struct {
	Sequence Sequence
	Index    int
}

// Locator returns the asset path of the frame, e.g. /Sequence1/ezgif-frame-001.jpg.
func (k FrameKey) Locator() string {
	return fmt.Sprintf("/Sequence%d/ezgif-frame-%03d.jpg", int(k.Sequence), k.Index+1)
}

// ParseLocator is the inverse of FrameKey.Locator.
func ParseLocator(locator string) (FrameKey, error) {
	rest, ok := strings.CutPrefix(locator, "/Sequence")
	if !ok {
		return FrameKey{}, fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	seqPart, file, ok := strings.Cut(rest, "/")
	if !ok {
		return FrameKey{}, fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	seq, err := strconv.Atoi(seqPart)
	if err != nil || !Sequence(seq).Valid() {
		return FrameKey{}, fmt.Errorf("%w: unknown sequence in %q", ErrBadLocator, locator)
	}

	num, ok := strings.CutPrefix(file, "ezgif-frame-")
	if !ok {
		return FrameKey{}, fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	num, ok = strings.CutSuffix(num, ".jpg")
	if !ok || len(num) < 3 {
		return FrameKey{}, fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > Frames(Sequence(seq)) {
		return FrameKey{}, fmt.Errorf("%w: frame out of range in %q", ErrBadLocator, locator)
	}

	return FrameKey{Sequence: Sequence(seq), Index: n - 1}, nil
}

// PlaybackState is what the render loop should show.
type PlaybackState struct {
	Sequence   Sequence `json:"sequence"`
	FrameIndex int      `json:"frameIndex"`
	Opacity    float64  `json:"opacity"`
}

// Initial is the state before any scroll event has been handled.
func Initial() PlaybackState {
	return PlaybackState{Sequence: First, FrameIndex: 0, Opacity: 1}
}

func (s PlaybackState) Key() FrameKey {
	return FrameKey{Sequence: s.Sequence, Index: s.FrameIndex}
}

// Pinned reports the terminal state: last frame of the second sequence.
func (s PlaybackState) Pinned() bool {
	return s.Sequence == Second && s.FrameIndex == Sequence2Frames-1
}

// Visible reports whether the canvas layer sits above the page content.
func (s PlaybackState) Visible() bool {
	return s.Opacity > 0.01
}
