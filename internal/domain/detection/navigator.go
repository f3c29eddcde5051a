package detection

import "github.com/astroguard/backend/internal/domain/shared"

// ErrNoFrames is returned when a video analysis has no processed frames to show
var ErrNoFrames = shared.NewDomainError("NO_FRAMES", "Video analysis has no processed frames")

// FrameNavigator steps through processed video frames. The index is always
// clamped to [0, len-1]; stepping past either end is a no-op.
type FrameNavigator struct {
	frames []ProcessedFrame
	index  int
}

// NewFrameNavigator creates a navigator positioned at index, clamped to the frame range
func NewFrameNavigator(frames []ProcessedFrame, index int) *FrameNavigator {
	n := &FrameNavigator{frames: frames}
	n.index = n.clamp(index)
	return n
}

func (n *FrameNavigator) clamp(index int) int {
	if index >= len(n.frames) {
		index = len(n.frames) - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

// Len returns the number of frames
func (n *FrameNavigator) Len() int { return len(n.frames) }

// Index returns the current position
func (n *FrameNavigator) Index() int { return n.index }

// HasNext reports whether Next would move
func (n *FrameNavigator) HasNext() bool { return n.index < len(n.frames)-1 }

// HasPrevious reports whether Previous would move
func (n *FrameNavigator) HasPrevious() bool { return n.index > 0 }

// Next advances by one frame unless already at the last frame. It reports whether the index moved.
func (n *FrameNavigator) Next() bool {
	if !n.HasNext() {
		return false
	}
	n.index++
	return true
}

// Previous steps back by one frame unless already at the first frame. It reports whether the index moved.
func (n *FrameNavigator) Previous() bool {
	if !n.HasPrevious() {
		return false
	}
	n.index--
	return true
}

// Current returns the frame at the current index; ok is false when there are no frames
func (n *FrameNavigator) Current() (frame ProcessedFrame, ok bool) {
	if len(n.frames) == 0 {
		return ProcessedFrame{}, false
	}
	return n.frames[n.index], true
}

// Step applies a named move: "next", "previous" or "" (stay)
func (n *FrameNavigator) Step(step string) bool {
	switch step {
	case StepNext:
		return n.Next()
	case StepPrevious:
		return n.Previous()
	default:
		return false
	}
}

// Navigation steps accepted by Step
const (
	StepNext     = "next"
	StepPrevious = "previous"
)
