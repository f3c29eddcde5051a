package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(n int) []ProcessedFrame {
	out := make([]ProcessedFrame, n)
	for i := range out {
		out[i] = ProcessedFrame{FrameNumber: i * 10, Image: "img"}
	}
	return out
}

func TestFrameNavigator(t *testing.T) {
	t.Run("next at last index is a no-op", func(t *testing.T) {
		nav := NewFrameNavigator(frames(3), 2)

		assert.False(t, nav.Next())
		assert.Equal(t, 2, nav.Index())
		assert.False(t, nav.HasNext())
	})

	t.Run("previous at zero is a no-op", func(t *testing.T) {
		nav := NewFrameNavigator(frames(3), 0)

		assert.False(t, nav.Previous())
		assert.Equal(t, 0, nav.Index())
		assert.False(t, nav.HasPrevious())
	})

	t.Run("steps within bounds", func(t *testing.T) {
		nav := NewFrameNavigator(frames(3), 0)

		assert.True(t, nav.Step(StepNext))
		assert.True(t, nav.Step(StepNext))
		assert.False(t, nav.Step(StepNext))
		assert.Equal(t, 2, nav.Index())

		frame, ok := nav.Current()
		require.True(t, ok)
		assert.Equal(t, 20, frame.FrameNumber)

		assert.True(t, nav.Step(StepPrevious))
		assert.Equal(t, 1, nav.Index())
		assert.False(t, nav.Step(""))
		assert.Equal(t, 1, nav.Index())
	})

	t.Run("clamps initial index", func(t *testing.T) {
		assert.Equal(t, 2, NewFrameNavigator(frames(3), 99).Index())
		assert.Equal(t, 0, NewFrameNavigator(frames(3), -5).Index())
	})

	t.Run("never leaves range under any step sequence", func(t *testing.T) {
		nav := NewFrameNavigator(frames(4), 1)
		steps := []string{StepNext, StepNext, StepNext, StepNext, StepPrevious, StepPrevious, StepPrevious, StepPrevious, StepPrevious, StepNext}

		for _, s := range steps {
			nav.Step(s)
			assert.GreaterOrEqual(t, nav.Index(), 0)
			assert.LessOrEqual(t, nav.Index(), nav.Len()-1)
		}
	})

	t.Run("empty sequence has no current frame", func(t *testing.T) {
		nav := NewFrameNavigator(nil, 3)

		_, ok := nav.Current()
		assert.False(t, ok)
		assert.Equal(t, 0, nav.Index())
		assert.False(t, nav.Next())
		assert.False(t, nav.Previous())
	})
}
