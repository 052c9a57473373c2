package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/vidmask/frame"
)

func TestFrameTimerRecordsOnce(t *testing.T) {
	a, _, _ := newPortable(t, PipelinePortableCPU)
	b, _, _ := newPortable(t, PipelinePortableCPU)
	a.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	b.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	timer := StartFrameTimer(a, b)
	first := timer.Stop()
	second := timer.Stop()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, a.Stats().Count)
	assert.Equal(t, 1, b.Stats().Count)
}

func TestFrameTimerSameEngineTwice(t *testing.T) {
	a, _, _ := newPortable(t, PipelinePortableCPU)
	a.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	StartFrameTimer(a, a).Stop()
	assert.Equal(t, 1, a.Stats().Count)
}

func TestFrameTimerNilEngines(t *testing.T) {
	assert.NotPanics(t, func() {
		StartFrameTimer(nil, nil).Stop()
	})
}

func TestFrameTimerRecordsOnPanic(t *testing.T) {
	a, _, _ := newPortable(t, PipelinePortableCPU)

	func() {
		defer func() { _ = recover() }()
		defer StartFrameTimer(a, nil).Stop()
		a.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
		time.Sleep(time.Millisecond)
		panic("consumer failure")
	}()

	stats := a.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.GreaterOrEqual(t, stats.Last, time.Millisecond)
}
