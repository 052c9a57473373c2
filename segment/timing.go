package segment

import (
	"sync"
	"time"
)

// FrameTimer measures one processing cycle for up to two engines.
//
//	defer segment.StartFrameTimer(primary, secondary).Stop()
//
// Stop records on every exit path of the enclosing function, including a
// panic unwinding through it.
type FrameTimer struct {
	start     time.Time
	primary   *Engine
	secondary *Engine
	once      sync.Once
	elapsed   time.Duration
}

// StartFrameTimer starts timing. Either engine may be nil.
func StartFrameTimer(primary, secondary *Engine) *FrameTimer {
	return &FrameTimer{start: time.Now(), primary: primary, secondary: secondary}
}

// Stop records the elapsed time on each non-nil engine exactly once and
// returns it. Later calls return the first measurement.
func (t *FrameTimer) Stop() time.Duration {
	t.once.Do(func() {
		t.elapsed = time.Since(t.start)
		if t.primary != nil {
			t.primary.SetLastFrameProcDuration(t.elapsed)
		}
		if t.secondary != nil && t.secondary != t.primary {
			t.secondary.SetLastFrameProcDuration(t.elapsed)
		}
	})
	return t.elapsed
}
