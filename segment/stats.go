package segment

import (
	"sync"
	"time"
)

// FrameStats aggregates recorded per-frame processing durations
type FrameStats struct {
	Count int
	Last  time.Duration
	Max   time.Duration
	Total time.Duration
}

// Mean returns Total/Count, zero when nothing was recorded
func (s FrameStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type frameStats struct {
	mu sync.Mutex
	s  FrameStats
}

func (f *frameStats) record(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Count++
	f.s.Last = d
	f.s.Total += d
	if d > f.s.Max {
		f.s.Max = d
	}
}

func (f *frameStats) snapshot() FrameStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}
