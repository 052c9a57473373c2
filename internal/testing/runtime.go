package testing

import (
	"sync"

	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
)

// FakeVersion is reported by fakes unless overridden
const FakeVersion = "1.2.0"

// FakeRuntime is a scriptable infer.Runtime. Every successful NextFrame
// fills the whole mask with the frame number (1, 2, ...) as a uint8, or
// frame/255 as a float, so tests can tell masks apart.
type FakeRuntime struct {
	mu sync.Mutex

	VersionString string
	ConfigureErr  error
	Traits        infer.ModelTraits
	// FailFrames makes NextFrame report failure without writing.
	FailFrames bool
	// FailRestart makes Restart report failure.
	FailRestart bool

	configures []infer.Settings
	restarts   []int
	frames     int
	lastPrev   []float32
	closed     bool
}

// NewFakeRuntime returns a fake with a 256x144 model
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{Traits: infer.ModelTraits{Width: 256, Height: 144, SpecIndex: 1}}
}

func (f *FakeRuntime) Version() string {
	if f.VersionString == "" {
		return FakeVersion
	}
	return f.VersionString
}

func (f *FakeRuntime) Configure(s infer.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configures = append(f.configures, s)
	return f.ConfigureErr
}

func (f *FakeRuntime) NextFrame(in frame.View, prev, cur infer.MaskTarget) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFrames {
		return false, false
	}
	f.frames++
	f.lastPrev = f.lastPrev[:0]
	for i := 0; i < prev.Len(); i++ {
		f.lastPrev = append(f.lastPrev, prev.At(i))
	}
	v := float32(f.frames%256) / 255
	for i := 0; i < cur.Len(); i++ {
		cur.Set(i, v)
	}
	return true, true
}

func (f *FakeRuntime) ModelTraits() infer.ModelTraits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Traits
}

func (f *FakeRuntime) Restart(specIndex int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, specIndex)
	return !f.FailRestart
}

func (f *FakeRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetFailRestart toggles restart failure
func (f *FakeRuntime) SetFailRestart(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailRestart = fail
}

// Configures returns the settings of every Configure call
func (f *FakeRuntime) Configures() []infer.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]infer.Settings(nil), f.configures...)
}

// Restarts returns the spec index of every Restart call
func (f *FakeRuntime) Restarts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.restarts...)
}

// Frames returns the number of successful NextFrame calls
func (f *FakeRuntime) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// LastPrev returns the previous mask handed to the last NextFrame, as [0,1]
func (f *FakeRuntime) LastPrev() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float32(nil), f.lastPrev...)
}

// Closed reports whether Close was called
func (f *FakeRuntime) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
