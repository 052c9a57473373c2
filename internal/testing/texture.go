package testing

import (
	"sync"

	"github.com/teranos/vidmask/infer"
)

// ConfigureCall records one ConfigureFile call
type ConfigureCall struct {
	TuningPath string
	ModelDir   string
}

// FakeTextureRuntime is a scriptable infer.TextureRuntime
type FakeTextureRuntime struct {
	mu sync.Mutex

	VersionString string
	ConfigureErr  error
	ApplyErr      error
	Status        infer.Status
	DedicatedGPU  bool
	Traits        infer.ModelTraits

	configures []ConfigureCall
	applied    []infer.Params
	frames     []frameCall
	restarts   []int
	closed     bool
}

type frameCall struct {
	in, out infer.TextureHandle
}

// NewFakeTextureRuntime returns a fake reporting success for every frame
func NewFakeTextureRuntime() *FakeTextureRuntime {
	return &FakeTextureRuntime{Traits: infer.ModelTraits{Width: 512, Height: 288, SpecIndex: 2}}
}

func (f *FakeTextureRuntime) Version() string {
	if f.VersionString == "" {
		return FakeVersion
	}
	return f.VersionString
}

func (f *FakeTextureRuntime) ConfigureFile(tuningPath, modelDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configures = append(f.configures, ConfigureCall{TuningPath: tuningPath, ModelDir: modelDir})
	return f.ConfigureErr
}

func (f *FakeTextureRuntime) Apply(p infer.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, p)
	return f.ApplyErr
}

func (f *FakeTextureRuntime) NextFrame(in, out infer.TextureHandle) infer.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frameCall{in: in, out: out})
	return f.Status
}

func (f *FakeTextureRuntime) ModelTraits() infer.ModelTraits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Traits
}

func (f *FakeTextureRuntime) Restart(specIndex int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, specIndex)
	return true
}

func (f *FakeTextureRuntime) HasDedicatedGPUMemory() bool {
	return f.DedicatedGPU
}

func (f *FakeTextureRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetConfigureErr changes the error returned by ConfigureFile
func (f *FakeTextureRuntime) SetConfigureErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfigureErr = err
}

// Configures returns every ConfigureFile call
func (f *FakeTextureRuntime) Configures() []ConfigureCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ConfigureCall(nil), f.configures...)
}

// Applied returns every Apply call
func (f *FakeTextureRuntime) Applied() []infer.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]infer.Params(nil), f.applied...)
}

// Frames returns the number of NextFrame calls
func (f *FakeTextureRuntime) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// Closed reports whether Close was called
func (f *FakeTextureRuntime) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
