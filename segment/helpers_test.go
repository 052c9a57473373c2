package segment

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	vmtest "github.com/teranos/vidmask/internal/testing"
	"github.com/teranos/vidmask/resolve"
)

const (
	genericTuning = "/res/tuning_generic.json"
	gpuTuning     = "/res/tuning_gpu.json"
	modelDir      = "/res/models"
)

func withHost(p Pipeline) Option {
	return func(o *options) { o.host = p }
}

// tierResolver maps each tier to its own file under /res
func tierResolver(tier resolve.Tier) (resolve.Paths, error) {
	if tier == resolve.TierDedicatedGPU {
		return resolve.Paths{TuningFile: gpuTuning, ModelDir: modelDir}, nil
	}
	return resolve.Paths{TuningFile: genericTuning, ModelDir: modelDir}, nil
}

func tuningFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	vmtest.WriteTuningFile(t, fs, genericTuning, `{}`)
	vmtest.WriteTuningFile(t, fs, gpuTuning, `{}`)
	return fs
}

func newPortable(t *testing.T, pipeline Pipeline, opts ...Option) (*Engine, *vmtest.FakeRuntime, afero.Fs) {
	t.Helper()
	fs := tuningFs(t)
	rt := vmtest.NewFakeRuntime()
	base := []Option{
		WithFs(fs),
		WithResolver(tierResolver),
		WithSessionID("test-session"),
		WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }),
	}
	e := New(pipeline, append(base, opts...)...)
	t.Cleanup(func() { e.Close() })
	return e, rt, fs
}

func newAccelerated(t *testing.T, rt *vmtest.FakeTextureRuntime, opts ...Option) (*Engine, afero.Fs) {
	t.Helper()
	fs := tuningFs(t)
	base := []Option{
		WithFs(fs),
		WithResolver(tierResolver),
		withHost(PipelineAcceleratedWindows),
		WithTextureRuntimeFactory(func() (infer.TextureRuntime, error) { return rt, nil }),
	}
	e := New(PipelineAcceleratedWindows, append(base, opts...)...)
	t.Cleanup(func() { e.Close() })
	return e, fs
}

func bgra(w, h int) []byte {
	return frame.Disc(w, h, w/2, h/2, h/4, frame.FormatBGRA)
}

func requireContractViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, errors.HasAssertionFailure(err), "panic was %v", err)
	}()
	fn()
}

func allU8(mask []uint8, v uint8) bool {
	for _, m := range mask {
		if m != v {
			return false
		}
	}
	return true
}
