package segment

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	vmtest "github.com/teranos/vidmask/internal/testing"
	"github.com/teranos/vidmask/resolve"
)

func TestTuningNotifierDebounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	var calls atomic.Int32
	n, err := NewTuningNotifier(path, 50*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	n.Start()
	defer n.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"smoothing": 0.1}`), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	assert.NoError(t, n.Stop())
	assert.NoError(t, n.Stop())
}

func TestEngineWatchTuningFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	rt := vmtest.NewFakeRuntime()
	e := New(PipelinePortableCPU,
		WithFs(afero.NewOsFs()),
		WithResolver(resolve.Static(resolve.Paths{TuningFile: path, ModelDir: dir})),
		WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }))
	defer e.Close()
	require.True(t, e.Initialized())

	_, err := e.WatchTuningFile(20 * time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"invert": true}`), 0644))
	assert.Eventually(t, func() bool { return e.Snapshot().Dirty }, 2*time.Second, 10*time.Millisecond)
}

func TestTuningNotifierSetPathReArms(t *testing.T) {
	oldPath := filepath.Join(t.TempDir(), "tuning.json")
	newPath := filepath.Join(t.TempDir(), "tuning_gpu.json")
	require.NoError(t, os.WriteFile(oldPath, []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(newPath, []byte(`{}`), 0644))

	var calls atomic.Int32
	n, err := NewTuningNotifier(oldPath, 20*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	n.Start()
	defer n.Stop()

	require.NoError(t, n.SetPath(newPath))
	assert.Equal(t, newPath, n.Path())
	require.NoError(t, n.SetPath(newPath))

	require.NoError(t, os.WriteFile(newPath, []byte(`{"smoothing": 0.2}`), 0644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestEngineNotifierFollowsResolvedFile(t *testing.T) {
	genericPath := filepath.Join(t.TempDir(), "tuning.json")
	overridePath := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(genericPath, []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(overridePath, []byte(`{}`), 0644))

	var useOverride atomic.Bool
	resolver := func(resolve.Tier) (resolve.Paths, error) {
		if useOverride.Load() {
			return resolve.Paths{TuningFile: overridePath, ModelDir: filepath.Dir(overridePath)}, nil
		}
		return resolve.Paths{TuningFile: genericPath, ModelDir: filepath.Dir(genericPath)}, nil
	}

	rt := vmtest.NewFakeRuntime()
	e := New(PipelinePortableCPU,
		WithFs(afero.NewOsFs()),
		WithResolver(resolver),
		WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }))
	defer e.Close()
	require.True(t, e.Initialized())

	n, err := e.WatchTuningFile(20 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, genericPath, n.Path())

	useOverride.Store(true)
	e.MarkConfigDirty()
	e.SegmentFrame(bgra(8, 4), 8, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	require.Equal(t, overridePath, e.TuningFile())
	assert.Equal(t, overridePath, n.Path())
	require.False(t, e.Snapshot().Dirty)

	require.NoError(t, os.WriteFile(overridePath, []byte(`{"invert": true}`), 0644))
	assert.Eventually(t, func() bool { return e.Snapshot().Dirty }, 2*time.Second, 10*time.Millisecond)
}
