package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	vmtest "github.com/teranos/vidmask/internal/testing"
	"github.com/teranos/vidmask/resolve"
)

func TestPortableFirstFrame(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	require.True(t, e.Initialized())

	e.SegmentFrame(bgra(640, 480), 640, 480, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	assert.True(t, e.HasNewMask())
	mask := e.Uint8Mask()
	assert.Len(t, mask, 640*480)
	assert.True(t, allU8(mask, 1))
	assert.Equal(t, 1, rt.Frames())

	w, h := e.CurrentModelSize()
	assert.Equal(t, 256, w)
	assert.Equal(t, 144, h)
}

func TestPortableConfiguresGenericTier(t *testing.T) {
	_, rt, _ := newPortable(t, PipelinePortableCPU)

	cfg := rt.Configures()
	require.Len(t, cfg, 1)
	assert.Equal(t, genericTuning, cfg[0].TuningFile)
	assert.Equal(t, modelDir, cfg[0].ModelDir)
	assert.Equal(t, infer.DefaultSpecIndex, cfg[0].SpecIndex)
	assert.False(t, cfg[0].AlphaPassthrough)
}

func TestPortableGPUPassesAlphaThrough(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableGPU)
	require.True(t, e.Initialized())
	assert.True(t, rt.Configures()[0].AlphaPassthrough)
}

func TestGeometryChangeRestarts(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(640, 480), 640, 480, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	e.SegmentFrame(bgra(1280, 720), 1280, 720, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	assert.Equal(t, []int{1}, rt.Restarts(), "restart preserves the spec index")
	assert.True(t, e.HasNewMask())
	assert.Len(t, e.Uint8Mask(), 1280*720)
	assert.Equal(t, 2, e.buf.allocations)
}

func TestRestartFailureKeepsPreviousMask(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(640, 480), 640, 480, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	rt.SetFailRestart(true)

	e.SegmentFrame(bgra(1280, 720), 1280, 720, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	assert.False(t, e.HasNewMask())
	mask := e.Uint8Mask()
	assert.Len(t, mask, 640*480)
	assert.True(t, allU8(mask, 1))
	assert.Equal(t, 1, rt.Frames(), "frame dropped")
	assert.Equal(t, 1, e.buf.allocations)

	// Engine stays usable and retries on the next mismatch.
	rt.SetFailRestart(false)
	e.SegmentFrame(bgra(1280, 720), 1280, 720, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	assert.True(t, e.HasNewMask())
	assert.Len(t, e.Uint8Mask(), 1280*720)
}

func TestReallocationOnlyOnTripleChange(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)

	steps := []struct {
		w, h   int
		format frame.PixelFormat
		allocs int
	}{
		{64, 48, frame.FormatBGRA, 1},
		{64, 48, frame.FormatBGRA, 1},
		{64, 48, frame.FormatI420A, 2},
		{64, 48, frame.FormatI420A, 2},
		{32, 48, frame.FormatI420A, 3},
		{32, 24, frame.FormatI420A, 4},
		{32, 24, frame.FormatBGRA, 5},
		{32, 24, frame.FormatBGRA, 5},
	}
	for i, s := range steps {
		raw := frame.Disc(s.w, s.h, s.w/2, s.h/2, s.h/4, s.format)
		e.SegmentFrame(raw, s.w, s.h, s.format, ModeSilhouette, MaskUint8)
		assert.Equal(t, s.allocs, e.buf.allocations, "step %d", i)
		assert.Len(t, e.Uint8Mask(), s.w*s.h, "step %d", i)
	}
	assert.Len(t, rt.Restarts(), 4)
}

func TestPlanarInputIsConverted(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	raw := frame.Disc(32, 24, 16, 12, 6, frame.FormatI420A)

	e.SegmentFrame(raw, 32, 24, frame.FormatI420A, ModeSilhouette, MaskUint8)

	assert.Len(t, e.buf.convert, frame.ExpectedSize(32, 24, frame.FormatBGRA))
	assert.True(t, e.HasNewMask())
	assert.Equal(t, 1, rt.Frames())

	e2, _, _ := newPortable(t, PipelinePortableCPU)
	e2.SegmentFrame(bgra(32, 24), 32, 24, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	assert.Nil(t, e2.buf.convert, "single-plane input needs no conversion buffer")
}

func TestModeNoneIsNoOp(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)

	e.SegmentFrame(bgra(64, 48), 64, 48, frame.FormatBGRA, ModeNone, MaskUint8)

	assert.Equal(t, 0, rt.Frames())
	assert.False(t, e.HasNewMask())
	assert.Len(t, e.Uint8Mask(), 64*48, "buffers are still allocated")
	assert.Equal(t, 1, e.buf.allocations)
}

func TestCleanNewMaskFlag(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(64, 48), 64, 48, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	before := e.Uint8Mask()

	e.CleanNewMaskFlag()

	assert.False(t, e.HasNewMask())
	after := e.Uint8Mask()
	assert.Same(t, &before[0], &after[0])
	assert.True(t, allU8(after, 1))

	e.CleanNewMaskFlag()
	assert.False(t, e.HasNewMask())
	assert.Same(t, &before[0], &e.Uint8Mask()[0], "clearing twice changes nothing")
}

func TestSwapHandsPreviousMaskToBackend(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	first := append([]uint8(nil), e.Uint8Mask()...)

	// No acknowledgement: the engine swaps itself.
	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	prev := rt.LastPrev()
	require.Len(t, prev, 64)
	for i, v := range prev {
		assert.Equal(t, float32(first[i])/255, v)
	}
	assert.Equal(t, first, e.buf.previous.U8)
	assert.True(t, allU8(e.Uint8Mask(), 2))
}

func TestSwapAfterAcknowledge(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	e.CleanNewMaskFlag()

	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	for _, v := range rt.LastPrev() {
		assert.Equal(t, float32(1)/255, v)
	}
	assert.True(t, allU8(e.Uint8Mask(), 2))
}

func TestInferenceFailureKeepsLastMask(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	rt.FailFrames = true

	e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskUint8)

	assert.False(t, e.HasNewMask())
	assert.True(t, allU8(e.Uint8Mask(), 1))
}

func TestFloatMasks(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(8, 4), 8, 4, frame.FormatBGRA, ModeSilhouette, MaskFloat32)

	mask := e.Float32Mask()
	require.Len(t, mask, 32)
	assert.InDelta(t, 1.0/255, mask[0], 1e-6)

	opaque := e.OpaqueFloat32Mask()
	require.Len(t, opaque, 32)
	for _, v := range opaque {
		assert.Equal(t, float32(1), v)
	}
}

func TestOpaqueMask(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(8, 4), 8, 4, frame.FormatBGRA, ModeNone, MaskUint8)

	assert.True(t, allU8(e.OpaqueMask(), 255))
	assert.Len(t, e.OpaqueMask(), 32)
}

func TestOpaqueMaskBeforeAllocation(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)

	assert.Nil(t, e.OpaqueMask())
	assert.Nil(t, e.OpaqueFloat32Mask())

	e.SegmentFrame(bgra(8, 4), 8, 4, frame.FormatBGRA, ModeNone, MaskFloat32)
	assert.Len(t, e.OpaqueFloat32Mask(), 32)
	requireContractViolation(t, func() { e.OpaqueMask() })
}

func TestContractViolations(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)

	requireContractViolation(t, func() { e.Uint8Mask() })
	requireContractViolation(t, func() {
		e.SegmentFrame(nil, 0, 480, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	})
	requireContractViolation(t, func() {
		e.SegmentFrame(make([]byte, 16), 2, 2, frame.PixelFormat(9), ModeSilhouette, MaskUint8)
	})
	requireContractViolation(t, func() {
		e.SegmentFrame(make([]byte, 10), 2, 2, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	})

	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	requireContractViolation(t, func() { e.Float32Mask() })
	requireContractViolation(t, func() { e.OpaqueFloat32Mask() })
	requireContractViolation(t, func() {
		e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskFloat32)
	})
	requireContractViolation(t, func() {
		e.SegmentFrame(bgra(8, 8), 8, 8, frame.FormatBGRA, ModeSilhouette, MaskFloat32)
	})
}

func TestStartupFailure(t *testing.T) {
	t.Run("resolution", func(t *testing.T) {
		rt := vmtest.NewFakeRuntime()
		e := New(PipelinePortableCPU,
			WithResolver(func(resolve.Tier) (resolve.Paths, error) {
				return resolve.Paths{}, errors.NewNotFoundError("tuning file")
			}),
			WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }))
		defer e.Close()

		assert.False(t, e.Initialized())
		assert.True(t, rt.Closed())

		e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
		assert.False(t, e.HasNewMask())
		assert.Equal(t, 0, rt.Frames())
	})

	t.Run("configure", func(t *testing.T) {
		rt := vmtest.NewFakeRuntime()
		rt.ConfigureErr = errors.New("bad tuning")
		e := New(PipelinePortableCPU,
			WithFs(tuningFs(t)),
			WithResolver(tierResolver),
			WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }))
		defer e.Close()
		assert.False(t, e.Initialized())
	})

	t.Run("unregistered runtime", func(t *testing.T) {
		e := New(PipelinePortableCPU, WithResolver(tierResolver), WithRuntimeName("missing"))
		defer e.Close()
		assert.False(t, e.Initialized())
	})

	t.Run("foreign accelerated pipeline", func(t *testing.T) {
		opened := false
		e := New(PipelineAcceleratedDarwin,
			WithResolver(tierResolver),
			withHost(PipelineAcceleratedWindows),
			WithTextureRuntimeFactory(func() (infer.TextureRuntime, error) {
				opened = true
				return vmtest.NewFakeTextureRuntime(), nil
			}))
		defer e.Close()
		assert.False(t, e.Initialized())
		assert.False(t, opened, "inactive variants are never instantiated")
		assert.Equal(t, infer.StatusNotInitialized, e.SegmentTexture(1, 2))
	})
}

func TestPortableHotReload(t *testing.T) {
	e, rt, fs := newPortable(t, PipelinePortableCPU)
	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	require.Len(t, rt.Configures(), 1)

	e.MarkConfigDirty()
	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	assert.Len(t, rt.Configures(), 1, "unchanged file is not reloaded")

	vmtest.Touch(t, fs, genericTuning, 1e9)
	e.MarkConfigDirty()
	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	assert.Len(t, rt.Configures(), 2)
	assert.False(t, e.Snapshot().Dirty)
}

func TestModeSettersMarkDirtyOnChange(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)
	assert.False(t, e.Snapshot().Dirty)

	e.SetSegmentationMode(ModeSilhouette)
	e.SetBlurMode(BlurNone)
	assert.False(t, e.Snapshot().Dirty, "same values leave the snapshot clean")

	e.SetBlurMode(BlurLight)
	snap := e.Snapshot()
	assert.True(t, snap.Dirty)
	assert.Equal(t, BlurLight, snap.BlurMode)
	assert.False(t, snap.TuningModTime.IsZero())
}

func TestSetLastFrameProcDuration(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)

	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeNone, MaskUint8)
	e.SetLastFrameProcDuration(5e6)
	assert.Equal(t, 0, e.Stats().Count, "no-op frames are not timed")

	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	e.SetLastFrameProcDuration(5e6)
	e.SegmentFrame(bgra(4, 4), 4, 4, frame.FormatBGRA, ModeSilhouette, MaskUint8)
	e.SetLastFrameProcDuration(7e6)

	stats := e.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, int64(7e6), int64(stats.Last))
	assert.Equal(t, int64(7e6), int64(stats.Max))
	assert.Equal(t, int64(6e6), int64(stats.Mean()))
}

func TestSessionID(t *testing.T) {
	e, _, _ := newPortable(t, PipelinePortableCPU)
	assert.Equal(t, "test-session", e.SessionID())
	assert.Equal(t, PipelinePortableCPU, e.Pipeline())
	assert.Equal(t, genericTuning, e.TuningFile())

	rt := vmtest.NewFakeRuntime()
	generated := New(PipelinePortableCPU,
		WithFs(tuningFs(t)),
		WithResolver(tierResolver),
		WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }))
	defer generated.Close()
	assert.Len(t, generated.SessionID(), 36)
}

func TestCloseIsIdempotent(t *testing.T) {
	e, rt, _ := newPortable(t, PipelinePortableCPU)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, rt.Closed())
}
