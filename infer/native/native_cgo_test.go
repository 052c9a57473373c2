//go:build cgo && vendorseg

package native

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/infer"
)

// Requires the vendor library plus VIDMASK_NATIVE_TUNING and
// VIDMASK_NATIVE_MODELS pointing at a matching tuning file and model dir.
func TestVendorLibrary(t *testing.T) {
	tuning, models := os.Getenv("VIDMASK_NATIVE_TUNING"), os.Getenv("VIDMASK_NATIVE_MODELS")
	if tuning == "" || models == "" {
		t.Skip("VIDMASK_NATIVE_TUNING / VIDMASK_NATIVE_MODELS not set")
	}

	rt, err := infer.OpenTexture(Name)
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.ConfigureFile(tuning, models))
	require.NoError(t, rt.Apply(infer.Params{Processor: infer.ProcessorBlur, Blur: infer.BlurStrong}))

	traits := rt.ModelTraits()
	assert.Positive(t, traits.Width)
	assert.True(t, rt.Restart(traits.SpecIndex))

	require.NoError(t, rt.Close())
	assert.Equal(t, infer.StatusNotInitialized, rt.NextFrame(0, 0))
}
