package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/history"
	"github.com/teranos/vidmask/infer/reference"
	"github.com/teranos/vidmask/resolve"
	"github.com/teranos/vidmask/segment"
	"github.com/teranos/vidmask/server"
)

// isolatedConfig gives the test its own HOME, working directory and
// override directory holding a fixed-threshold reference tuning file.
func isolatedConfig(t *testing.T) *am.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	override := t.TempDir()
	tuning := filepath.Join(override, resolve.FileName(resolve.TierGeneric))
	require.NoError(t, os.WriteFile(tuning, []byte(`{"threshold": 100}`), 0644))
	t.Setenv("VIDMASK_RESOLVER_OVERRIDE_DIR", override)
	t.Setenv("VIDMASK_RESOLVER_RESOURCE_DIR", t.TempDir())
	t.Setenv("VIDMASK_HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))

	am.Reset()
	t.Cleanup(am.Reset)
	cfg, err := am.Load()
	require.NoError(t, err)
	return cfg
}

func TestParseEngineSettings(t *testing.T) {
	cfg := isolatedConfig(t)

	s, err := parseEngineSettings(cfg, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, segment.PipelinePortableCPU, s.pipeline)
	assert.Equal(t, segment.MaskUint8, s.maskType)
	assert.Equal(t, segment.ModeSilhouette, s.mode)
	assert.Equal(t, segment.BlurNone, s.blur)

	s, err = parseEngineSettings(cfg, "portable-gpu", "float32", "strong")
	require.NoError(t, err)
	assert.Equal(t, segment.PipelinePortableGPU, s.pipeline)
	assert.Equal(t, segment.MaskFloat32, s.maskType)
	assert.Equal(t, segment.BlurStrong, s.blur)

	_, err = parseEngineSettings(cfg, "metal", "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestFormatConfig(t *testing.T) {
	cfg := isolatedConfig(t)

	for _, format := range []string{"toml", "json", "yaml"} {
		out, err := formatConfig(cfg, format)
		require.NoError(t, err, format)
		assert.Contains(t, out, "portable-cpu", format)
	}

	_, err := formatConfig(cfg, "ini")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestDiscSource(t *testing.T) {
	src := newDiscSource(64, 36, frame.FormatBGRA, 2)

	for i := 0; i < 2; i++ {
		raw, w, h, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, 64, w)
		assert.Equal(t, 36, h)
		assert.Len(t, raw, frame.ExpectedSize(64, 36, frame.FormatBGRA))
	}

	raw, w, h, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 32, w, "half resolution from resizeAt on")
	assert.Equal(t, 18, h)
	assert.Len(t, raw, frame.ExpectedSize(32, 18, frame.FormatBGRA))
}

func TestRawSource(t *testing.T) {
	size := frame.ExpectedSize(4, 2, frame.FormatBGRA)
	path := filepath.Join(t.TempDir(), "frames.bgra")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*size), 0644))

	src, err := newRawSource(path, 4, 2, frame.FormatBGRA)
	require.NoError(t, err)
	defer src.Close()

	for i := 0; i < 2; i++ {
		raw, w, h, err := src.Next()
		require.NoError(t, err)
		assert.Len(t, raw, size)
		assert.Equal(t, 4, w)
		assert.Equal(t, 2, h)
	}
	_, _, _, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRawSourcePartialFrame(t *testing.T) {
	size := frame.ExpectedSize(4, 2, frame.FormatBGRA)
	path := filepath.Join(t.TempDir(), "frames.bgra")
	require.NoError(t, os.WriteFile(path, make([]byte, size+3), 0644))

	src, err := newRawSource(path, 4, 2, frame.FormatBGRA)
	require.NoError(t, err)
	defer src.Close()

	_, _, _, err = src.Next()
	require.NoError(t, err)
	_, _, _, err = src.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.Contains(t, err.Error(), "partial frame")
}

func TestRawSourceMissing(t *testing.T) {
	_, err := newRawSource(filepath.Join(t.TempDir(), "nope"), 4, 2, frame.FormatBGRA)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestEngineFromConfig(t *testing.T) {
	cfg := isolatedConfig(t)
	require.Equal(t, reference.Name, cfg.Engine.Runtime)

	s, err := parseEngineSettings(cfg, "", "", "")
	require.NoError(t, err)
	engine := newEngine(cfg, s)
	defer engine.Close()
	require.True(t, engine.Initialized())

	w, h := 64, 36
	raw := frame.Disc(w, h, w/2, h/2, 9, frame.FormatBGRA)
	d := processFrame(engine, raw, w, h, frame.FormatBGRA, s.maskType)
	assert.Equal(t, d, engine.Stats().Last)
	require.True(t, engine.HasNewMask())
	assert.Equal(t, 1, engine.Stats().Count)

	// A radius 9 disc covers about 11% of a 64x36 frame.
	assert.InDelta(t, 0.11, coverage(engine, s.maskType), 0.05)
}

func TestApplyModes(t *testing.T) {
	cfg := isolatedConfig(t)
	s, err := parseEngineSettings(cfg, "", "", "")
	require.NoError(t, err)
	engine := newEngine(cfg, s)
	defer engine.Close()

	next := *cfg
	next.Engine.SegmentationMode = "none"
	next.Engine.BlurMode = "light"
	require.NoError(t, applyModes(engine, &next))

	snap := engine.Snapshot()
	assert.Equal(t, segment.ModeNone, snap.SegmentationMode)
	assert.Equal(t, segment.BlurLight, snap.BlurMode)

	next.Engine.BlurMode = "heavy"
	assert.Error(t, applyModes(engine, &next))
}

func TestRunCommand(t *testing.T) {
	cfg := isolatedConfig(t)

	RunCmd.SetArgs([]string{"--frames", "6", "--width", "64", "--height", "36", "--resize-at", "3", "--format", "i420a"})
	require.NoError(t, RunCmd.Execute())

	db, store, err := openHistory(cfg)
	require.NoError(t, err)
	defer db.Close()
	runs, err := store.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "portable-cpu", runs[0].Pipeline)
	assert.Equal(t, "reference", runs[0].Runtime)
	assert.Equal(t, "i420a", runs[0].Format)
	assert.Equal(t, 6, runs[0].Frames)
	assert.Equal(t, 64, runs[0].Width)
	assert.Equal(t, 256, runs[0].ModelWidth)

	HistoryCmd.SetArgs([]string{"--prune", "--json"})
	require.NoError(t, HistoryCmd.Execute())
}

func TestPruneHistory(t *testing.T) {
	cfg := isolatedConfig(t)
	db, store, err := openHistory(cfg)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	for i, age := range []time.Duration{0, 100 * 24 * time.Hour} {
		started := time.Now().Add(-age)
		_, err := store.Record(ctx, history.Run{
			SessionID:  fmt.Sprintf("run-%d", i),
			Pipeline:   "portable-cpu",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
		})
		require.NoError(t, err)
	}

	n, err := pruneHistory(ctx, cfg, store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "default retention is %d days", am.DefaultRetentionDays)

	cfg.History.RetentionDays = 0
	n, err = pruneHistory(ctx, cfg, store)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServerConfig(t *testing.T) {
	cfg := isolatedConfig(t)

	scfg, err := serverConfig(cfg, -1)
	require.NoError(t, err)
	assert.Equal(t, am.DefaultMaxClients, scfg.MaxClients)
	assert.Equal(t, am.DefaultAllowedOrigins, scfg.AllowedOrigins)
	assert.Equal(t, segment.PipelinePortableCPU, scfg.Defaults.Pipeline)
	assert.Equal(t, segment.ModeSilhouette, scfg.Defaults.SegmentationMode)

	scfg, err = serverConfig(cfg, 0)
	require.NoError(t, err)
	assert.Zero(t, scfg.MaxClients)

	cfg.Engine.Pipeline = "accelerated-darwin"
	scfg, err = serverConfig(cfg, -1)
	require.NoError(t, err)
	assert.Equal(t, segment.PipelinePortableCPU, scfg.Defaults.Pipeline)
}

func TestEngineFactory(t *testing.T) {
	cfg := isolatedConfig(t)

	engine := engineFactory(cfg)(server.EngineSettings{
		Pipeline:         segment.PipelinePortableCPU,
		MaskType:         segment.MaskUint8,
		SegmentationMode: segment.ModeSilhouette,
	})
	defer engine.Close()
	require.True(t, engine.Initialized())
	assert.Equal(t, segment.PipelinePortableCPU, engine.Pipeline())
}

func TestActiveConfigFile(t *testing.T) {
	isolatedConfig(t)
	assert.Empty(t, activeConfigFile())

	project := filepath.Join(".", "am.toml")
	require.NoError(t, os.WriteFile(project, []byte("[engine]\nblur_mode = \"light\"\n"), 0644))
	assert.Equal(t, "am.toml", filepath.Base(activeConfigFile()))
}
