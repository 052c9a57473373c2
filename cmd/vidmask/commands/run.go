package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/segment"
	"github.com/teranos/vidmask/sym"
)

// RunCmd segments a stream of frames and reports timing
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: sym.Seg + " Segment frames through an engine",
	Long: sym.Seg + ` run - Segment frames through an engine

Builds an engine from am.toml and flags, feeds it frames and prints a
timing summary. Without --input the frames are synthetic: a bright disc
moving across a dark background.

With --watch the tuning file and am.toml are watched. Editing the tuning
file reconfigures the backend on the next frame; editing engine modes in
am.toml applies them without a restart.

Each completed run is recorded in the history database unless
history.enabled is false or --no-history is given. See 'vidmask history'.

Examples:
  vidmask run --frames 300
  vidmask run --format i420a --mask-type float32 --resize-at 100
  vidmask run --input capture.bgra --width 1280 --height 720
  vidmask run --frames 0 --fps 30 --watch -v`,
	RunE: runRun,
}

var (
	runPipeline  string
	runFrames    int
	runWidth     int
	runHeight    int
	runFormat    string
	runMaskType  string
	runResizeAt  int
	runBlur      string
	runInput     string
	runWatch     bool
	runFPS       int
	runNoHistory bool
)

func init() {
	RunCmd.Flags().StringVar(&runPipeline, "pipeline", "", "Pipeline: portable-cpu, portable-gpu, accelerated-windows, accelerated-darwin (default from am.toml)")
	RunCmd.Flags().IntVar(&runFrames, "frames", 120, "Number of frames to process (0 = until interrupted or input ends)")
	RunCmd.Flags().IntVar(&runWidth, "width", 640, "Frame width")
	RunCmd.Flags().IntVar(&runHeight, "height", 360, "Frame height")
	RunCmd.Flags().StringVar(&runFormat, "format", "bgra", "Pixel format: bgra, i420a")
	RunCmd.Flags().StringVar(&runMaskType, "mask-type", "", "Mask element type: uint8, float32 (default from am.toml)")
	RunCmd.Flags().IntVar(&runResizeAt, "resize-at", 0, "Switch synthetic frames to half resolution from this frame on (0 = never)")
	RunCmd.Flags().StringVar(&runBlur, "blur", "", "Blur mode: none, light, strong (default from am.toml)")
	RunCmd.Flags().StringVarP(&runInput, "input", "i", "", "Read raw frames from a file instead of generating them")
	RunCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Watch the tuning file and am.toml for changes")
	RunCmd.Flags().IntVar(&runFPS, "fps", 0, "Pace frames at this rate (0 = as fast as possible)")
	RunCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history database")
}

// runSummary collects what the run loop observed
type runSummary struct {
	frames   int
	newMasks int
	coverage float64 // mean foreground fraction over new masks
	started  time.Time
}

func runRun(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	settings, err := parseEngineSettings(cfg, runPipeline, runMaskType, runBlur)
	if err != nil {
		return err
	}
	format, err := frame.ParsePixelFormat(runFormat)
	if err != nil {
		return err
	}
	if runWidth <= 0 || runHeight <= 0 {
		return errors.NewInvalidRequestError("frame size %dx%d", runWidth, runHeight)
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Starting %s engine", settings.pipeline))
	engine := newEngine(cfg, settings)
	defer engine.Close()
	if !engine.Initialized() {
		spinner.Fail("Engine failed to start")
		return errors.WithHint(
			errors.Newf("%s engine did not initialize", settings.pipeline),
			"run 'vidmask caps' to see available pipelines and 'vidmask resolve' to see the tuning file search order")
	}
	w, h := engine.CurrentModelSize()
	spinner.Success(fmt.Sprintf("%s engine ready (model %dx%d)", settings.pipeline, w, h))

	if settings.pipeline.Accelerated() {
		// Texture handles come from the host application's graphics device.
		pterm.Warning.Println("Accelerated pipelines consume GPU textures; no frames were processed")
		return renderSummary(engine, settings, runSummary{})
	}

	var src frameSource
	if runInput != "" {
		if src, err = newRawSource(runInput, runWidth, runHeight, format); err != nil {
			return err
		}
	} else {
		src = newDiscSource(runWidth, runHeight, format, runResizeAt)
	}
	defer src.Close()

	if runWatch && cfg.Watcher.Enabled {
		stop := startWatchers(cfg, engine)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var tick <-chan time.Time
	if runFPS > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(runFPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	sum := runSummary{started: time.Now()}
loop:
	for runFrames == 0 || sum.frames < runFrames {
		if tick != nil {
			select {
			case <-ctx.Done():
				break loop
			case <-tick:
			}
		} else if ctx.Err() != nil {
			break
		}

		raw, fw, fh, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		d := processFrame(engine, raw, fw, fh, format, settings.maskType)
		sum.frames++

		if !engine.HasNewMask() {
			continue
		}
		cov := coverage(engine, settings.maskType)
		sum.coverage += (cov - sum.coverage) / float64(sum.newMasks+1)
		sum.newMasks++
		engine.CleanNewMaskFlag()

		if logger.ShouldOutput(verbosity, logger.OutputFrameTiming) {
			fmt.Printf("frame %d %dx%d %s\n", sum.frames, fw, fh, d)
		}
		if logger.ShouldOutput(verbosity, logger.OutputMaskDump) {
			fmt.Printf("frame %d foreground %.1f%%\n", sum.frames, cov*100)
		}
	}

	if cfg.History.Enabled && !runNoHistory {
		recordRun(cfg, engine, settings, format, sum)
	}
	return renderSummary(engine, settings, sum)
}

// processFrame runs one cycle under a FrameTimer
func processFrame(engine *segment.Engine, raw []byte, width, height int, format frame.PixelFormat, maskType segment.MaskType) (d time.Duration) {
	timer := segment.StartFrameTimer(engine, nil)
	defer func() { d = timer.Stop() }()
	engine.SegmentFrame(raw, width, height, format, engine.Snapshot().SegmentationMode, maskType)
	return
}

// coverage returns the fraction of mask elements at or above one half
func coverage(engine *segment.Engine, maskType segment.MaskType) float64 {
	var fg, n int
	if maskType == segment.MaskFloat32 {
		for _, v := range engine.Float32Mask() {
			if v >= 0.5 {
				fg++
			}
			n++
		}
	} else {
		for _, v := range engine.Uint8Mask() {
			if v >= 128 {
				fg++
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(fg) / float64(n)
}

// startWatchers wires the tuning file notifier and an am.toml watcher that
// reapplies engine modes. The returned func stops both.
func startWatchers(cfg *am.Config, engine *segment.Engine) func() {
	log := logger.AddWatchSymbol(logger.ComponentLogger("run.watch"))
	var stops []func()

	if n, err := engine.WatchTuningFile(cfg.Debounce()); err != nil {
		log.Warnw("Tuning file not watched", logger.FieldError, err)
	} else {
		pterm.Info.Printf("Watching tuning file %s\n", n.Path())
	}

	if path := activeConfigFile(); path != "" {
		cw, err := am.NewConfigWatcher(path, cfg.Debounce())
		if err != nil {
			log.Warnw("Config file not watched", logger.FieldPath, path, logger.FieldError, err)
		} else {
			cw.OnReload(func(c *am.Config) error {
				return applyModes(engine, c)
			})
			cw.Start()
			am.SetGlobalWatcher(cw)
			stops = append(stops, func() { cw.Stop() })
			pterm.Info.Printf("Watching config %s\n", path)
		}
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// applyModes pushes reloaded engine modes to a running engine
func applyModes(engine *segment.Engine, c *am.Config) error {
	mode, err := segment.ParseSegmentationMode(c.Engine.SegmentationMode)
	if err != nil {
		return err
	}
	blur, err := segment.ParseBlurMode(c.Engine.BlurMode)
	if err != nil {
		return err
	}
	engine.SetSegmentationMode(mode)
	engine.SetBlurMode(blur)
	return nil
}

// activeConfigFile returns the highest precedence am.toml that exists
func activeConfigFile() string {
	files := am.ConfigFiles()
	for i := len(files) - 1; i >= 0; i-- {
		if _, err := os.Stat(files[i]); err == nil {
			return files[i]
		}
	}
	return ""
}

func renderSummary(engine *segment.Engine, settings engineSettings, sum runSummary) error {
	stats := engine.Stats()
	snap := engine.Snapshot()
	w, h := engine.CurrentModelSize()

	tuning := engine.TuningFile()
	if tuning == "" {
		tuning = "-"
	}

	data := pterm.TableData{
		{"Setting", "Value"},
		{"Pipeline", settings.pipeline.String()},
		{"Session", engine.SessionID()},
		{"Modes", fmt.Sprintf("%s / blur %s", snap.SegmentationMode, snap.BlurMode)},
		{"Model size", fmt.Sprintf("%dx%d", w, h)},
		{"Tuning file", tuning},
		{"Frames", fmt.Sprintf("%d", sum.frames)},
		{"New masks", fmt.Sprintf("%d", sum.newMasks)},
		{"Mean duration", stats.Mean().String()},
		{"Max duration", stats.Max.String()},
	}
	if sum.newMasks > 0 {
		data = append(data, []string{"Foreground", fmt.Sprintf("%.1f%%", sum.coverage*100)})
	}

	pterm.DefaultSection.Println("Run summary")
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
