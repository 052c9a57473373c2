package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/resolve"
	"github.com/teranos/vidmask/segment"
)

// resolveOptions maps the [resolver] section onto resolve.Options
func resolveOptions(cfg *am.Config) resolve.Options {
	return resolve.Options{
		Product:     cfg.Resolver.Product,
		OverrideDir: cfg.Resolver.OverrideDir,
		ResourceDir: cfg.Resolver.ResourceDir,
	}
}

// engineSettings is the engine configuration after flags are applied on top of am.toml
type engineSettings struct {
	pipeline segment.Pipeline
	maskType segment.MaskType
	mode     segment.SegmentationMode
	blur     segment.BlurMode
}

func parseEngineSettings(cfg *am.Config, pipeline, maskType, blur string) (engineSettings, error) {
	var s engineSettings
	var err error

	if pipeline == "" {
		pipeline = cfg.Engine.Pipeline
	}
	if s.pipeline, err = segment.ParsePipeline(pipeline); err != nil {
		return s, errors.WithHintf(err, "valid pipelines: %s", strings.Join(am.ValidPipelines, ", "))
	}

	if maskType == "" {
		maskType = cfg.Engine.MaskType
	}
	if s.maskType, err = segment.ParseMaskType(maskType); err != nil {
		return s, err
	}

	if s.mode, err = segment.ParseSegmentationMode(cfg.Engine.SegmentationMode); err != nil {
		return s, err
	}

	if blur == "" {
		blur = cfg.Engine.BlurMode
	}
	if s.blur, err = segment.ParseBlurMode(blur); err != nil {
		return s, err
	}
	return s, nil
}

// newEngine starts an engine wired to the configured resolver and runtimes
func newEngine(cfg *am.Config, s engineSettings) *segment.Engine {
	return segment.New(s.pipeline,
		segment.WithResolver(resolve.New(resolveOptions(cfg))),
		segment.WithRuntimeName(cfg.Engine.Runtime),
		segment.WithTextureRuntimeName(cfg.Engine.TextureRuntime),
		segment.WithStatWarnInterval(cfg.StatWarnInterval()),
		segment.WithModes(s.mode, s.blur),
		segment.WithLogger(logger.ComponentLogger("segment.engine")),
	)
}

// PrintError prints err with any hints attached along its chain
func PrintError(err error) {
	pterm.Error.Println(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
	}
}
