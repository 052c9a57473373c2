package am

import (
	"slices"

	"github.com/teranos/vidmask/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(ValidPipelines, c.Engine.Pipeline) {
		return errors.WithHintf(
			errors.Newf("engine.pipeline %q is not a known pipeline", c.Engine.Pipeline),
			"valid pipelines: %v", ValidPipelines)
	}
	if !slices.Contains(ValidMaskTypes, c.Engine.MaskType) {
		return errors.Newf("engine.mask_type must be one of %v, got %q", ValidMaskTypes, c.Engine.MaskType)
	}
	if !slices.Contains(ValidSegmentationModes, c.Engine.SegmentationMode) {
		return errors.Newf("engine.segmentation_mode must be one of %v, got %q", ValidSegmentationModes, c.Engine.SegmentationMode)
	}
	if !slices.Contains(ValidBlurModes, c.Engine.BlurMode) {
		return errors.Newf("engine.blur_mode must be one of %v, got %q", ValidBlurModes, c.Engine.BlurMode)
	}
	if c.Engine.Runtime == "" {
		return errors.New("engine.runtime cannot be empty")
	}
	if c.Engine.TextureRuntime == "" {
		return errors.New("engine.texture_runtime cannot be empty")
	}

	if c.Resolver.Product == "" {
		return errors.New("resolver.product cannot be empty")
	}

	// 0 means "use default"; negative is invalid
	if c.Watcher.DebounceMS < 0 {
		return errors.Newf("watcher.debounce_ms must be >= 0, got %d", c.Watcher.DebounceMS)
	}
	if c.Watcher.StatWarnIntervalSeconds < 0 {
		return errors.Newf("watcher.stat_warn_interval_seconds must be >= 0, got %d", c.Watcher.StatWarnIntervalSeconds)
	}

	if c.History.RetentionDays < 0 {
		return errors.Newf("history.retention_days must be >= 0, got %d", c.History.RetentionDays)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	if c.Server.MaxClients < 0 {
		return errors.Newf("server.max_clients must be >= 0, got %d", c.Server.MaxClients)
	}

	if c.Log.Theme != "" && !slices.Contains(ValidThemes, c.Log.Theme) {
		return errors.Newf("log.theme must be one of %v, got %q", ValidThemes, c.Log.Theme)
	}
	return nil
}
