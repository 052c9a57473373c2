package segment

import (
	"go.uber.org/zap"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/resolve"
)

// acceleratedBackend drives an infer.TextureRuntime on texture handles.
// Which pipeline it may serve is fixed per build by hostPipeline.
type acceleratedBackend struct {
	pipeline Pipeline
	rt       infer.TextureRuntime
	resolver resolve.Resolver
	watcher  *TuningWatcher
	tier     resolve.Tier
	paths    resolve.Paths
	log      *zap.SugaredLogger
}

func startAccelerated(pipeline Pipeline, rt infer.TextureRuntime, resolver resolve.Resolver, watcher *TuningWatcher, log *zap.SugaredLogger) (*acceleratedBackend, error) {
	b := &acceleratedBackend{
		pipeline: pipeline,
		rt:       rt,
		resolver: resolver,
		watcher:  watcher,
		tier:     resolve.TierGeneric,
		log:      log,
	}
	if err := b.configure(); err != nil {
		return nil, err
	}

	if rt.HasDedicatedGPUMemory() {
		b.escalate()
	}
	return b, nil
}

// escalate moves to the dedicated-GPU tier. When that tier resolves to the
// file already loaded there is nothing to reconfigure.
func (b *acceleratedBackend) escalate() {
	paths, err := b.resolver(resolve.TierDedicatedGPU)
	if err != nil {
		b.log.Warnw("GPU tier escalation failed, staying on generic tier", logger.FieldError, err)
		return
	}
	if paths.TuningFile == b.paths.TuningFile {
		b.tier = resolve.TierDedicatedGPU
		b.log.Debugw("No GPU-specific tuning file, generic configuration kept",
			logger.FieldPath, paths.TuningFile)
		return
	}

	b.tier = resolve.TierDedicatedGPU
	if err := b.configure(); err != nil {
		// The generic configuration is still loaded.
		b.tier = resolve.TierGeneric
		b.log.Warnw("GPU tier escalation failed, staying on generic tier", logger.FieldError, err)
		return
	}
	b.log.Infow("Escalated to GPU tier", logger.FieldTier, b.tier.String())
}

func (b *acceleratedBackend) kind() string { return "accelerated" }

// configure is the full reconfigure-from-file for the current tier
func (b *acceleratedBackend) configure() error {
	paths, err := b.resolver(b.tier)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve tuning file for tier %s", b.tier)
	}
	if err := b.rt.ConfigureFile(paths.TuningFile, paths.ModelDir); err != nil {
		return errors.Wrapf(err, "failed to configure %s with %s", b.pipeline, paths.TuningFile)
	}
	b.paths = paths
	b.watcher.MarkRead(paths.TuningFile)
	b.log.Infow("Accelerated runtime configured",
		logger.FieldPath, paths.TuningFile,
		logger.FieldTier, b.tier.String())
	return nil
}

// update applies a pending configuration change. A changed tuning file
// gets a full reconfigure followed by the current params; otherwise only
// the params are patched. Failures keep the previous configuration.
// Returns true when a full reconfigure happened.
func (b *acceleratedBackend) update(params infer.Params) bool {
	full := false
	if paths, err := b.resolver(b.tier); err != nil {
		b.log.Warnw("Tuning file resolution failed, patching params only", logger.FieldError, err)
	} else {
		b.watcher.SetPath(paths.TuningFile)
		full = b.watcher.HasConfigFileChanged()
	}

	if full {
		if err := b.configure(); err != nil {
			b.log.Warnw("Accelerated reconfigure failed, keeping previous configuration", logger.FieldError, err)
			full = false
		}
	}
	if err := b.rt.Apply(params); err != nil {
		b.log.Warnw("Params patch rejected, keeping previous params",
			"processor", params.Processor.String(),
			"blur", params.Blur.String(),
			logger.FieldError, err)
	}
	return full
}

func (b *acceleratedBackend) nextFrame(in, out infer.TextureHandle) infer.Status {
	return b.rt.NextFrame(in, out)
}

func (b *acceleratedBackend) modelTraits() infer.ModelTraits {
	return b.rt.ModelTraits()
}

func (b *acceleratedBackend) restart(specIndex int) bool {
	return b.rt.Restart(specIndex)
}

func (b *acceleratedBackend) close() error {
	return b.rt.Close()
}
