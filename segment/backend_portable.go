package segment

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/resolve"
)

// portableBackend drives an infer.Runtime on in-memory frames
type portableBackend struct {
	rt       infer.Runtime
	resolver resolve.Resolver
	watcher  *TuningWatcher
	settings infer.Settings
	log      *zap.SugaredLogger
}

func startPortable(pipeline Pipeline, rt infer.Runtime, resolver resolve.Resolver, fs afero.Fs, watcher *TuningWatcher, log *zap.SugaredLogger) (*portableBackend, error) {
	b := &portableBackend{
		rt:       rt,
		resolver: resolver,
		watcher:  watcher,
		log:      log,
		settings: infer.Settings{
			Fs:        fs,
			SpecIndex: infer.DefaultSpecIndex,
			// Hardware post-processing on the GPU pipeline applies thresholds.
			AlphaPassthrough: pipeline == PipelinePortableGPU,
		},
	}
	if err := b.configure(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *portableBackend) kind() string { return "portable" }

// configure resolves the generic tier and hands the tuning file to the
// runtime. On failure the previous settings stay in effect.
func (b *portableBackend) configure() error {
	paths, err := b.resolver(resolve.TierGeneric)
	if err != nil {
		return errors.Wrap(err, "failed to resolve portable tuning file")
	}
	next := b.settings
	next.TuningFile = paths.TuningFile
	next.ModelDir = paths.ModelDir
	if err := b.rt.Configure(next); err != nil {
		return errors.Wrapf(err, "failed to configure portable runtime with %s", paths.TuningFile)
	}
	b.settings = next
	b.watcher.MarkRead(paths.TuningFile)
	b.log.Infow("Portable runtime configured",
		logger.FieldPath, paths.TuningFile,
		"alpha_passthrough", next.AlphaPassthrough)
	return nil
}

// reloadIfChanged re-runs configure when the tuning file moved on disk
func (b *portableBackend) reloadIfChanged() {
	paths, err := b.resolver(resolve.TierGeneric)
	if err != nil {
		b.log.Warnw("Tuning file resolution failed, keeping current configuration", logger.FieldError, err)
		return
	}
	b.watcher.SetPath(paths.TuningFile)
	if !b.watcher.HasConfigFileChanged() {
		return
	}
	if err := b.configure(); err != nil {
		b.log.Warnw("Portable reconfigure failed, keeping previous configuration", logger.FieldError, err)
	}
}

func (b *portableBackend) nextFrame(in frame.View, prev, cur infer.MaskTarget) bool {
	ok, wrote := b.rt.NextFrame(in, prev, cur)
	return ok && wrote
}

func (b *portableBackend) modelTraits() infer.ModelTraits {
	return b.rt.ModelTraits()
}

func (b *portableBackend) restart(specIndex int) bool {
	if !b.rt.Restart(specIndex) {
		return false
	}
	b.settings.SpecIndex = specIndex
	return true
}

func (b *portableBackend) close() error {
	return b.rt.Close()
}
