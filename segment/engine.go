// Package segment implements the segmentation engine: backend selection,
// mask double-buffering, buffer lifecycle and tuning hot reload.
//
// One processing goroutine drives SegmentFrame or SegmentTexture serially
// and reads masks. A control goroutine may change modes and query status
// concurrently. Mode changes set an atomic dirty flag; the processing
// goroutine only takes the config lock when the flag is set.
package segment

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/resolve"
)

// noCopy makes go vet's copylocks check flag copies of an Engine
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Snapshot is the mutable configuration of an engine
type Snapshot struct {
	SegmentationMode SegmentationMode
	BlurMode         BlurMode
	Dirty            bool
	TuningModTime    time.Time
}

// Engine is a segmentation session. It exclusively owns its backend,
// buffers and snapshot; use it only through the *Engine returned by New.
type Engine struct {
	noCopy noCopy

	pipeline  Pipeline
	sessionID string
	log       *zap.SugaredLogger

	initialized bool
	portable    *portableBackend
	accel       *acceleratedBackend
	live        backend

	watcher *TuningWatcher
	// Processing goroutine only.
	buf      buffers
	produced bool

	modelWidth, modelHeight, specIndex atomic.Int64

	mu    sync.Mutex
	snap  Snapshot
	dirty atomic.Bool

	stats    frameStats
	failures *rate.Limiter

	notifierMu sync.Mutex
	notifier   *TuningNotifier
	closeOnce  sync.Once
}

// Option configures New
type Option func(*options)

type options struct {
	resolver         resolve.Resolver
	runtimeFactory   infer.RuntimeFactory
	textureFactory   infer.TextureRuntimeFactory
	runtimeName      string
	textureName      string
	fs               afero.Fs
	log              *zap.SugaredLogger
	sessionID        string
	statWarnInterval time.Duration
	mode             SegmentationMode
	blur             BlurMode
	host             Pipeline
}

// WithResolver injects the tuning file resolver
func WithResolver(r resolve.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithRuntimeFactory supplies the portable runtime
func WithRuntimeFactory(f infer.RuntimeFactory) Option {
	return func(o *options) { o.runtimeFactory = f }
}

// WithTextureRuntimeFactory supplies the accelerated runtime
func WithTextureRuntimeFactory(f infer.TextureRuntimeFactory) Option {
	return func(o *options) { o.textureFactory = f }
}

// WithRuntimeName opens the named registered portable runtime (default "reference")
func WithRuntimeName(name string) Option {
	return func(o *options) { o.runtimeName = name }
}

// WithTextureRuntimeName opens the named registered accelerated runtime (default "native")
func WithTextureRuntimeName(name string) Option {
	return func(o *options) { o.textureName = name }
}

// WithFs sets the filesystem for tuning file access
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger sets the engine's base logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.log = l }
}

// WithSessionID overrides the generated session ID
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithStatWarnInterval spaces tuning file stat warnings
func WithStatWarnInterval(d time.Duration) Option {
	return func(o *options) { o.statWarnInterval = d }
}

// WithModes sets the initial segmentation and blur modes
func WithModes(mode SegmentationMode, blur BlurMode) Option {
	return func(o *options) { o.mode, o.blur = mode, blur }
}

// New constructs an engine and starts its backend. Startup failure is
// logged and leaves Initialized() false; the engine is then inert.
func New(pipeline Pipeline, opts ...Option) *Engine {
	o := options{
		runtimeName: "reference",
		textureName: "native",
		mode:        ModeSilhouette,
		host:        hostPipeline,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	if o.resolver == nil {
		o.resolver = resolve.New(resolve.Options{Fs: o.fs})
	}
	if o.log == nil {
		o.log = logger.ComponentLogger("segment.engine")
	}

	base := logger.ChildLogger(o.log,
		logger.FieldSessionID, o.sessionID,
		logger.FieldPipeline, pipeline.String())
	e := &Engine{
		pipeline:  pipeline,
		sessionID: o.sessionID,
		log:       logger.AddSegSymbol(base),
		watcher:   NewTuningWatcher(o.fs, o.statWarnInterval, base),
		snap:      Snapshot{SegmentationMode: o.mode, BlurMode: o.blur},
		failures:  rate.NewLimiter(rate.Every(time.Second), 1),
	}

	start := time.Now()
	if err := e.start(o); err != nil {
		e.log.Errorw("Segmentation backend failed to start", logger.FieldError, err)
		return e
	}
	e.initialized = true
	e.storeTraits(e.live.modelTraits())
	// Apply initial modes on the first accelerated frame.
	e.dirty.Store(e.accel != nil)

	w, h := e.CurrentModelSize()
	e.log.Infow("Segmentation engine started",
		logger.FieldRuntime, e.live.kind(),
		logger.FieldModelWidth, w,
		logger.FieldModelHeight, h,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return e
}

func (e *Engine) start(o options) error {
	switch pipeline := e.pipeline; pipeline {
	case PipelinePortableCPU, PipelinePortableGPU:
		if pipeline == PipelinePortableGPU {
			e.log.Warnw("portable-gpu pipeline is deprecated, use portable-cpu")
		}
		factory := o.runtimeFactory
		if factory == nil {
			name := o.runtimeName
			factory = func() (infer.Runtime, error) { return infer.Open(name) }
		}
		rt, err := factory()
		if err != nil {
			return err
		}
		b, err := startPortable(pipeline, rt, o.resolver, o.fs, e.watcher, e.log)
		if err != nil {
			rt.Close()
			return err
		}
		e.portable, e.live = b, b
		return nil

	case PipelineAcceleratedWindows, PipelineAcceleratedDarwin:
		if pipeline != o.host {
			return errors.Wrapf(errors.ErrNotAvailable, "%s pipeline", pipeline)
		}
		e.log.Debugw("Starting accelerated backend", "surface", hostSurface)
		factory := o.textureFactory
		if factory == nil {
			name := o.textureName
			factory = func() (infer.TextureRuntime, error) { return infer.OpenTexture(name) }
		}
		rt, err := factory()
		if err != nil {
			return err
		}
		b, err := startAccelerated(pipeline, rt, o.resolver, e.watcher, e.log)
		if err != nil {
			rt.Close()
			return err
		}
		e.accel, e.live = b, b
		return nil

	default:
		return errors.NewInvalidRequestError("unknown pipeline %s", pipeline)
	}
}

// Initialized reports whether the backend started
func (e *Engine) Initialized() bool {
	return e.initialized
}

// Pipeline returns the selector the engine was built with
func (e *Engine) Pipeline() Pipeline {
	return e.pipeline
}

// SessionID identifies this engine in logs
func (e *Engine) SessionID() string {
	return e.sessionID
}

// CurrentModelSize returns the active model's native resolution
func (e *Engine) CurrentModelSize() (width, height int) {
	return int(e.modelWidth.Load()), int(e.modelHeight.Load())
}

func (e *Engine) storeTraits(t infer.ModelTraits) {
	e.modelWidth.Store(int64(t.Width))
	e.modelHeight.Store(int64(t.Height))
	e.specIndex.Store(int64(t.SpecIndex))
}

// SegmentFrame runs the software path on one frame.
//
// Contract: width and height are positive, format is supported, raw holds
// at least frame.ExpectedSize bytes and maskType matches the first call.
// Violations panic.
func (e *Engine) SegmentFrame(raw []byte, width, height int, format frame.PixelFormat, mode SegmentationMode, maskType MaskType) {
	e.produced = false
	if width <= 0 || height <= 0 {
		errors.ContractViolation("frame size %dx%d", width, height)
	}
	if !format.Valid() {
		errors.ContractViolation("unsupported pixel format %s", format)
	}
	if need := frame.ExpectedSize(width, height, format); len(raw) < need {
		errors.ContractViolation("frame buffer holds %d bytes, %dx%d %s needs %d", len(raw), width, height, format, need)
	}
	if e.buf.maskTypeSet && maskType != e.buf.maskType {
		errors.ContractViolation("mask type %s requested, engine allocated %s", maskType, e.buf.maskType)
	}

	b := e.portable
	if b == nil {
		if e.failures.Allow() {
			e.log.Warnw("SegmentFrame on an engine without a portable backend",
				"initialized", e.initialized)
		}
		return
	}
	if e.dirty.Load() {
		e.mu.Lock()
		b.reloadIfChanged()
		e.dirty.Store(false)
		e.mu.Unlock()
	}

	if e.buf.allocated() && !e.buf.canReuseBuffers(width, height, format) {
		spec := int(e.specIndex.Load())
		if !b.restart(spec) {
			if e.failures.Allow() {
				e.log.Warnw("Backend restart failed, dropping frame",
					logger.FieldWidth, width,
					logger.FieldHeight, height,
					logger.FieldFormat, format.String(),
					logger.FieldSpecIndex, spec)
			}
			// Keep the last mask retrievable without flagging it new.
			if e.buf.hasNew {
				e.buf.swap()
				e.buf.hasNew = false
			}
			return
		}
		e.log.Debugw("Backend restarted for new geometry",
			"from", e.buf.desc.String(),
			"to", frame.NewDescriptor(width, height, format).String(),
			logger.FieldSpecIndex, spec)
		e.buf.release()
	}
	if !e.buf.allocated() {
		e.buf.allocateBuffers(width, height, format, maskType)
		e.log.Debugw("Buffers allocated",
			logger.FieldWidth, width,
			logger.FieldHeight, height,
			logger.FieldFormat, format.String(),
			logger.FieldMaskType, maskType.String())
	}

	if mode != ModeSilhouette {
		return
	}

	if e.buf.hasNew {
		e.buf.swap()
	}
	view := frame.NewView(raw, width, height)
	if format.Planar() {
		if err := frame.ConvertI420AToBGRA(e.buf.convert, raw, width, height); err != nil {
			e.buf.hasNew = false
			e.log.Warnw("Frame conversion failed", logger.FieldError, err)
			return
		}
		view = frame.NewView(e.buf.convert, width, height)
	}

	ok := b.nextFrame(view, e.buf.previous, e.buf.current)
	e.buf.hasNew = ok
	e.produced = ok
	if !ok {
		if e.failures.Allow() {
			e.log.Warnw("Inference produced no mask", logger.FieldWidth, width, logger.FieldHeight, height)
		}
		return
	}
	e.storeTraits(b.modelTraits())
}

// SegmentTexture runs the accelerated path. Pending mode or tuning
// changes are applied first; the runtime status is returned verbatim.
func (e *Engine) SegmentTexture(in, out infer.TextureHandle) infer.Status {
	e.produced = false
	b := e.accel
	if b == nil {
		if e.failures.Allow() {
			e.log.Warnw("SegmentTexture on an engine without an accelerated backend",
				"initialized", e.initialized)
		}
		return infer.StatusNotInitialized
	}

	if e.dirty.Load() {
		e.mu.Lock()
		params := paramsFor(e.snap.SegmentationMode, e.snap.BlurMode)
		if b.update(params) {
			e.storeTraits(b.modelTraits())
		}
		e.dirty.Store(false)
		e.mu.Unlock()
	}

	status := b.nextFrame(in, out)
	e.produced = status.OK()
	if !status.OK() && e.failures.Allow() {
		e.log.Warnw("Accelerated inference failed",
			logger.FieldStatus, status.String(),
			"surface", hostSurface)
	}
	return status
}

// SetSegmentationMode takes effect on the next frame
func (e *Engine) SetSegmentationMode(mode SegmentationMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.SegmentationMode == mode {
		return
	}
	e.snap.SegmentationMode = mode
	e.dirty.Store(true)
}

// SetBlurMode takes effect on the next frame
func (e *Engine) SetBlurMode(mode BlurMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.BlurMode == mode {
		return
	}
	e.snap.BlurMode = mode
	e.dirty.Store(true)
}

// MarkConfigDirty asks the next frame to check the tuning file
func (e *Engine) MarkConfigDirty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty.Store(true)
}

// Snapshot returns the current configuration
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := e.snap
	e.mu.Unlock()
	s.Dirty = e.dirty.Load()
	s.TuningModTime = e.watcher.LastModified()
	return s
}

// TuningFile returns the tuning file the backend was last configured from
func (e *Engine) TuningFile() string {
	return e.watcher.Path()
}

// Uint8Mask returns the newest mask. Panics unless the engine allocated
// uint8 masks. Processing goroutine only, like every mask accessor.
func (e *Engine) Uint8Mask() []uint8 {
	e.buf.requireMaskType(MaskUint8)
	return e.buf.newest().U8
}

// Float32Mask returns the newest mask. Panics unless the engine allocated
// float32 masks.
func (e *Engine) Float32Mask() []float32 {
	e.buf.requireMaskType(MaskFloat32)
	return e.buf.newest().F32
}

// OpaqueMask returns a mask of 255s, or nil before the first frame
// allocated buffers
func (e *Engine) OpaqueMask() []uint8 {
	if !e.buf.opaqueReady(MaskUint8) {
		return nil
	}
	return e.buf.opaqueU8
}

// OpaqueFloat32Mask returns a mask of 1.0s, or nil before the first frame
// allocated buffers
func (e *Engine) OpaqueFloat32Mask() []float32 {
	if !e.buf.opaqueReady(MaskFloat32) {
		return nil
	}
	return e.buf.opaqueF32
}

// HasNewMask reports whether a mask was produced since the last CleanNewMaskFlag
func (e *Engine) HasNewMask() bool {
	return e.buf.hasNew
}

// CleanNewMaskFlag acknowledges the newest mask. It stays readable and
// becomes the previous mask of the next inference.
func (e *Engine) CleanNewMaskFlag() {
	if !e.buf.hasNew {
		return
	}
	e.buf.swap()
	e.buf.hasNew = false
}

// SetLastFrameProcDuration records d if the last cycle produced a mask
func (e *Engine) SetLastFrameProcDuration(d time.Duration) {
	if !e.produced {
		return
	}
	e.stats.record(d)
	e.log.Debugw("Frame processed", logger.FieldDurationMS, d.Milliseconds())
}

// Stats returns the recorded frame durations
func (e *Engine) Stats() FrameStats {
	return e.stats.snapshot()
}

// retargetNotifier follows the watcher when the resolver picks another
// tuning file
func (e *Engine) retargetNotifier(path string) {
	e.notifierMu.Lock()
	defer e.notifierMu.Unlock()
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SetPath(path); err != nil {
		e.log.Warnw("Tuning notifier not re-armed, still watching previous file",
			logger.FieldPath, path,
			logger.FieldError, err)
	}
}

// WatchTuningFile starts an fsnotify notifier on the active tuning file
// that marks the engine dirty on change. Close stops it.
func (e *Engine) WatchTuningFile(debounce time.Duration) (*TuningNotifier, error) {
	if !e.initialized {
		return nil, errors.Wrap(errors.ErrNotAvailable, "engine not initialized")
	}
	path := e.watcher.Path()
	if path == "" {
		return nil, errors.New("no tuning file configured")
	}
	n, err := NewTuningNotifier(path, debounce, e.MarkConfigDirty)
	if err != nil {
		return nil, err
	}

	e.notifierMu.Lock()
	defer e.notifierMu.Unlock()
	if e.notifier != nil {
		e.notifier.Stop()
	}
	e.notifier = n
	e.watcher.OnPathChange(e.retargetNotifier)
	n.Start()
	return n, nil
}

// Close releases the backend and all buffers. Safe to call multiple times.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.notifierMu.Lock()
		if e.notifier != nil {
			err = errors.CombineErrors(err, e.notifier.Stop())
			e.notifier = nil
		}
		e.notifierMu.Unlock()

		if e.live != nil {
			err = errors.CombineErrors(err, e.live.close())
		}
		e.buf.release()
		stats := e.stats.snapshot()
		e.log.Infow("Segmentation engine closed",
			logger.FieldCount, stats.Count,
			logger.FieldDurationMS, stats.Mean().Milliseconds())
	})
	return err
}
