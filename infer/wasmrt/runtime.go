// Package wasmrt hosts a portable vendor runtime compiled to WebAssembly.
//
// The module is loaded from <modelDir>/runtime.wasm on Configure and run
// through wazero (pure Go, no CGO). Frames and masks cross the boundary in
// linear memory:
//
//	seg_alloc(size) -> ptr                 seg_free(ptr, size)
//	seg_version() -> (ptr << 32) | len     seg_restart(spec) -> 1 on success
//	seg_configure(ptr, len, spec, passthrough) -> status (0 = ok)
//	seg_next_frame(in, w, h, stride, prev, cur, elem) -> bit0 ok, bit1 wrote
//	seg_model_traits(out)                  writes width, height, spec as i32 LE
package wasmrt

import (
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/logger"
)

// Name is the registry name of this runtime
const Name = "wasm"

// ModuleFile is the module file name inside the model directory
const ModuleFile = "runtime.wasm"

// HostABI is the ABI version this host speaks, reported until a module is loaded
const HostABI = "1.0.0"

const (
	exportAlloc       = "seg_alloc"
	exportFree        = "seg_free"
	exportVersion     = "seg_version"
	exportConfigure   = "seg_configure"
	exportNextFrame   = "seg_next_frame"
	exportModelTraits = "seg_model_traits"
	exportRestart     = "seg_restart"
)

var requiredExports = []string{
	exportAlloc, exportFree, exportVersion, exportConfigure,
	exportNextFrame, exportModelTraits, exportRestart,
}

func init() {
	infer.Register(Name, func() (infer.Runtime, error) { return New(), nil })
}

// region is a block of module memory owned by the host
type region struct {
	ptr  uint32
	size uint32
}

// Runtime implements infer.Runtime on top of a wazero module
type Runtime struct {
	mu      sync.Mutex
	ctx     context.Context
	runtime wazero.Runtime
	mod     api.Module
	path    string
	version string

	in, prev, cur region
	traits        region
}

// New returns a runtime that loads its module on Configure
func New() *Runtime {
	return &Runtime{ctx: context.Background()}
}

// Version reports the module's version, or HostABI before a module is loaded
func (r *Runtime) Version() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.version == "" {
		return HostABI
	}
	return r.version
}

// Configure loads the module (once per path) and hands it the tuning file
func (r *Runtime) Configure(s infer.Settings) error {
	fs := s.FS()
	tuning, err := infer.ReadTuningFile(fs, s.TuningFile)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	modPath := filepath.Join(s.ModelDir, ModuleFile)
	if r.mod == nil || r.path != modPath {
		if err := r.loadLocked(fs, modPath); err != nil {
			return err
		}
	}

	ptr, err := r.writeBytesLocked(tuning)
	if err != nil {
		return err
	}
	defer r.freeLocked(region{ptr: ptr, size: uint32(len(tuning))})

	passthrough := uint64(0)
	if s.AlphaPassthrough {
		passthrough = 1
	}
	res, err := r.mod.ExportedFunction(exportConfigure).Call(r.ctx,
		uint64(ptr), uint64(len(tuning)), api.EncodeI32(int32(s.SpecIndex)), passthrough)
	if err != nil {
		return errors.Wrap(err, "wasm seg_configure")
	}
	if status := infer.Status(api.DecodeI32(res[0])); !status.OK() {
		return errors.Newf("wasm runtime rejected tuning file %s (status %s)", s.TuningFile, status)
	}
	return nil
}

func (r *Runtime) loadLocked(fs afero.Fs, path string) error {
	wasm, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "failed to read wasm runtime %s", path),
			"place runtime.wasm in the model directory next to the tuning file")
	}

	r.closeLocked()

	rt := wazero.NewRuntime(r.ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(r.ctx, rt); err != nil {
		rt.Close(r.ctx)
		return errors.Wrap(err, "wasi instantiate")
	}
	compiled, err := rt.CompileModule(r.ctx, wasm)
	if err != nil {
		rt.Close(r.ctx)
		return errors.Wrap(err, "wasm compile")
	}
	mod, err := rt.InstantiateModule(r.ctx, compiled, wazero.NewModuleConfig().WithName("segvendor"))
	if err != nil {
		rt.Close(r.ctx)
		return errors.Wrap(err, "wasm instantiate")
	}
	for _, name := range requiredExports {
		if mod.ExportedFunction(name) == nil {
			rt.Close(r.ctx)
			return errors.Newf("wasm runtime %s: missing export %q", path, name)
		}
	}

	r.runtime, r.mod, r.path = rt, mod, path
	version, err := r.readVersionLocked()
	if err != nil {
		r.closeLocked()
		return err
	}
	if err := infer.CheckVersion(version); err != nil {
		r.closeLocked()
		return errors.Wrapf(err, "wasm runtime %s", path)
	}
	r.version = version

	logger.AddInferSymbol(logger.ComponentLogger("infer.wasm")).Infow("WASM runtime loaded",
		logger.FieldPath, path, "version", version, "bytes", len(wasm))
	return nil
}

func (r *Runtime) readVersionLocked() (string, error) {
	res, err := r.mod.ExportedFunction(exportVersion).Call(r.ctx)
	if err != nil {
		return "", errors.Wrap(err, "wasm seg_version")
	}
	ptr, size := unpack(res[0])
	if ptr == 0 || size == 0 {
		return "", errors.Newf("wasm seg_version returned null result (ptr=%d, len=%d)", ptr, size)
	}
	b, ok := r.mod.Memory().Read(ptr, size)
	if !ok {
		return "", errors.Newf("wasm seg_version memory read out of range at ptr=%d len=%d", ptr, size)
	}
	version := string(b)
	r.freeLocked(region{ptr: ptr, size: size})
	return version, nil
}

// NextFrame copies the frame and previous mask into module memory, runs
// inference and copies the current mask back.
func (r *Runtime) NextFrame(in frame.View, prev, cur infer.MaskTarget) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pixels := in.Width * in.Height
	if r.mod == nil || pixels == 0 || cur.Len() != pixels {
		return false, false
	}
	elem := uint32(1)
	if cur.Float() {
		elem = 4
	}

	frameSize := uint32(in.Stride * in.Height)
	maskSize := uint32(pixels) * elem
	if err := r.ensureLocked(&r.in, frameSize); err != nil {
		return false, false
	}
	if err := r.ensureLocked(&r.prev, maskSize); err != nil {
		return false, false
	}
	if err := r.ensureLocked(&r.cur, maskSize); err != nil {
		return false, false
	}

	mem := r.mod.Memory()
	if !mem.Write(r.in.ptr, in.Data[:frameSize]) {
		return false, false
	}
	if prev.Len() == pixels && !mem.Write(r.prev.ptr, encodeMask(prev)) {
		return false, false
	}

	res, err := r.mod.ExportedFunction(exportNextFrame).Call(r.ctx,
		uint64(r.in.ptr), uint64(in.Width), uint64(in.Height), uint64(in.Stride),
		uint64(r.prev.ptr), uint64(r.cur.ptr), uint64(elem))
	if err != nil {
		return false, false
	}
	flags := api.DecodeU32(res[0])
	ok, wrote := flags&1 != 0, flags&2 != 0
	if !wrote {
		return ok, false
	}

	out, readOK := mem.Read(r.cur.ptr, maskSize)
	if !readOK {
		return false, false
	}
	decodeMask(out, cur)
	return ok, true
}

// ModelTraits asks the module for its active model geometry
func (r *Runtime) ModelTraits() infer.ModelTraits {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mod == nil {
		return infer.ModelTraits{}
	}
	if err := r.ensureLocked(&r.traits, 12); err != nil {
		return infer.ModelTraits{}
	}
	if _, err := r.mod.ExportedFunction(exportModelTraits).Call(r.ctx, uint64(r.traits.ptr)); err != nil {
		return infer.ModelTraits{}
	}
	b, ok := r.mod.Memory().Read(r.traits.ptr, 12)
	if !ok {
		return infer.ModelTraits{}
	}
	return infer.ModelTraits{
		Width:     int(int32(binary.LittleEndian.Uint32(b[0:]))),
		Height:    int(int32(binary.LittleEndian.Uint32(b[4:]))),
		SpecIndex: int(int32(binary.LittleEndian.Uint32(b[8:]))),
	}
}

// Restart reloads the model variant inside the module
func (r *Runtime) Restart(specIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mod == nil {
		return false
	}
	res, err := r.mod.ExportedFunction(exportRestart).Call(r.ctx, api.EncodeI32(int32(specIndex)))
	return err == nil && api.DecodeI32(res[0]) == 1
}

// Close releases the wazero runtime and all module memory
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Runtime) closeLocked() error {
	if r.runtime == nil {
		return nil
	}
	err := r.runtime.Close(r.ctx)
	r.runtime, r.mod, r.path, r.version = nil, nil, "", ""
	r.in, r.prev, r.cur, r.traits = region{}, region{}, region{}, region{}
	return err
}

// ensureLocked grows a host-owned region to at least size bytes
func (r *Runtime) ensureLocked(reg *region, size uint32) error {
	if reg.ptr != 0 && reg.size >= size {
		return nil
	}
	if reg.ptr != 0 {
		r.freeLocked(*reg)
		*reg = region{}
	}
	res, err := r.mod.ExportedFunction(exportAlloc).Call(r.ctx, uint64(size))
	if err != nil {
		return errors.Wrapf(err, "wasm alloc (size=%d)", size)
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return errors.Newf("wasm alloc returned null (size=%d)", size)
	}
	*reg = region{ptr: ptr, size: size}
	return nil
}

func (r *Runtime) writeBytesLocked(b []byte) (uint32, error) {
	var reg region
	if err := r.ensureLocked(&reg, uint32(len(b))); err != nil {
		return 0, err
	}
	if !r.mod.Memory().Write(reg.ptr, b) {
		r.freeLocked(reg)
		return 0, errors.Newf("wasm memory write out of range at ptr=%d size=%d", reg.ptr, len(b))
	}
	return reg.ptr, nil
}

func (r *Runtime) freeLocked(reg region) {
	if reg.ptr == 0 || r.mod == nil {
		return
	}
	if _, err := r.mod.ExportedFunction(exportFree).Call(r.ctx, uint64(reg.ptr), uint64(reg.size)); err != nil {
		logger.Warnw("WASM free failed", "ptr", reg.ptr, "size", reg.size, logger.FieldError, err)
	}
}

// unpack splits a (ptr << 32) | len result
func unpack(packed uint64) (ptr, size uint32) {
	return uint32(packed >> 32), uint32(packed & 0xFFFFFFFF)
}

// encodeMask serializes a mask as u8 or little-endian f32
func encodeMask(m infer.MaskTarget) []byte {
	if !m.Float() {
		return m.U8
	}
	out := make([]byte, len(m.F32)*4)
	for i, v := range m.F32 {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeMask(b []byte, m infer.MaskTarget) {
	if !m.Float() {
		copy(m.U8, b)
		return
	}
	for i := range m.F32 {
		m.F32[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
}
