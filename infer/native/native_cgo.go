//go:build cgo && vendorseg

package native

/*
#cgo CFLAGS: -I${SRCDIR}/include
#cgo linux LDFLAGS: -L${SRCDIR}/../../lib -lsegvendor -lpthread -ldl -lm
#cgo darwin LDFLAGS: -L${SRCDIR}/../../lib -lsegvendor -framework CoreML -framework IOSurface
#cgo windows LDFLAGS: -L${SRCDIR}/../../lib -lsegvendor -ld3d11 -ldxgi

#include "segvendor.h"
#include <stdlib.h>
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/infer"
)

// Available reports whether the vendor library is linked into this build
const Available = true

// Runtime wraps a vendor context
type Runtime struct {
	mu  sync.Mutex
	ctx *C.segvendor_ctx
}

func open() (infer.TextureRuntime, error) {
	ctx := C.segvendor_create()
	if ctx == nil {
		return nil, errors.New("segvendor_create returned nil (check vendor library)")
	}
	r := &Runtime{ctx: ctx}

	// Safety net; callers still Close.
	runtime.SetFinalizer(r, func(r *Runtime) {
		r.Close()
	})
	return r, nil
}

func (r *Runtime) Version() string {
	return C.GoString(C.segvendor_version())
}

func (r *Runtime) ConfigureFile(tuningPath, modelDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return errors.ErrClosed
	}

	cTuning := C.CString(tuningPath)
	defer C.free(unsafe.Pointer(cTuning))
	cModels := C.CString(modelDir)
	defer C.free(unsafe.Pointer(cModels))

	if status := infer.Status(C.segvendor_configure_file(r.ctx, cTuning, cModels)); !status.OK() {
		return errors.Newf("vendor rejected tuning file %s (status %s)", tuningPath, status)
	}
	return nil
}

func (r *Runtime) Apply(p infer.Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return errors.ErrClosed
	}

	cParams := C.segvendor_params{
		processor: C.int32_t(p.Processor),
		blur:      C.int32_t(p.Blur),
	}
	if status := infer.Status(C.segvendor_apply(r.ctx, &cParams)); !status.OK() {
		return errors.Newf("vendor rejected params %s/%s (status %s)", p.Processor, p.Blur, status)
	}
	return nil
}

// NextFrame runs zero-copy inference; the vendor status is returned verbatim
func (r *Runtime) NextFrame(in, out infer.TextureHandle) infer.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return infer.StatusNotInitialized
	}
	return infer.Status(C.segvendor_next_frame(r.ctx, C.uintptr_t(in), C.uintptr_t(out)))
}

func (r *Runtime) ModelTraits() infer.ModelTraits {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return infer.ModelTraits{}
	}

	var t C.segvendor_traits
	if !infer.Status(C.segvendor_model_traits(r.ctx, &t)).OK() {
		return infer.ModelTraits{}
	}
	return infer.ModelTraits{
		Width:     int(t.width),
		Height:    int(t.height),
		SpecIndex: int(t.spec_index),
	}
}

func (r *Runtime) Restart(specIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx != nil && C.segvendor_restart(r.ctx, C.int32_t(specIndex)) == 1
}

func (r *Runtime) HasDedicatedGPUMemory() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx != nil && C.segvendor_has_dedicated_gpu_memory(r.ctx) == 1
}

// Close frees the vendor context. Safe to call multiple times.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		C.segvendor_destroy(r.ctx)
		r.ctx = nil
	}
	return nil
}
