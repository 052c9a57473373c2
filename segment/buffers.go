package segment

import (
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
)

// buffers owns every pixel buffer of an engine. It is only touched by the
// processing goroutine.
type buffers struct {
	desc frame.Descriptor

	maskType    MaskType
	maskTypeSet bool

	current  infer.MaskTarget
	previous infer.MaskTarget
	hasNew   bool

	// convert holds BGRA pixels for planar input; nil for BGRA input.
	convert []byte

	opaqueU8  []uint8
	opaqueF32 []float32

	allocations int
}

func (b *buffers) allocated() bool {
	return !b.desc.IsZero()
}

// canReuseBuffers reports strict equality with the allocated triple
func (b *buffers) canReuseBuffers(width, height int, format frame.PixelFormat) bool {
	return b.allocated() && b.desc.Matches(width, height, format)
}

// allocateBuffers sizes every buffer for (width, height, format). The mask
// type is fixed by the first call.
func (b *buffers) allocateBuffers(width, height int, format frame.PixelFormat, maskType MaskType) {
	if b.maskTypeSet && maskType != b.maskType {
		errors.ContractViolation("mask type %s requested, engine allocated %s", maskType, b.maskType)
	}

	b.release()
	b.desc = frame.NewDescriptor(width, height, format)
	b.maskType, b.maskTypeSet = maskType, true

	pixels := width * height
	switch maskType {
	case MaskFloat32:
		b.current = infer.MaskTarget{F32: make([]float32, pixels)}
		b.previous = infer.MaskTarget{F32: make([]float32, pixels)}
		b.opaqueF32 = make([]float32, pixels)
		for i := range b.opaqueF32 {
			b.opaqueF32[i] = 1
		}
	default:
		b.current = infer.MaskTarget{U8: make([]uint8, pixels)}
		b.previous = infer.MaskTarget{U8: make([]uint8, pixels)}
		b.opaqueU8 = make([]uint8, pixels)
		for i := range b.opaqueU8 {
			b.opaqueU8[i] = 255
		}
	}

	if format.Planar() {
		b.convert = make([]byte, frame.ExpectedSize(width, height, frame.FormatBGRA))
	}
	b.allocations++
}

func (b *buffers) release() {
	b.desc = frame.Descriptor{}
	b.current, b.previous = infer.MaskTarget{}, infer.MaskTarget{}
	b.hasNew = false
	b.convert = nil
	b.opaqueU8, b.opaqueF32 = nil, nil
}

func (b *buffers) swap() {
	b.current, b.previous = b.previous, b.current
}

// newest is the mask a consumer should read
func (b *buffers) newest() infer.MaskTarget {
	if b.hasNew {
		return b.current
	}
	return b.previous
}

// opaqueReady reports whether an opaque mask of type want exists. A
// mismatched type after allocation is still a contract violation.
func (b *buffers) opaqueReady(want MaskType) bool {
	if !b.maskTypeSet {
		return false
	}
	if b.maskType != want {
		errors.ContractViolation("opaque %s mask requested, engine allocated %s", want, b.maskType)
	}
	return true
}

func (b *buffers) requireMaskType(want MaskType) {
	if !b.maskTypeSet {
		errors.ContractViolation("%s mask requested before any frame was allocated", want)
	}
	if b.maskType != want {
		errors.ContractViolation("%s mask requested, engine allocated %s", want, b.maskType)
	}
}
