// Package infer defines the capability boundary between the segmentation
// engine and vendor inference runtimes.
//
// Two runtime shapes exist:
//   - Runtime: portable path, consumes a BGRA frame in memory and writes a
//     mask into engine-owned buffers
//   - TextureRuntime: accelerated path, consumes and produces opaque
//     platform texture handles (zero-copy)
//
// Implementations register themselves by name (see Register) from an init
// function, so a binary only carries the runtimes it imports.
package infer

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/teranos/vidmask/frame"
)

// Status is a vendor status code. Zero is success; other values are
// returned to callers verbatim.
type Status int32

const (
	StatusOK             Status = 0
	StatusNotInitialized Status = -1
	StatusUnsupported    Status = -2
	StatusInvalidHandle  Status = -3
)

// OK reports whether s is the success code
func (s Status) OK() bool { return s == StatusOK }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInitialized:
		return "not-initialized"
	case StatusUnsupported:
		return "unsupported"
	case StatusInvalidHandle:
		return "invalid-handle"
	default:
		return fmt.Sprintf("vendor(%d)", int32(s))
	}
}

// TextureHandle is an opaque platform texture or surface handle
// (a D3D11 texture on Windows, an IOSurface on macOS).
type TextureHandle uintptr

// ModelTraits describes the active model
type ModelTraits struct {
	Width  int
	Height int
	// SpecIndex selects the same model variant again after a restart.
	SpecIndex int
}

// DefaultSpecIndex asks a runtime for its default model variant
const DefaultSpecIndex = -1

// MaskTarget is an engine-owned mask buffer of exactly one element type.
type MaskTarget struct {
	U8  []uint8
	F32 []float32
}

// Float reports whether the target holds float32 elements
func (m MaskTarget) Float() bool { return m.F32 != nil }

// Len returns the element count
func (m MaskTarget) Len() int {
	if m.F32 != nil {
		return len(m.F32)
	}
	return len(m.U8)
}

// Set stores a coverage value in [0,1] at i, scaled for the element type
func (m MaskTarget) Set(i int, v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	if m.F32 != nil {
		m.F32[i] = v
		return
	}
	m.U8[i] = uint8(v*255 + 0.5)
}

// At returns the value at i in [0,1]
func (m MaskTarget) At(i int) float32 {
	if m.F32 != nil {
		return m.F32[i]
	}
	return float32(m.U8[i]) / 255
}

// Settings configures a portable runtime from its resolved tuning file.
type Settings struct {
	TuningFile string
	ModelDir   string
	// Fs is used for all file access; nil means the OS filesystem.
	Fs afero.Fs
	// SpecIndex selects a model variant; DefaultSpecIndex for the tuning default.
	SpecIndex int
	// AlphaPassthrough forces alpha thresholds to 0/255. The portable GPU
	// pipeline applies thresholds in hardware post-processing.
	AlphaPassthrough bool
}

// FS returns s.Fs or the OS filesystem
func (s Settings) FS() afero.Fs {
	if s.Fs == nil {
		return afero.NewOsFs()
	}
	return s.Fs
}

// Processor is the post-processing applied by an accelerated runtime
type Processor int

const (
	ProcessorPassthrough Processor = iota
	ProcessorSilhouette
	ProcessorBlur
)

func (p Processor) String() string {
	switch p {
	case ProcessorPassthrough:
		return "passthrough"
	case ProcessorSilhouette:
		return "silhouette"
	case ProcessorBlur:
		return "blur"
	default:
		return fmt.Sprintf("Processor(%d)", int(p))
	}
}

// BlurVariant selects blur strength for ProcessorBlur
type BlurVariant int

const (
	BlurNone BlurVariant = iota
	BlurLight
	BlurStrong
)

func (b BlurVariant) String() string {
	switch b {
	case BlurNone:
		return "none"
	case BlurLight:
		return "light"
	case BlurStrong:
		return "strong"
	default:
		return fmt.Sprintf("BlurVariant(%d)", int(b))
	}
}

// Params is the lightweight in-memory patch applied to an accelerated
// runtime when modes change but the tuning file did not.
type Params struct {
	Processor Processor
	Blur      BlurVariant
}

// Runtime is the portable backend capability.
type Runtime interface {
	Version() string
	Configure(Settings) error
	// NextFrame segments in, reading prev and writing cur. ok reports
	// success; wrote reports whether cur was modified.
	NextFrame(in frame.View, prev, cur MaskTarget) (ok bool, wrote bool)
	ModelTraits() ModelTraits
	Restart(specIndex int) bool
	Close() error
}

// TextureRuntime is the accelerated backend capability.
type TextureRuntime interface {
	Version() string
	ConfigureFile(tuningPath, modelDir string) error
	Apply(Params) error
	NextFrame(in, out TextureHandle) Status
	ModelTraits() ModelTraits
	Restart(specIndex int) bool
	HasDedicatedGPUMemory() bool
	Close() error
}
