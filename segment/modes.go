package segment

import (
	"fmt"
	"strings"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/infer"
)

// Pipeline selects the backend variant for an engine's lifetime
type Pipeline int

const (
	// PipelinePortableGPU is deprecated; it behaves like PipelinePortableCPU
	// with alpha thresholds passed through to hardware post-processing.
	PipelinePortableGPU Pipeline = iota
	PipelinePortableCPU
	PipelineAcceleratedWindows
	PipelineAcceleratedDarwin
)

var pipelineNames = map[Pipeline]string{
	PipelinePortableGPU:        "portable-gpu",
	PipelinePortableCPU:        "portable-cpu",
	PipelineAcceleratedWindows: "accelerated-windows",
	PipelineAcceleratedDarwin:  "accelerated-darwin",
}

func (p Pipeline) String() string {
	if name, ok := pipelineNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Pipeline(%d)", int(p))
}

// Accelerated reports whether p runs on texture handles
func (p Pipeline) Accelerated() bool {
	return p == PipelineAcceleratedWindows || p == PipelineAcceleratedDarwin
}

// ParsePipeline parses a config value such as "portable-cpu"
func ParsePipeline(s string) (Pipeline, error) {
	for p, name := range pipelineNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, errors.NewInvalidRequestError("unknown pipeline %q", s)
}

// MaskType is the mask element type, fixed at first allocation
type MaskType int

const (
	MaskUint8 MaskType = iota
	MaskFloat32
)

func (m MaskType) String() string {
	switch m {
	case MaskUint8:
		return "uint8"
	case MaskFloat32:
		return "float32"
	default:
		return fmt.Sprintf("MaskType(%d)", int(m))
	}
}

// ParseMaskType parses "uint8" or "float32"
func ParseMaskType(s string) (MaskType, error) {
	switch strings.ToLower(s) {
	case "uint8", "u8":
		return MaskUint8, nil
	case "float32", "f32", "float":
		return MaskFloat32, nil
	}
	return 0, errors.NewInvalidRequestError("unknown mask type %q", s)
}

// SegmentationMode selects whether masks are computed
type SegmentationMode int

const (
	ModeNone SegmentationMode = iota
	ModeSilhouette
)

func (m SegmentationMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSilhouette:
		return "silhouette"
	default:
		return fmt.Sprintf("SegmentationMode(%d)", int(m))
	}
}

// ParseSegmentationMode parses "none" or "silhouette"
func ParseSegmentationMode(s string) (SegmentationMode, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ModeNone, nil
	case "silhouette":
		return ModeSilhouette, nil
	}
	return 0, errors.NewInvalidRequestError("unknown segmentation mode %q", s)
}

// BlurMode selects background blur strength
type BlurMode int

const (
	BlurNone BlurMode = iota
	BlurLight
	BlurStrong
)

func (b BlurMode) String() string {
	switch b {
	case BlurNone:
		return "none"
	case BlurLight:
		return "light"
	case BlurStrong:
		return "strong"
	default:
		return fmt.Sprintf("BlurMode(%d)", int(b))
	}
}

// ParseBlurMode parses "none", "light" or "strong"
func ParseBlurMode(s string) (BlurMode, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return BlurNone, nil
	case "light":
		return BlurLight, nil
	case "strong":
		return BlurStrong, nil
	}
	return 0, errors.NewInvalidRequestError("unknown blur mode %q", s)
}

// paramsFor derives the lightweight patch for an accelerated runtime.
// Blur takes priority over a bare silhouette.
func paramsFor(mode SegmentationMode, blur BlurMode) infer.Params {
	switch {
	case blur == BlurLight:
		return infer.Params{Processor: infer.ProcessorBlur, Blur: infer.BlurLight}
	case blur == BlurStrong:
		return infer.Params{Processor: infer.ProcessorBlur, Blur: infer.BlurStrong}
	case mode == ModeSilhouette:
		return infer.Params{Processor: infer.ProcessorSilhouette}
	default:
		return infer.Params{Processor: infer.ProcessorPassthrough}
	}
}

// HostPipeline returns the accelerated pipeline this build can run, and
// false when the platform has none.
func HostPipeline() (Pipeline, bool) {
	return hostPipeline, hostPipeline.Accelerated()
}

// HostSurface names the texture handle type SegmentTexture expects on this
// build, empty when there is no accelerated pipeline
func HostSurface() string {
	return hostSurface
}
