// Package frame describes raw video frames and mask buffers handed to the
// segmentation engine, and converts planar input to the single-plane color
// layout inference runtimes consume.
package frame

import (
	"fmt"
	"strings"

	"github.com/teranos/vidmask/errors"
)

// PixelFormat specifies the memory layout of a frame
type PixelFormat int

const (
	// FormatBGRA is single-plane 8-bit B, G, R, A (32 bits per pixel)
	FormatBGRA PixelFormat = iota
	// FormatI420A is planar Y, U, V, A with 2x2 chroma subsampling
	FormatI420A
)

// BitDepth is the per-channel depth of every supported format
const BitDepth = 8

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "bgra"
	case FormatI420A:
		return "i420a"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Valid reports whether f is a supported format
func (f PixelFormat) Valid() bool {
	return f == FormatBGRA || f == FormatI420A
}

// Planar reports whether the format needs conversion before inference
func (f PixelFormat) Planar() bool {
	return f == FormatI420A
}

// Channels returns the number of color components per pixel
func (f PixelFormat) Channels() int {
	if !f.Valid() {
		return 0
	}
	return 4
}

// PlaneCount returns the number of memory planes
func (f PixelFormat) PlaneCount() int {
	switch f {
	case FormatBGRA:
		return 1
	case FormatI420A:
		return 4
	default:
		return 0
	}
}

// ParsePixelFormat parses "bgra" or "i420a" (case-insensitive)
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(s) {
	case "bgra":
		return FormatBGRA, nil
	case "i420a":
		return FormatI420A, nil
	}
	return 0, errors.Wrapf(errors.ErrUnsupportedFormat, "pixel format %q", s)
}

// ChromaSize returns the dimensions of one subsampled chroma plane
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// ExpectedSize returns the byte size of a frame with the given geometry,
// or 0 for an unsupported format.
func ExpectedSize(width, height int, format PixelFormat) int {
	pixels := width * height
	switch format {
	case FormatBGRA:
		return pixels * 4
	case FormatI420A:
		cw, ch := ChromaSize(width, height)
		return pixels*2 + cw*ch*2
	default:
		return 0
	}
}

// Descriptor describes the geometry and layout of a frame or mask buffer
type Descriptor struct {
	Width    int
	Height   int
	Format   PixelFormat
	Channels int
	BitDepth int
}

// NewDescriptor fills in channels and depth for the format
func NewDescriptor(width, height int, format PixelFormat) Descriptor {
	return Descriptor{
		Width:    width,
		Height:   height,
		Format:   format,
		Channels: format.Channels(),
		BitDepth: BitDepth,
	}
}

// Pixels returns width*height
func (d Descriptor) Pixels() int {
	return d.Width * d.Height
}

// Matches reports strict equality of the (width, height, format) triple
func (d Descriptor) Matches(width, height int, format PixelFormat) bool {
	return d.Width == width && d.Height == height && d.Format == format
}

// IsZero reports whether nothing has been allocated yet
func (d Descriptor) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%d %s", d.Width, d.Height, d.Format)
}

// View is a single-plane BGRA frame handed to a runtime. Data is borrowed
// for the duration of one call.
type View struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

// NewView wraps tightly packed BGRA data
func NewView(data []byte, width, height int) View {
	return View{Data: data, Width: width, Height: height, Stride: width * 4}
}

// Pixel returns the B, G, R, A components at (x, y)
func (v View) Pixel(x, y int) (b, g, r, a uint8) {
	i := y*v.Stride + x*4
	return v.Data[i], v.Data[i+1], v.Data[i+2], v.Data[i+3]
}
