package frame

import (
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/internal/util"
)

// ConvertI420AToBGRA converts planar Y, U, V, A (BT.601 limited range) into
// tightly packed BGRA. dst must hold width*height*4 bytes and src must hold
// ExpectedSize(width, height, FormatI420A) bytes.
func ConvertI420AToBGRA(dst, src []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.NewInvalidRequestError("frame %dx%d has no area", width, height)
	}
	if need := ExpectedSize(width, height, FormatI420A); len(src) < need {
		return errors.NewInvalidRequestError("i420a source has %d bytes, need %d", len(src), need)
	}
	if need := width * height * 4; len(dst) < need {
		return errors.NewInvalidRequestError("bgra destination has %d bytes, need %d", len(dst), need)
	}

	pixels := width * height
	cw, ch := ChromaSize(width, height)
	yPlane := src[:pixels]
	uPlane := src[pixels : pixels+cw*ch]
	vPlane := src[pixels+cw*ch : pixels+2*cw*ch]
	aPlane := src[pixels+2*cw*ch : pixels*2+2*cw*ch]

	for y := 0; y < height; y++ {
		row := y * width
		crow := (y / 2) * cw
		for x := 0; x < width; x++ {
			c := int(yPlane[row+x]) - 16
			d := int(uPlane[crow+x/2]) - 128
			e := int(vPlane[crow+x/2]) - 128

			r := (298*c + 409*e + 128) >> 8
			g := (298*c - 100*d - 208*e + 128) >> 8
			b := (298*c + 516*d + 128) >> 8

			o := (row + x) * 4
			dst[o] = clamp8(b)
			dst[o+1] = clamp8(g)
			dst[o+2] = clamp8(r)
			dst[o+3] = aPlane[row+x]
		}
	}
	return nil
}

// Luma returns the BT.601 luma of a BGRA pixel
func Luma(b, g, r uint8) uint8 {
	return uint8((77*int(r) + 150*int(g) + 29*int(b) + 128) >> 8)
}

func clamp8(v int) uint8 {
	return uint8(util.Clamp(v, 0, 255))
}
