package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/errors"
)

func TestPixelFormat(t *testing.T) {
	assert.Equal(t, "bgra", FormatBGRA.String())
	assert.Equal(t, "i420a", FormatI420A.String())
	assert.Equal(t, "PixelFormat(9)", PixelFormat(9).String())

	assert.Equal(t, 1, FormatBGRA.PlaneCount())
	assert.Equal(t, 4, FormatI420A.PlaneCount())
	assert.Equal(t, 0, PixelFormat(9).PlaneCount())
	assert.Equal(t, 4, FormatI420A.Channels())
	assert.False(t, FormatBGRA.Planar())
	assert.True(t, FormatI420A.Planar())
	assert.False(t, PixelFormat(-1).Valid())
}

func TestParsePixelFormat(t *testing.T) {
	f, err := ParsePixelFormat("I420A")
	require.NoError(t, err)
	assert.Equal(t, FormatI420A, f)

	_, err = ParsePixelFormat("nv12")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedFormat))
}

func TestExpectedSize(t *testing.T) {
	tests := []struct {
		w, h   int
		format PixelFormat
		want   int
	}{
		{640, 480, FormatBGRA, 640 * 480 * 4},
		{640, 480, FormatI420A, 640*480*2 + 320*240*2},
		{3, 3, FormatI420A, 9*2 + 2*2*2},
		{640, 480, PixelFormat(7), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpectedSize(tt.w, tt.h, tt.format), "%dx%d %s", tt.w, tt.h, tt.format)
	}
}

func TestDescriptor(t *testing.T) {
	var zero Descriptor
	assert.True(t, zero.IsZero())

	d := NewDescriptor(1280, 720, FormatBGRA)
	assert.Equal(t, 4, d.Channels)
	assert.Equal(t, 8, d.BitDepth)
	assert.Equal(t, 1280*720, d.Pixels())
	assert.True(t, d.Matches(1280, 720, FormatBGRA))
	assert.False(t, d.Matches(1280, 720, FormatI420A))
	assert.False(t, d.Matches(1280, 721, FormatBGRA))
	assert.Equal(t, "1280x720 bgra", d.String())
}

// solidI420A builds a frame where every pixel has the same Y, U, V, A.
func solidI420A(w, h int, y, u, v, a byte) []byte {
	buf := make([]byte, ExpectedSize(w, h, FormatI420A))
	cw, ch := ChromaSize(w, h)
	p := w * h
	for i := range buf {
		switch {
		case i < p:
			buf[i] = y
		case i < p+cw*ch:
			buf[i] = u
		case i < p+2*cw*ch:
			buf[i] = v
		default:
			buf[i] = a
		}
	}
	return buf
}

func TestConvertI420AToBGRA(t *testing.T) {
	tests := []struct {
		name       string
		y, u, v, a byte
		b, g, r    byte
	}{
		{"black", 16, 128, 128, 255, 0, 0, 0},
		{"white", 235, 128, 128, 200, 255, 255, 255},
		{"clamped above white", 255, 128, 128, 0, 255, 255, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := 5, 3
			dst := make([]byte, w*h*4)
			require.NoError(t, ConvertI420AToBGRA(dst, solidI420A(w, h, tt.y, tt.u, tt.v, tt.a), w, h))

			v := NewView(dst, w, h)
			b, g, r, a := v.Pixel(4, 2)
			assert.Equal(t, tt.b, b)
			assert.Equal(t, tt.g, g)
			assert.Equal(t, tt.r, r)
			assert.Equal(t, tt.a, a, "alpha plane is copied verbatim")
		})
	}
}

func TestConvertI420AToBGRARed(t *testing.T) {
	// BT.601 red: Y=81 U=90 V=240
	dst := make([]byte, 4*2*2)
	require.NoError(t, ConvertI420AToBGRA(dst, solidI420A(2, 2, 81, 90, 240, 255), 2, 2))

	b, g, r, _ := NewView(dst, 2, 2).Pixel(0, 0)
	assert.InDelta(t, 255, int(r), 2)
	assert.InDelta(t, 0, int(g), 2)
	assert.InDelta(t, 0, int(b), 2)
}

func TestConvertI420AToBGRAErrors(t *testing.T) {
	assert.Error(t, ConvertI420AToBGRA(make([]byte, 16), make([]byte, 2), 2, 2), "short source")
	assert.Error(t, ConvertI420AToBGRA(make([]byte, 3), solidI420A(2, 2, 0, 0, 0, 0), 2, 2), "short destination")
	assert.Error(t, ConvertI420AToBGRA(nil, nil, 0, 2), "zero area")
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(0), Luma(0, 0, 0))
	assert.Equal(t, uint8(255), Luma(255, 255, 255))
	assert.Greater(t, Luma(0, 255, 0), Luma(255, 0, 0), "green weighs more than blue")
}

func TestDisc(t *testing.T) {
	bgra := Disc(64, 48, 32, 24, 10, FormatBGRA)
	require.Len(t, bgra, ExpectedSize(64, 48, FormatBGRA))
	v := NewView(bgra, 64, 48)
	b, _, _, a := v.Pixel(32, 24)
	assert.Equal(t, uint8(220), b)
	assert.Equal(t, uint8(255), a)
	b, _, _, _ = v.Pixel(0, 0)
	assert.Equal(t, uint8(24), b)

	planar := Disc(64, 48, 32, 24, 10, FormatI420A)
	require.Len(t, planar, ExpectedSize(64, 48, FormatI420A))
	dst := make([]byte, 64*48*4)
	require.NoError(t, ConvertI420AToBGRA(dst, planar, 64, 48))
	cb, _, _, _ := NewView(dst, 64, 48).Pixel(32, 24)
	bb, _, _, _ := NewView(dst, 64, 48).Pixel(1, 1)
	assert.Greater(t, cb, bb)
}
