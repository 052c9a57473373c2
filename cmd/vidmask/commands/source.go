package commands

import (
	"bufio"
	"io"
	"os"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
)

// frameSource yields raw frames for `vidmask run`
type frameSource interface {
	// Next returns the next frame and its geometry, or io.EOF when done
	Next() (raw []byte, width, height int, err error)
	Close() error
}

// discSource renders a bright disc moving across a dark background.
// From frame resizeAt on, frames are rendered at half resolution.
type discSource struct {
	width, height int
	format        frame.PixelFormat
	resizeAt      int
	n             int
}

func newDiscSource(width, height int, format frame.PixelFormat, resizeAt int) *discSource {
	return &discSource{width: width, height: height, format: format, resizeAt: resizeAt}
}

func (s *discSource) Next() ([]byte, int, int, error) {
	w, h := s.width, s.height
	if s.resizeAt > 0 && s.n >= s.resizeAt {
		w, h = max(w/2, 2), max(h/2, 2)
	}
	r := min(w, h) / 4
	span := max(w-2*r, 1)
	// Bounce horizontally, one pixel step per frame.
	step := s.n % (2 * span)
	if step >= span {
		step = 2*span - step
	}
	s.n++
	return frame.Disc(w, h, r+step, h/2, r, s.format), w, h, nil
}

func (s *discSource) Close() error { return nil }

// rawSource reads back-to-back frames of one geometry from a file
type rawSource struct {
	f             *os.File
	r             *bufio.Reader
	width, height int
	buf           []byte
}

func newRawSource(path string, width, height int, format frame.PixelFormat) (*rawSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to open input %s", path),
			"--input expects raw frames in the --format layout, back to back")
	}
	return &rawSource{
		f:      f,
		r:      bufio.NewReaderSize(f, 1<<20),
		width:  width,
		height: height,
		buf:    make([]byte, frame.ExpectedSize(width, height, format)),
	}, nil
}

func (s *rawSource) Next() ([]byte, int, int, error) {
	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, 0, 0, errors.Newf("input ends with a partial frame (%d bytes per frame)", len(s.buf))
		}
		return nil, 0, 0, err
	}
	return s.buf, s.width, s.height, nil
}

func (s *rawSource) Close() error {
	return s.f.Close()
}
