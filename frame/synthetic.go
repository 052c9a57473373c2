package frame

// Disc renders a bright disc of radius r centered at (cx, cy) on a dark
// background. Used by `vidmask run` when no input file is given and by tests.
func Disc(width, height, cx, cy, r int, format PixelFormat) []byte {
	const fgY, bgY = 220, 24
	buf := make([]byte, ExpectedSize(width, height, format))
	inside := func(x, y int) bool {
		dx, dy := x-cx, y-cy
		return dx*dx+dy*dy <= r*r
	}

	switch format {
	case FormatBGRA:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := byte(bgY)
				if inside(x, y) {
					v = fgY
				}
				o := (y*width + x) * 4
				buf[o], buf[o+1], buf[o+2], buf[o+3] = v, v, v, 255
			}
		}
	case FormatI420A:
		pixels := width * height
		cw, ch := ChromaSize(width, height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := byte(bgY)
				if inside(x, y) {
					v = fgY
				}
				buf[y*width+x] = v
			}
		}
		for i := pixels; i < pixels+2*cw*ch; i++ {
			buf[i] = 128
		}
		for i := pixels + 2*cw*ch; i < len(buf); i++ {
			buf[i] = 255
		}
	}
	return buf
}
