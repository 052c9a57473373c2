// Package reference is a pure-Go portable runtime. It segments by luma:
// the frame is sampled onto a small analysis grid, split into foreground
// and background with an Otsu (or fixed) threshold, and upsampled back to
// frame resolution with bilinear edges.
//
// It exists so the portable pipeline works on any platform without a vendor
// library and gives tests a deterministic runtime.
package reference

import (
	"sync"

	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/internal/util"
)

// Name is the registry name of this runtime
const Name = "reference"

// Version is reported to the registry compatibility check
const Version = "1.0.0"

func init() {
	infer.Register(Name, func() (infer.Runtime, error) { return New(), nil })
}

// Runtime implements infer.Runtime
type Runtime struct {
	mu         sync.Mutex
	configured bool
	tuning     Tuning
	specIndex  int
	grid       Variant
	alphaLow   int
	alphaHigh  int

	luma   []uint8
	coarse []float32
}

// New returns an unconfigured runtime
func New() *Runtime {
	return &Runtime{}
}

func (r *Runtime) Version() string { return Version }

// Configure reads and applies the tuning file named by s
func (r *Runtime) Configure(s infer.Settings) error {
	data, err := infer.ReadTuningFile(s.FS(), s.TuningFile)
	if err != nil {
		return err
	}
	t, err := ParseTuning(data)
	if err != nil {
		return err
	}

	idx := s.SpecIndex
	grid, ok := t.variant(idx)
	if !ok {
		idx = 0
		grid, _ = t.variant(0)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tuning = t
	r.specIndex = max(idx, 0)
	r.setGrid(grid)
	r.alphaLow, r.alphaHigh = t.AlphaLow, t.AlphaHigh
	if s.AlphaPassthrough {
		r.alphaLow, r.alphaHigh = 0, 255
	}
	r.configured = true
	return nil
}

func (r *Runtime) setGrid(g Variant) {
	r.grid = g
	n := g.ModelWidth * g.ModelHeight
	r.luma = make([]uint8, n)
	r.coarse = make([]float32, n)
}

// ModelTraits reports the analysis grid as the model size
func (r *Runtime) ModelTraits() infer.ModelTraits {
	r.mu.Lock()
	defer r.mu.Unlock()
	return infer.ModelTraits{Width: r.grid.ModelWidth, Height: r.grid.ModelHeight, SpecIndex: r.specIndex}
}

// Restart reselects a model variant. Unknown indices fail and leave the
// runtime unchanged.
func (r *Runtime) Restart(specIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configured {
		return false
	}
	grid, ok := r.tuning.variant(specIndex)
	if !ok {
		return false
	}
	r.specIndex = max(specIndex, 0)
	r.setGrid(grid)
	return true
}

// NextFrame writes a mask for in into cur. prev is blended in when the
// tuning asks for temporal smoothing.
func (r *Runtime) NextFrame(in frame.View, prev, cur infer.MaskTarget) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pixels := in.Width * in.Height
	if !r.configured || pixels == 0 || cur.Len() != pixels || len(in.Data) < in.Stride*in.Height {
		return false, false
	}

	gw, gh := r.grid.ModelWidth, r.grid.ModelHeight
	var hist [256]int
	for gy := 0; gy < gh; gy++ {
		sy := min((2*gy+1)*in.Height/(2*gh), in.Height-1)
		for gx := 0; gx < gw; gx++ {
			sx := min((2*gx+1)*in.Width/(2*gw), in.Width-1)
			b, g, rr, _ := in.Pixel(sx, sy)
			l := frame.Luma(b, g, rr)
			r.luma[gy*gw+gx] = l
			hist[l]++
		}
	}

	threshold := r.tuning.Threshold
	if threshold == 0 {
		threshold = otsuThreshold(&hist, gw*gh)
	}
	for i, l := range r.luma {
		fg := int(l) > threshold
		if r.tuning.Invert {
			fg = !fg
		}
		if fg {
			r.coarse[i] = 1
		} else {
			r.coarse[i] = 0
		}
	}

	smooth := r.tuning.Smoothing
	blend := smooth > 0 && prev.Len() == pixels
	lo, hi := float32(r.alphaLow)/255, float32(r.alphaHigh)/255

	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			v := r.sample(x, y, in.Width, in.Height)
			v = (v - lo) / (hi - lo)
			i := y*in.Width + x
			if blend {
				v = smooth*prev.At(i) + (1-smooth)*util.Clamp(v, 0, 1)
			}
			cur.Set(i, v)
		}
	}
	return true, true
}

// sample bilinearly interpolates the coarse mask at frame pixel (x, y)
func (r *Runtime) sample(x, y, w, h int) float32 {
	gw, gh := r.grid.ModelWidth, r.grid.ModelHeight
	fx := (float32(x)+0.5)*float32(gw)/float32(w) - 0.5
	fy := (float32(y)+0.5)*float32(gh)/float32(h) - 0.5
	x0, y0 := util.Clamp(int(util.Floor32(fx)), 0, gw-1), util.Clamp(int(util.Floor32(fy)), 0, gh-1)
	x1, y1 := min(x0+1, gw-1), min(y0+1, gh-1)
	tx, ty := util.Clamp(fx-float32(x0), 0, 1), util.Clamp(fy-float32(y0), 0, 1)

	top := r.coarse[y0*gw+x0]*(1-tx) + r.coarse[y0*gw+x1]*tx
	bottom := r.coarse[y1*gw+x0]*(1-tx) + r.coarse[y1*gw+x1]*tx
	return top*(1-ty) + bottom*ty
}

// Close releases buffers. The runtime must be reconfigured before reuse.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configured = false
	r.luma, r.coarse = nil, nil
	return nil
}
