package reference

import (
	"encoding/json"

	"github.com/teranos/vidmask/errors"
)

// Tuning holds the reference runtime's parameters, read from the resolved
// tuning file. Missing keys keep DefaultTuning values.
type Tuning struct {
	Threshold   int       `json:"threshold"`    // 0 = Otsu per frame, 1..255 = fixed luma cut
	Invert      bool      `json:"invert"`       // foreground is darker than background
	ModelWidth  int       `json:"model_width"`  // analysis grid width
	ModelHeight int       `json:"model_height"` // analysis grid height
	Smoothing   float32   `json:"smoothing"`    // 0..1 weight of the previous mask
	AlphaLow    int       `json:"alpha_low"`    // coverage at or below maps to 0
	AlphaHigh   int       `json:"alpha_high"`   // coverage at or above maps to max
	Variants    []Variant `json:"variants"`     // model variants addressable by spec index
}

// Variant is an alternative analysis grid selectable through Restart
type Variant struct {
	ModelWidth  int `json:"model_width"`
	ModelHeight int `json:"model_height"`
}

// DefaultTuning returns the values used for keys a tuning file omits
func DefaultTuning() Tuning {
	return Tuning{
		ModelWidth:  256,
		ModelHeight: 144,
		Smoothing:   0,
		AlphaLow:    0,
		AlphaHigh:   255,
	}
}

// ParseTuning decodes and validates a tuning document
func ParseTuning(data []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := json.Unmarshal(data, &t); err != nil {
		return Tuning{}, errors.Wrap(err, "tuning file is not valid JSON")
	}
	if err := t.validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.Threshold < 0 || t.Threshold > 255 {
		return errors.NewInvalidRequestError("threshold must be 0..255, got %d", t.Threshold)
	}
	if t.ModelWidth <= 0 || t.ModelHeight <= 0 {
		return errors.NewInvalidRequestError("model size must be positive, got %dx%d", t.ModelWidth, t.ModelHeight)
	}
	if t.Smoothing < 0 || t.Smoothing >= 1 {
		return errors.NewInvalidRequestError("smoothing must be in [0,1), got %g", t.Smoothing)
	}
	if t.AlphaLow < 0 || t.AlphaHigh > 255 || t.AlphaLow >= t.AlphaHigh {
		return errors.NewInvalidRequestError("alpha thresholds must satisfy 0 <= low < high <= 255, got %d/%d", t.AlphaLow, t.AlphaHigh)
	}
	for i, v := range t.Variants {
		if v.ModelWidth <= 0 || v.ModelHeight <= 0 {
			return errors.NewInvalidRequestError("variant %d model size must be positive", i)
		}
	}
	return nil
}

// variant returns the grid for a spec index; index 0 and DefaultSpecIndex
// are the top-level model size.
func (t Tuning) variant(specIndex int) (Variant, bool) {
	if specIndex <= 0 {
		return Variant{ModelWidth: t.ModelWidth, ModelHeight: t.ModelHeight}, true
	}
	if specIndex > len(t.Variants) {
		return Variant{}, false
	}
	return t.Variants[specIndex-1], true
}
