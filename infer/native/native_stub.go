//go:build !cgo || !vendorseg

package native

import (
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/infer"
)

// Available reports whether the vendor library is linked into this build
const Available = false

func open() (infer.TextureRuntime, error) {
	return nil, errors.WithHint(
		errors.Wrap(errors.ErrNotAvailable, "native texture runtime"),
		"build with CGO_ENABLED=1 and -tags vendorseg")
}
