// Package native binds the vendor segmentation library through cgo.
//
// The accelerated runtime operates on platform texture handles and is only
// compiled with CGO_ENABLED=1 and -tags vendorseg. Other builds register a
// stub whose factory returns errors.ErrNotAvailable, so selecting an
// accelerated pipeline degrades to an uninitialized engine instead of a
// link failure.
//
// Build Requirements:
//
//	libsegvendor in lib/ (or on the linker path)
//	CGO enabled (CGO_ENABLED=1)
//	Build tag: -tags vendorseg
package native

import "github.com/teranos/vidmask/infer"

// Name is the registry name of the native texture runtime
const Name = "native"

func init() {
	infer.RegisterTexture(Name, open)
}
