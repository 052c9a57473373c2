package segment

import (
	"github.com/teranos/vidmask/infer"
)

// backend is the one live inference variant of an engine. The software
// and texture entry points live on the concrete types; the engine holds
// exactly one of them.
type backend interface {
	kind() string
	modelTraits() infer.ModelTraits
	restart(specIndex int) bool
	close() error
}
