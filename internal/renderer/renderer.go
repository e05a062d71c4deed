// Package renderer provides the rendering-engine collaborators that own
// live page resources on behalf of the engine.
package renderer

import (
	"errors"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

// ErrUnknownHandle is returned for a handle the surface does not own.
var ErrUnknownHandle = errors.New("unknown resource handle")

// Surface is a domain.Surface that can report load completions and be shut down.
type Surface interface {
	domain.Surface

	// SetLoadListener installs the callback for load completions. It must
	// be called before the first CreateResource.
	SetLoadListener(l domain.LoadListener)
	// Live returns the number of live resources.
	Live() int
	Close() error
}
