package domain

import "context"

// ResourceHandle identifies a live page resource owned by the surface.
type ResourceHandle uint64

// NoResource is the zero handle.
const NoResource ResourceHandle = 0

// SuspendLevel selects how deeply a live resource is paused.
type SuspendLevel int

const (
	// SuspendFreeze pauses execution and rendering.
	SuspendFreeze SuspendLevel = iota
	// SuspendSnooze additionally lets the surface reclaim engine-level resources.
	SuspendSnooze
)

func (l SuspendLevel) String() string {
	if l == SuspendSnooze {
		return "snooze"
	}
	return "freeze"
}

// PageState is what the surface reports about a live resource.
type PageState struct {
	URL            string
	Title          string
	ScrollPosition float64
}

// LoadEvent reports that a load issued by CreateResource has finished.
type LoadEvent struct {
	Tab    TabID
	Handle ResourceHandle
	Err    error
}

// LoadListener receives load completions. Implementations must not block.
type LoadListener func(LoadEvent)

// Surface is the rendering-engine collaborator that owns live page resources.
type Surface interface {
	// CreateResource creates a live resource and begins loading url.
	// Completion is reported asynchronously with a LoadEvent keyed by tab.
	CreateResource(ctx context.Context, tab TabID, url string) (ResourceHandle, error)
	DestroyResource(ctx context.Context, h ResourceHandle) error
	SuspendResource(ctx context.Context, h ResourceHandle, level SuspendLevel) error
	ResumeResource(ctx context.Context, h ResourceHandle) error
	ReadState(ctx context.Context, h ResourceHandle) (PageState, error)
	ApplyScroll(ctx context.Context, h ResourceHandle, pos float64) error
	// CancelLoad is fire-and-forget; the surface may still report completion.
	CancelLoad(h ResourceHandle)
}
