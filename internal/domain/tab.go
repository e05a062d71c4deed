package domain

import "time"

// TabID is a stable tab handle. It is never reused within a process.
type TabID uint64

// GroupID is a stable group handle. It is never reused within a process.
type GroupID uint64

// NoTab and NoGroup are the zero handles.
const (
	NoTab   TabID   = 0
	NoGroup GroupID = 0
)

// Snapshot is the minimal state kept for a hibernated tab.
type Snapshot struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	ScrollPosition float64 `json:"scroll_position"`
}

// Payload is either a live resource handle or a hibernation snapshot, never both.
// The zero value is an empty payload and is only seen before a tab is opened.
type Payload struct {
	live     ResourceHandle
	snapshot *Snapshot
}

// LivePayload wraps a resource handle owned by the surface.
func LivePayload(h ResourceHandle) Payload {
	return Payload{live: h}
}

// SnapshotPayload wraps a hibernation snapshot.
func SnapshotPayload(s Snapshot) Payload {
	return Payload{snapshot: &s}
}

// Live returns the resource handle and true when the payload is live.
func (p Payload) Live() (ResourceHandle, bool) {
	if p.snapshot != nil || p.live == NoResource {
		return NoResource, false
	}
	return p.live, true
}

// Snapshot returns the stored snapshot and true when the payload is hibernated.
func (p Payload) Snapshot() (Snapshot, bool) {
	if p.snapshot == nil {
		return Snapshot{}, false
	}
	return *p.snapshot, true
}

// Tab is one browsing session tracked by the engine.
type Tab struct {
	ID           TabID
	State        TabState
	LastAccessed time.Time
	CreatedAt    time.Time
	Payload      Payload

	// URL is the last known location. It is refreshed on capture.
	URL string

	// PendingScroll is applied once the surface reports load completion
	// after a wake from hibernation.
	PendingScroll float64
}

// PayloadMatchesState checks the state/payload exclusivity invariant.
func (t *Tab) PayloadMatchesState() bool {
	_, live := t.Payload.Live()
	_, snap := t.Payload.Snapshot()
	if t.State.HoldsLiveResource() {
		return live && !snap
	}
	return snap && !live
}
