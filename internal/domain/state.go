package domain

import "fmt"

// TabState is the liveness tier of a tab.
type TabState int

const (
	// Active tabs hold a live resource and are fully interactive.
	Active TabState = iota
	// Frozen tabs keep their live resource but execution and rendering are paused.
	Frozen
	// Snoozed tabs keep a handle but the engine has relinquished the resource.
	Snoozed
	// Hibernated tabs have no live resource, only a snapshot.
	Hibernated
	// Waking is the transitional state between issuing a reload for a
	// hibernated tab and the surface reporting load completion.
	Waking
)

// States lists every state in declaration order.
var States = []TabState{Active, Frozen, Snoozed, Hibernated, Waking}

var stateNames = map[TabState]string{
	Active:     "active",
	Frozen:     "frozen",
	Snoozed:    "snoozed",
	Hibernated: "hibernated",
	Waking:     "waking",
}

func (s TabState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets states appear by name in JSON diagnostics.
func (s TabState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HoldsLiveResource reports whether a tab in this state owns a live handle.
func (s TabState) HoldsLiveResource() bool {
	return s != Hibernated
}

// Suspended reports whether the state is one of the suspension tiers.
func (s TabState) Suspended() bool {
	return s == Frozen || s == Snoozed || s == Hibernated
}

// transitions is the full table of legal state changes.
var transitions = map[TabState][]TabState{
	Active:     {Frozen, Snoozed, Hibernated},
	Frozen:     {Hibernated, Active},
	Snoozed:    {Hibernated, Active},
	Hibernated: {Waking},
	Waking:     {Active},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to TabState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is not legal.
func CheckTransition(id TabID, from, to TabState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: tab %d %s -> %s", ErrInvalidTransition, id, from, to)
	}
	return nil
}
