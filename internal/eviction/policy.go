package eviction

import (
	"fmt"
	"sort"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

const (
	// DefaultIdleHorizon is the idle time at which time_factor saturates.
	DefaultIdleHorizon = time.Hour

	// Action thresholds (ascending severity as priority falls)
	DefaultHibernateBelow = 0.3
	DefaultSnoozeBelow    = 0.6

	// Factor weights
	VisibleFactor    = 1.0
	HiddenFactor     = 0.5
	KeepActiveFactor = 2.0
	DefaultFactor    = 1.0
)

// Action is the suspension chosen for a tab by a sweep.
type Action int

const (
	// Freeze is the cheapest, most reversible action and the fallback.
	Freeze Action = iota
	Snooze
	Hibernate
)

func (a Action) String() string {
	switch a {
	case Freeze:
		return "freeze"
	case Snooze:
		return "snooze"
	case Hibernate:
		return "hibernate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// MarshalText lets actions appear by name in JSON.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Target returns the tab state an action leads to.
func (a Action) Target() domain.TabState {
	switch a {
	case Snooze:
		return domain.Snoozed
	case Hibernate:
		return domain.Hibernated
	default:
		return domain.Frozen
	}
}

// Policy scores tabs and maps priorities to actions.
type Policy struct {
	IdleHorizon    time.Duration
	HibernateBelow float64
	SnoozeBelow    float64
}

// DefaultPolicy returns the policy with the documented thresholds.
func DefaultPolicy() Policy {
	return Policy{
		IdleHorizon:    DefaultIdleHorizon,
		HibernateBelow: DefaultHibernateBelow,
		SnoozeBelow:    DefaultSnoozeBelow,
	}
}

// Validate checks that thresholds are ordered and the horizon is positive.
func (p Policy) Validate() error {
	if p.IdleHorizon <= 0 {
		return fmt.Errorf("idle horizon must be > 0, got %v", p.IdleHorizon)
	}
	if p.HibernateBelow <= 0 || p.HibernateBelow >= p.SnoozeBelow || p.SnoozeBelow > 1 {
		return fmt.Errorf("thresholds must satisfy 0 < hibernate (%v) < snooze (%v) <= 1",
			p.HibernateBelow, p.SnoozeBelow)
	}
	return nil
}

// Input is everything the score depends on.
type Input struct {
	LastAccessed time.Time
	Now          time.Time
	Visible      bool
	KeepActive   bool
}

// Score computes the priority of a tab. Lower means more evictable.
//
//	priority = (1 - time_factor) * visibility_factor * group_factor
func (p Policy) Score(in Input) float64 {
	timeFactor := clamp01(float64(in.Now.Sub(in.LastAccessed)) / float64(p.IdleHorizon))

	visibility := HiddenFactor
	if in.Visible {
		visibility = VisibleFactor
	}

	group := DefaultFactor
	if in.KeepActive {
		group = KeepActiveFactor
	}

	return (1.0 - timeFactor) * visibility * group
}

// Decide maps a priority to an action.
func (p Policy) Decide(priority float64) Action {
	switch {
	case priority < p.HibernateBelow:
		return Hibernate
	case priority < p.SnoozeBelow:
		return Snooze
	default:
		return Freeze
	}
}

// Candidate is one scored tab in a sweep.
type Candidate struct {
	Tab      domain.TabID    `json:"tab"`
	State    domain.TabState `json:"state"`
	Priority float64         `json:"priority"`
	Action   Action          `json:"action"`
}

// Rank sorts candidates most evictable first: lowest priority, then lowest id.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].Tab < candidates[j].Tab
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
