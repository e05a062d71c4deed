package hibernation

import (
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

const (
	// KeyPrefix is the root of every key written by the redis backend
	KeyPrefix = "tabkeeper:"
)

// Keys builds the redis keys of one engine instance.
type Keys struct {
	instance string
}

// NewKeys scopes keys to an instance id so several engines can share a database.
func NewKeys(instance string) Keys {
	return Keys{instance: instance}
}

// Snapshot returns the key holding the snapshot of a tab.
func (k Keys) Snapshot(id domain.TabID) string {
	return k.snapshotPrefix() + strconv.FormatUint(uint64(id), 10)
}

// All returns the key of the set of all tab ids with a snapshot.
func (k Keys) All() string {
	return KeyPrefix + k.instance + ":snapshots:all"
}

func (k Keys) snapshotPrefix() string {
	return KeyPrefix + k.instance + ":snapshot:"
}

// ParseTabID parses a decimal tab id. Zero is rejected.
func ParseTabID(s string) (domain.TabID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return domain.NoTab, fmt.Errorf("invalid tab id %q: %w", s, err)
	}
	if n == 0 {
		return domain.NoTab, fmt.Errorf("invalid tab id %q", s)
	}
	return domain.TabID(n), nil
}
