package installwatch

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSnapshot is returned until the platform agent has pushed at least one
// installed-package snapshot.
var ErrNoSnapshot = errors.New("no package snapshot received yet")

// BridgeLister holds the most recent installed-package set pushed by the
// platform agent over the HTTP bridge. The reconciliation poll diffs against
// it on its own cadence, independent of the broadcast channel.
type BridgeLister struct {
	mu       sync.RWMutex
	packages map[string]struct{}
}

var _ PackageLister = (*BridgeLister)(nil)

// NewBridgeLister creates an empty lister.
func NewBridgeLister() *BridgeLister {
	return &BridgeLister{}
}

// Update replaces the snapshot with the given package list.
func (b *BridgeLister) Update(packages []string) {
	next := make(map[string]struct{}, len(packages))
	for _, p := range packages {
		if p != "" {
			next[p] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.packages = next
}

// InstalledPackages returns a copy of the current snapshot.
func (b *BridgeLister) InstalledPackages(ctx context.Context) (map[string]struct{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.packages == nil {
		return nil, ErrNoSnapshot
	}

	out := make(map[string]struct{}, len(b.packages))
	for p := range b.packages {
		out[p] = struct{}{}
	}
	return out, nil
}
