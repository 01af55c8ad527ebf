package fibcore

import (
	"fmt"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/neighcache"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// buildGrantorSet acquires a shared neighbor-cache entry for every pair's
// gateway IP and returns the assembled, immutable GrantorSet (spec.md §3,
// §9). On any failure it releases every entry it had already acquired, so
// the caller never has to reason about partial state (spec.md §7:
// mutations are all-or-nothing).
func (m *Manager) buildGrantorSet(fam types.Family, side ifconfig.Side, pairs []GrantorPair) (*GrantorSet, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: grantor set must have at least one entry", ErrInvalidArg)
	}
	if len(pairs) > MaxGrantorEntries {
		return nil, fmt.Errorf("%w: grantor set has %d entries, max %d", ErrInvalidArg, len(pairs), MaxGrantorEntries)
	}

	cache, err := m.neighborCache(fam, side)
	if err != nil {
		return nil, err
	}

	entries := make([]grantorEntry, 0, len(pairs))
	for _, p := range pairs {
		if !types.SameFamily(p.GrantorIP, fam) || !types.SameFamily(p.GatewayIP, fam) {
			m.releaseEntries(cache, entries)
			return nil, fmt.Errorf("%w: grantor pair address family mismatch", ErrInvalidArg)
		}
		l2, err := cache.Acquire(p.GatewayIP)
		if err != nil {
			m.releaseEntries(cache, entries)
			return nil, err
		}
		entries = append(entries, grantorEntry{GrantorIP: p.GrantorIP, GatewayIP: p.GatewayIP, l2: l2})
	}

	return &GrantorSet{entries: entries}, nil
}

func (m *Manager) releaseEntries(cache *neighcache.Cache, entries []grantorEntry) {
	for _, e := range entries {
		cache.Release(e.l2)
	}
}

// releaseGrantorSet releases every neighbor-cache entry a GrantorSet holds.
// Called once the Slot that referenced it is no longer reachable by any
// reader (after the drain barrier).
func (m *Manager) releaseGrantorSet(fam types.Family, side ifconfig.Side, gs *GrantorSet) {
	if gs == nil {
		return
	}
	cache, err := m.neighborCache(fam, side)
	if err != nil {
		m.log.Errorw("releasing grantor set for interface with no neighbor cache", "error", err)
		return
	}
	m.releaseEntries(cache, gs.entries)
}
