package fibcore

import (
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/neighcache"
)

// Slot is one FIB entry (spec.md §3). Once published via fibArray.publish
// it is never mutated in place — every change builds a new Slot and
// republishes, so a reader that loaded a *Slot sees a fully-formed,
// internally consistent value for as long as it holds that pointer.
type Slot struct {
	Action Action
	Props  RouteProps

	// Gateway is set for GATEWAY_FRONT/GATEWAY_BACK: the shared layer-2
	// cache entry for the route's next hop.
	Gateway *neighcache.Entry

	// Grantors is set for GRANTOR: the immutable set of (grantor_ip,
	// gateway layer-2 entry) pairs.
	Grantors *GrantorSet

	// Neighbors is set for NEIGHBOR_FRONT/NEIGHBOR_BACK: the cache this
	// interface/family's layer-2 entries live in. It is the same pointer
	// for the lifetime of the Manager (spec.md §4.2 invariant 2).
	Neighbors *neighcache.Cache
}

// grantorEntry is one pair of a GrantorSet.
type grantorEntry struct {
	GrantorIP netip.Addr
	GatewayIP netip.Addr
	l2        *neighcache.Entry
}

// GrantorSet is the immutable, heap-allocated array backing a GRANTOR slot
// (spec.md §3). A GrantorSet is never mutated after construction;
// replacement always builds a new GrantorSet and swaps the owning Slot's
// pointer (spec.md §9).
type GrantorSet struct {
	entries []grantorEntry
}

// Len returns the number of (grantor_ip, gateway) pairs.
func (g *GrantorSet) Len() int { return len(g.entries) }

// Pairs returns the grantor/gateway IP pairs, for dump/diagnostics.
func (g *GrantorSet) Pairs() []GrantorPair {
	out := make([]GrantorPair, len(g.entries))
	for i, e := range g.entries {
		out[i] = GrantorPair{GrantorIP: e.GrantorIP, GatewayIP: e.GatewayIP}
	}
	return out
}
