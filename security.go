package fibcore

import (
	"fmt"
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// checkSecurityHole enforces spec.md §3 invariant 5 / §4.4's security-hole
// check: no GATEWAY_* prefix may be strictly more specific than an already
// installed DROP or GRANTOR prefix, and a new DROP/GRANTOR prefix may not
// be strictly less specific than an already installed GATEWAY_* prefix it
// would subsume. Both directions are checked here because AddEntry calls
// this for every candidate action, not only GATEWAY_*.
func (m *Manager) checkSecurityHole(fam types.Family, pfx netip.Prefix, action Action) error {
	if action.IsGateway() {
		// Reject if any ancestor (shorter or equal prefix already present)
		// is protective: a GATEWAY_* route must not live underneath a
		// DROP/GRANTOR umbrella.
		for route := range m.rib[fam].IterShorter(pfx) {
			if slot := m.fib[fam].Get(route.NextHop); slot != nil && slot.Action.IsProtective() {
				return fmt.Errorf("%w: gateway prefix %s is covered by protective route %s", ErrNotPermitted, pfx, route.Prefix)
			}
		}
		return nil
	}

	if action.IsProtective() {
		// Reject if any descendant (longer prefix already present) is a
		// GATEWAY_* route: installing the protective route would silently
		// turn it into a hole.
		for route := range m.rib[fam].IterLonger(pfx) {
			if slot := m.fib[fam].Get(route.NextHop); slot != nil && slot.Action.IsGateway() {
				return fmt.Errorf("%w: protective prefix %s would cover gateway route %s", ErrNotPermitted, pfx, route.Prefix)
			}
		}
	}

	return nil
}
