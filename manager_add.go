package fibcore

import (
	"fmt"
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/neighcache"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// AddEntry installs a new FIB entry for pfx with the given action (spec.md
// §4.4 "add"). Gateway/grantor IPs must be supplied for GATEWAY_*/GRANTOR
// actions respectively; they are ignored for DROP. AddEntry is
// all-or-nothing: on any returned error the FIB, RIB and LPM are
// unchanged.
func (m *Manager) AddEntry(pfx netip.Prefix, action Action, props RouteProps, gatewayIP netip.Addr, grantors []GrantorPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam, err := types.ValidatePrefix(pfx)
	if err != nil {
		return err
	}

	if action.IsNeighbor() {
		return fmt.Errorf("%w: NEIGHBOR_* slots are installed at startup only", ErrNotPermitted)
	}

	if _, ok := m.rib[fam].IsPresent(pfx); ok {
		return fmt.Errorf("%w: route %s already installed", ErrExists, pfx)
	}

	// Reject a prefix that resolves (today, via longest match) into one of
	// the startup NEIGHBOR_* slots: the appliance's own LAN is never a
	// valid target for a new route (spec.md §4.2 invariant 2's corollary).
	if id, ok := m.lpm[fam].Lookup(pfx.Addr()); ok {
		if slot := m.fib[fam].Get(id); slot != nil && slot.Action.IsNeighbor() {
			return fmt.Errorf("%w: prefix %s falls inside the appliance's own LAN", ErrNotPermitted, pfx)
		}
	}

	var side ifconfig.Side
	var gateway *neighcache.Entry
	var grantorSet *GrantorSet

	switch {
	case action == ActionGatewayFront, action == ActionGatewayBack:
		side = sideOf(action)
		if !gatewayIP.IsValid() {
			return fmt.Errorf("%w: gateway action requires a gateway IP", ErrInvalidArg)
		}
		if pfx.Contains(gatewayIP) {
			return fmt.Errorf("%w: gateway %s lies inside its own prefix %s", ErrNotPermitted, gatewayIP, pfx)
		}
		cache, cerr := m.neighborCache(fam, side)
		if cerr != nil {
			return cerr
		}
		if !types.SameFamily(gatewayIP, fam) {
			return fmt.Errorf("%w: gateway address family mismatch", ErrInvalidArg)
		}
		gateway, err = cache.Acquire(gatewayIP)
		if err != nil {
			return err
		}

	case action == ActionGrantor:
		// Grantor gateways are always looked up against the back
		// interface's neighbor cache (spec.md §4.4: "locate the back-side
		// neighbor FIB"; the original's init_grantor_fib_locked sets
		// iface = &gk_conf->net->back before acquiring any of the pairs'
		// ether caches).
		side = ifconfig.Back
		grantorSet, err = m.buildGrantorSet(fam, side, grantors)
		if err != nil {
			return err
		}

	case action == ActionDrop:
		// no collaborator acquisition needed.

	default:
		return fmt.Errorf("%w: unsupported action %s", ErrInvalidArg, action)
	}

	if err := m.checkSecurityHole(fam, pfx, action); err != nil {
		m.rollbackAcquire(fam, side, action, gateway, grantorSet)
		return err
	}

	idx, ok := m.fib[fam].alloc()
	if !ok {
		m.rollbackAcquire(fam, side, action, gateway, grantorSet)
		return fmt.Errorf("%w: no free FIB slot", ErrNoSpace)
	}

	slot := &Slot{Action: action, Props: props, Gateway: gateway, Grantors: grantorSet}
	m.fib[fam].publish(idx, slot)

	if err := m.rib[fam].Add(pfx, idx); err != nil {
		m.fib[fam].publish(idx, nil)
		m.rollbackAcquire(fam, side, action, gateway, grantorSet)
		return err
	}

	if err := m.lpm[fam].Add(pfx, idx); err != nil {
		if unwindErr := m.rib[fam].Delete(pfx); unwindErr != nil {
			m.log.Errorw("failed to unwind RIB after LPM add failure; RIB/LPM are now inconsistent",
				"prefix", pfx, "error", unwindErr)
		}
		m.fib[fam].publish(idx, nil)
		m.rollbackAcquire(fam, side, action, gateway, grantorSet)
		return err
	}

	m.bumpStat(fam, action, 1)
	m.log.Debugw("added FIB entry", "prefix", pfx, "action", action, "proto", props.Proto, "priority", props.Priority)
	return nil
}

// rollbackAcquire releases any neighbor-cache references AddEntry had
// already taken before failing partway through.
func (m *Manager) rollbackAcquire(fam types.Family, side ifconfig.Side, action Action, gateway *neighcache.Entry, grantors *GrantorSet) {
	if gateway != nil {
		if cache, err := m.neighborCache(fam, side); err == nil {
			cache.Release(gateway)
		}
	}
	if grantors != nil {
		m.releaseGrantorSet(fam, side, grantors)
	}
}
