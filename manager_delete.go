package fibcore

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/drain"
	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// DeleteEntry removes the FIB entry for pfx (spec.md §4.4 "delete"):
// unlink from the RIB and LPM first, then drain every forwarder past the
// unlink before releasing any neighbor-cache references the slot held, so
// a forwarder that loaded the slot just before unlinking still sees a
// coherent value for as long as it holds the pointer (spec.md §9).
//
// NEIGHBOR_* slots can never be deleted (spec.md §4.2 invariant 2);
// attempting to do so returns ErrNotPermitted and is a no-op, matching the
// original's idempotent handling of that case.
func (m *Manager) DeleteEntry(ctx context.Context, pfx netip.Prefix) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam, err := types.ValidatePrefix(pfx)
	if err != nil {
		return err
	}

	id, ok := m.rib[fam].IsPresent(pfx)
	if !ok {
		return fmt.Errorf("%w: route %s not installed", ErrNotFound, pfx)
	}

	slot := m.fib[fam].Get(id)
	if slot == nil {
		return fmt.Errorf("%w: internal: RIB entry %s has no published slot", ErrInternal, pfx)
	}
	if slot.Action.IsNeighbor() {
		return fmt.Errorf("%w: NEIGHBOR_* slots are never removed", ErrNotPermitted)
	}

	if err := m.rib[fam].Delete(pfx); err != nil {
		return err
	}
	if err := m.lpm[fam].Delete(pfx); err != nil {
		m.log.Errorw("failed to unwind LPM after RIB delete; re-adding RIB route",
			"prefix", pfx, "error", err)
		if readdErr := m.rib[fam].Add(pfx, id); readdErr != nil {
			m.log.Errorw("failed to restore RIB entry after LPM delete failure; RIB/LPM are now inconsistent",
				"prefix", pfx, "error", readdErr)
		}
		return err
	}

	if err := m.cfg.Drain.Synchronize(ctx, drain.Request{SlotID: id, UpdateOnly: false}); err != nil {
		// The slot is already unreachable via RIB/LPM; a drain failure
		// only means we cannot yet be sure every forwarder has noticed,
		// so referenced resources are not released. The slot stays
		// published in the array as it was (unlinked, so new lookups
		// can't reach it) and the error is returned; no later call
		// releases those resources.
		return fmt.Errorf("draining forwarders: %w", err)
	}

	m.releaseSlotResources(fam, slot)
	m.fib[fam].publish(id, nil)
	m.bumpStat(fam, slot.Action, -1)
	m.log.Debugw("deleted FIB entry", "prefix", pfx, "action", slot.Action)
	return nil
}

func (m *Manager) releaseSlotResources(fam types.Family, slot *Slot) {
	switch {
	case slot.Action.IsGateway():
		side := sideOf(slot.Action)
		if cache, err := m.neighborCache(fam, side); err == nil && slot.Gateway != nil {
			cache.Release(slot.Gateway)
		}
	case slot.Action == ActionGrantor:
		// Grantor sets are always acquired against the back interface's
		// cache (see AddEntry / buildGrantorSet).
		m.releaseGrantorSet(fam, ifconfig.Back, slot.Grantors)
	}
}
