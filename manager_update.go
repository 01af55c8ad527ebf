package fibcore

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/drain"
	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// UpdateGrantorSet atomically replaces the grantor/gateway pairs of an
// installed GRANTOR entry (spec.md §4.4 "update", §9): the new set is
// built and fully resolved before anything is published, the owning
// Slot's pointer is swapped with a single atomic store, forwarders are
// drained past the swap, and only then is the old set's neighbor-cache
// references released. A failure at any point before the publish leaves
// the existing entry completely untouched.
func (m *Manager) UpdateGrantorSet(ctx context.Context, pfx netip.Prefix, pairs []GrantorPair) error {
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

	old := m.fib[fam].Get(id)
	if old == nil {
		return fmt.Errorf("%w: internal: RIB entry %s has no published slot", ErrInternal, pfx)
	}
	if old.Action != ActionGrantor {
		return fmt.Errorf("%w: route %s is not a GRANTOR entry", ErrInvalidArg, pfx)
	}

	newSet, err := m.buildGrantorSet(fam, ifconfig.Back, pairs)
	if err != nil {
		return err
	}

	newSlot := &Slot{Action: old.Action, Props: old.Props, Grantors: newSet}
	m.fib[fam].publish(id, newSlot)

	if err := m.cfg.Drain.Synchronize(ctx, drain.Request{SlotID: id, UpdateOnly: true}); err != nil {
		// The new set is already live; the old one's resources must stay
		// held until we can be sure no reader still references it, so we
		// surface the error without releasing. No later call releases
		// the old set's references.
		return fmt.Errorf("draining forwarders: %w", err)
	}

	m.releaseGrantorSet(fam, ifconfig.Back, old.Grantors)
	m.log.Debugw("updated grantor set", "prefix", pfx, "entries", len(pairs))
	return nil
}
