package fibcore

import (
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// DumpEntry is one record delivered to a Dump callback.
type DumpEntry struct {
	Prefix netip.Prefix
	Action Action
	Props  RouteProps
}

// DumpCallback receives one batch of entries with the writer lock held; it
// returns false to stop the dump early (spec.md §6, §4.4).
type DumpCallback func(batch []DumpEntry) (cont bool)

// Dump streams every installed route for fam to cb in batches of
// DumpBatchSize. The lock is dropped and re-acquired between batches so a
// dump never blocks AddEntry/DeleteEntry/UpdateGrantorSet for its whole
// duration (spec.md §6: "the implementation must drop the lock between
// batches and re-acquire it"); each individual callback invocation runs
// with the lock held, per the same sentence.
func (m *Manager) Dump(fam types.Family, cb DumpCallback) error {
	if fam != types.V4 && fam != types.V6 {
		return ErrInvalidArg
	}

	prefixes, err := m.snapshotRoutes(fam)
	if err != nil {
		return err
	}

	for start := 0; start < len(prefixes); start += DumpBatchSize {
		end := start + DumpBatchSize
		if end > len(prefixes) {
			end = len(prefixes)
		}

		cont := func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()

			batch := make([]DumpEntry, 0, end-start)
			for _, pfx := range prefixes[start:end] {
				id, ok := m.rib[fam].IsPresent(pfx)
				if !ok {
					continue // deleted between the snapshot and this batch.
				}
				slot := m.fib[fam].Get(id)
				if slot == nil {
					continue
				}
				batch = append(batch, DumpEntry{Prefix: pfx, Action: slot.Action, Props: slot.Props})
			}
			return cb(batch)
		}()

		if !cont {
			return nil
		}
	}

	return nil
}

// snapshotRoutes takes the writer lock just long enough to collect the
// current set of installed prefixes, so the expensive part (running the
// caller's batch callback) never happens while holding it continuously.
func (m *Manager) snapshotRoutes(fam types.Family) ([]netip.Prefix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prefixes []netip.Prefix
	for route := range m.rib[fam].All() {
		prefixes = append(prefixes, route.Prefix)
	}
	return prefixes, nil
}

// NeighborEntry is one record delivered to a DumpNeighbors callback.
type NeighborEntry struct {
	IP       netip.Addr
	RefCount uint32
	Stale    bool
}

// NeighborDumpCallback receives one batch of neighbor entries with the
// writer lock held; it returns false to stop the dump early.
type NeighborDumpCallback func(batch []NeighborEntry) (cont bool)

// DumpNeighbors streams the occupied entries of the neighbor cache for
// fam/side to cb in batches, under the same batched-locking discipline as
// Dump.
func (m *Manager) DumpNeighbors(fam types.Family, side ifconfig.Side, cb NeighborDumpCallback) error {
	cache, err := m.neighborCache(fam, side)
	if err != nil {
		return err
	}

	ips, err := func() ([]netip.Addr, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return cache.OccupiedIPs(), nil
	}()
	if err != nil {
		return err
	}

	for start := 0; start < len(ips); start += DumpBatchSize {
		end := start + DumpBatchSize
		if end > len(ips) {
			end = len(ips)
		}

		cont := func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()

			batch := make([]NeighborEntry, 0, end-start)
			for _, ip := range ips[start:end] {
				e, ok := cache.Lookup(ip)
				if !ok {
					continue
				}
				batch = append(batch, NeighborEntry{IP: ip, RefCount: e.RefCount(), Stale: e.IsStale()})
			}
			return cb(batch)
		}()

		if !cont {
			return nil
		}
	}

	return nil
}
