// Package fibcore implements the forwarding-information-base and
// neighbor-resolution core of a DDoS-protection appliance: a
// longest-prefix-match routing table per address family, a parallel
// enumerable rule database, per-interface neighbor caches, and the
// transactional protocols that install, update and remove FIB entries
// while forwarder threads read the tables concurrently (spec.md §1).
package fibcore

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gatekeeper-fib/fibcore/internal/drain"
	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/lpmtrie"
	"github.com/gatekeeper-fib/fibcore/internal/neighcache"
	"github.com/gatekeeper-fib/fibcore/internal/resolver"
	"github.com/gatekeeper-fib/fibcore/internal/rib"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// DefaultMaxFIBEntries is used when Config leaves a family's slot-array
// size at zero.
const DefaultMaxFIBEntries = 1 << 16

// Config configures a Manager (spec.md §6's "interface.eth_addr,
// vlan_tag, configured_proto, ip4_addr, ip6_addr, plen", plus the
// collaborators of §6).
type Config struct {
	Front, Back ifconfig.Interface

	MaxFIBEntriesV4 int
	MaxFIBEntriesV6 int

	Resolver resolver.Resolver
	Drain    drain.Synchronizer
	Logger   *zap.SugaredLogger
	LCore    int
}

// Manager owns the fixed-size FIB slot arrays, the RIB/LPM pair and the
// four neighbor caches for one appliance, and mediates every mutation
// (spec.md §4.4, C4).
type Manager struct {
	mu sync.Mutex // the single writer-exclusive transactional lock of §5

	cfg Config
	log *zap.SugaredLogger

	fib [2]*fibArray  // indexed by types.Family
	rib [2]*rib.Table // indexed by types.Family
	lpm [2]*lpmtrie.Table

	// neigh[family][side] is nil if that interface has no LAN configured
	// for that family (spec.md §4.2 invariant 2).
	neigh [2][2]*neighcache.Cache

	// neighSlotID[family][side] is the FIB slot id of the NEIGHBOR_* slot,
	// valid only when neigh[family][side] != nil.
	neighSlotID [2][2]uint32

	statsByAction [2]*[7]atomic.Int64 // [family][Action]
}

// New builds a Manager and installs its startup-immutable NEIGHBOR_FRONT /
// NEIGHBOR_BACK slots (spec.md §4.2 invariant 2: "created at startup and
// never removed").
func New(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("%w: resolver is required", ErrInvalidArg)
	}
	if cfg.Drain == nil {
		cfg.Drain = drain.Immediate{}
	}
	if cfg.MaxFIBEntriesV4 == 0 {
		cfg.MaxFIBEntriesV4 = DefaultMaxFIBEntries
	}
	if cfg.MaxFIBEntriesV6 == 0 {
		cfg.MaxFIBEntriesV6 = DefaultMaxFIBEntries
	}

	m := &Manager{cfg: cfg, log: cfg.Logger}

	m.fib[types.V4] = newFIBArray(cfg.MaxFIBEntriesV4)
	m.fib[types.V6] = newFIBArray(cfg.MaxFIBEntriesV6)
	m.rib[types.V4] = rib.New(types.V4)
	m.rib[types.V6] = rib.New(types.V6)
	m.lpm[types.V4] = lpmtrie.New(types.V4)
	m.lpm[types.V6] = lpmtrie.New(types.V6)
	for fam := range m.statsByAction {
		m.statsByAction[fam] = &[7]atomic.Int64{}
	}

	if err := m.installNeighborSlot(types.V4, ifconfig.Front, cfg.Front); err != nil {
		return nil, err
	}
	if err := m.installNeighborSlot(types.V4, ifconfig.Back, cfg.Back); err != nil {
		return nil, err
	}
	if err := m.installNeighborSlot(types.V6, ifconfig.Front, cfg.Front); err != nil {
		return nil, err
	}
	if err := m.installNeighborSlot(types.V6, ifconfig.Back, cfg.Back); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) installNeighborSlot(fam types.Family, side ifconfig.Side, iface ifconfig.Interface) error {
	var pfx netip.Prefix
	var capacity int
	switch {
	case fam == types.V4 && iface.HasV4():
		pfx = iface.V4
		capacity = iface.NeighborCapacity4()
	case fam == types.V6 && iface.HasV6():
		pfx = iface.V6
		capacity = iface.NeighborCapacity6()
	default:
		return nil // interface not configured for this family: no slot.
	}

	cache := neighcache.New(iface, fam, capacity, m.cfg.LCore, m.cfg.Resolver, m.log)

	action := ActionNeighborFront
	if side == ifconfig.Back {
		action = ActionNeighborBack
	}

	idx, ok := m.fib[fam].alloc()
	if !ok {
		return fmt.Errorf("%w: no room for neighbor slot", ErrNoSpace)
	}

	slot := &Slot{Action: action, Neighbors: cache}
	m.fib[fam].publish(idx, slot)

	if err := m.rib[fam].Add(pfx, idx); err != nil {
		return fmt.Errorf("installing neighbor route: %w", err)
	}
	if err := m.lpm[fam].Add(pfx, idx); err != nil {
		return fmt.Errorf("installing neighbor route: %w", err)
	}

	m.neigh[fam][side] = cache
	m.neighSlotID[fam][side] = idx
	m.bumpStat(fam, action, 1)
	return nil
}

func (m *Manager) bumpStat(fam types.Family, a Action, delta int64) {
	m.statsByAction[fam][a].Add(delta)
}

// Stats returns the number of installed slots per action, for one family
// (SPEC_FULL.md §3).
func (m *Manager) Stats(fam types.Family) map[Action]int64 {
	out := make(map[Action]int64, 7)
	for a := ActionEmpty; a <= ActionNeighborBack; a++ {
		out[a] = m.statsByAction[fam][a].Load()
	}
	return out
}

// Lookup is the forwarder hot-path entry point (spec.md §6): given a
// destination address, return the FIB slot to act on. It takes no lock
// and is safe for any number of concurrent callers.
func (m *Manager) Lookup(addr netip.Addr) (*Slot, bool) {
	fam, err := types.FamilyOf(addr)
	if err != nil {
		return nil, false
	}
	id, ok := m.lpm[fam].Lookup(addr)
	if !ok {
		return nil, false
	}
	slot := m.fib[fam].Get(id)
	if slot == nil {
		// The LPM and the slot array briefly disagree only while a delete
		// is between "unlink from LPM" and "drain completes"; a lookup
		// racing that narrow window used the pre-mutation LPM snapshot by
		// definition, so this should never observe a torn state from a
		// single Lookup call. If it does, the RIB/LPM/slot invariant
		// (spec.md §8) has been violated.
		m.log.DPanic("lpm returned slot id with no published slot", zap.Uint32("slot", id))
		return nil, false
	}
	return slot, true
}

func (m *Manager) neighborCache(fam types.Family, side ifconfig.Side) (*neighcache.Cache, error) {
	c := m.neigh[fam][side]
	if c == nil {
		return nil, fmt.Errorf("%w: %s interface has no %s configured", ErrInvalidArg, side, fam)
	}
	return c, nil
}

// NeighborSlotID returns the FIB slot id of the startup-installed
// NEIGHBOR_FRONT/NEIGHBOR_BACK slot for fam/side, for diagnostics (e.g.
// correlating a dump-neighbors report back to the owning FIB slot). The
// second return value is false if that interface has no LAN configured for
// fam (spec.md §4.2 invariant 2).
func (m *Manager) NeighborSlotID(fam types.Family, side ifconfig.Side) (uint32, bool) {
	if m.neigh[fam][side] == nil {
		return 0, false
	}
	return m.neighSlotID[fam][side], true
}

func sideOf(a Action) ifconfig.Side {
	if a == ActionGatewayBack {
		return ifconfig.Back
	}
	return ifconfig.Front
}
