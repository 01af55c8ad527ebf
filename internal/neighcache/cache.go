// Package neighcache implements the per-interface-per-family neighbor
// cache (spec.md §4.3): a hash table from neighbor IP to a
// reference-counted layer-2 header cache entry, integrated with the
// external resolver (ARP/ND) collaborator.
package neighcache

import (
	"fmt"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/resolver"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// Cache is reachable only through its owning NEIGHBOR_F_I FIB slot
// (spec.md §4.3). All public operations are called under the FIB
// manager's writer lock, except for the resolver callback, which may run
// concurrently on an LLS worker thread (spec.md §5) — hence the internal
// mutex guarding the hash-map structure (not the FIB lock, which the
// resolver never takes).
type Cache struct {
	mu    sync.Mutex
	iface ifconfig.Interface
	fam   types.Family
	lcore int

	entries []Entry
	byIP    map[netip.Addr]*Entry

	resolver resolver.Resolver
	log      *zap.SugaredLogger
}

// New returns a neighbor cache for iface/fam with the given fixed
// capacity (spec.md §4.3: "capacity fixed at creation").
func New(iface ifconfig.Interface, fam types.Family, capacity int, lcore int, res resolver.Resolver, log *zap.SugaredLogger) *Cache {
	return &Cache{
		iface:    iface,
		fam:      fam,
		lcore:    lcore,
		entries:  make([]Entry, capacity),
		byIP:     make(map[netip.Addr]*Entry, capacity),
		resolver: res,
		log:      log,
	}
}

// Capacity returns the fixed entry-array size.
func (c *Cache) Capacity() int { return len(c.entries) }

// Len returns the number of currently occupied entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byIP)
}

// OccupiedIPs returns the neighbor IPs currently holding an entry, for
// DumpNeighbors. The caller is expected to hold the FIB manager's writer
// lock (the only context in which Cache's owning NEIGHBOR_* slot is
// mutated), so this is a stable snapshot for the duration of the dump.
func (c *Cache) OccupiedIPs() []netip.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	ips := make([]netip.Addr, 0, len(c.byIP))
	for ip := range c.byIP {
		ips = append(ips, ip)
	}
	return ips
}

// Lookup returns the entry for neighborIP without acquiring a reference,
// for DumpNeighbors.
func (c *Cache) Lookup(neighborIP netip.Addr) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byIP[neighborIP]
	return e, ok
}

// Acquire returns a shared handle to the layer-2 entry for neighborIP,
// creating and registering a resolver subscription if this is the first
// reference (spec.md §4.3).
func (c *Cache) Acquire(neighborIP netip.Addr) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byIP[neighborIP]; ok {
		e.refCnt.Add(1)
		return e, nil
	}

	idx := -1
	for i := range c.entries {
		if c.entries[i].refCnt.Load() == 0 {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, types.ErrNoSpace
	}

	e := &c.entries[idx]
	e.reset(neighborIP)
	e.setHeader(buildHeader(c.iface, nil), true)

	var err error
	if c.fam == types.V4 {
		err = c.resolver.HoldARP(c.onResolverEvent, e, neighborIP, c.lcore)
	} else {
		err = c.resolver.HoldND(c.onResolverEvent, e, neighborIP, c.lcore)
	}
	if err != nil {
		e.zero()
		return nil, fmt.Errorf("%w: %v", types.ErrResolverFail, err)
	}

	c.byIP[neighborIP] = e
	return e, nil
}

// Release drops one reference to e (spec.md §4.3, §9): for ref_cnt >= 2 it
// CAS-decrements; for ref_cnt == 1 it cancels the resolver subscription
// instead of decrementing, and the resolver's eventual finalization
// callback zeroes the entry.
func (c *Cache) Release(e *Entry) {
	for {
		cur := e.refCnt.Load()
		switch {
		case cur >= 2:
			if e.refCnt.CompareAndSwap(cur, cur-1) {
				return
			}
		case cur == 1:
			c.mu.Lock()
			delete(c.byIP, e.neighborIP)
			c.mu.Unlock()

			if c.fam == types.V4 {
				c.resolver.PutARP(e.neighborIP, c.lcore)
			} else {
				c.resolver.PutND(e.neighborIP, c.lcore)
			}
			return
		default:
			// cur == 0: already finalized by a racing resolver callback.
			// Nothing to release.
			return
		}
	}
}

// onResolverEvent is the resolver Callback (spec.md §4.3): it takes the
// entry's sequence lock for its writes, and may run on an LLS worker
// thread distinct from the control thread.
func (c *Cache) onResolverEvent(res resolver.Result, arg any) {
	e := arg.(*Entry)

	if res.Final {
		if got := e.refCnt.Load(); got != 1 {
			c.log.Warnw("finalize callback observed unexpected ref count",
				"neighbor", e.neighborIP, "want", 1, "got", got)
		}
		e.zero()
		return
	}

	e.setHeader(buildHeader(c.iface, res.MAC), res.Stale)
}
