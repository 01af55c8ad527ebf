package neighcache

import (
	"net/netip"
	"sync/atomic"
)

// maxHeaderLen bounds an Ethernet header optionally carrying one 802.1Q
// VLAN tag: 2*6 (addresses) + 2 (EtherType) + 4 (VLAN tag) = 18 bytes.
const maxHeaderLen = 18

// Entry is one layer-2 cache slot (spec.md §3): a precomputed Ethernet
// (optionally VLAN-tagged) header for one neighbor IP, reference counted
// because multiple FIB slots may share it, and sequence-locked so
// forwarder reads never tear the header bytes / stale flag while a
// resolver callback updates them concurrently.
//
// ref_cnt == 0 marks the slot free (spec.md §3); that invariant is
// maintained by Cache, not by Entry itself.
type Entry struct {
	// seq is the sequence lock (spec.md §9): even means stable, odd means
	// a write is in progress. Readers loop until they observe the same
	// even value before and after copying header/stale.
	seq atomic.Uint32

	// refCnt is the number of FIB slot references (GATEWAY_*/GRANTOR) to
	// this entry: Acquire sets it to 1 on the first reference and adds 1
	// for each further one. The last reference is not decremented by
	// Release; the resolver's final callback zeroes it instead.
	refCnt atomic.Uint32

	neighborIP netip.Addr

	// header/headerLen/stale are the seqlock-protected mutable state.
	header    [maxHeaderLen]byte
	headerLen uint8
	stale     bool
}

// NeighborIP returns the neighbor address this entry resolves, stable for
// the lifetime of an acquire/release cycle (it never changes while
// refCnt > 0).
func (e *Entry) NeighborIP() netip.Addr { return e.neighborIP }

// RefCount returns the current reference count, for diagnostics/tests.
func (e *Entry) RefCount() uint32 { return e.refCnt.Load() }

// IsStale reports the entry's current stale flag, for diagnostics/dump.
func (e *Entry) IsStale() bool {
	_, stale := e.Read()
	return stale
}

// Read returns a copy of the current header bytes and stale flag. Safe
// for concurrent use by any number of forwarder threads without locking,
// per spec.md §5's "sequence lock... guarantees readers never tear the
// Ethernet header / stale flag".
func (e *Entry) Read() (header []byte, stale bool) {
	for {
		s1 := e.seq.Load()
		if s1&1 == 1 {
			continue
		}

		n := e.headerLen
		var buf [maxHeaderLen]byte
		copy(buf[:n], e.header[:n])
		st := e.stale

		s2 := e.seq.Load()
		if s1 == s2 {
			return buf[:n], st
		}
	}
}

// writeLocked runs fn with the sequence lock held for writing. It is
// reached from the resolver-callback path and from Cache.Acquire while it
// (re)initialises a free entry; it must never be invoked concurrently with
// another writer for the same entry (the resolver guarantees a single
// in-flight callback per subscription).
func (e *Entry) writeLocked(fn func()) {
	e.seq.Add(1) // now odd: readers spin
	fn()
	e.seq.Add(1) // now even: readers may proceed
}

func (e *Entry) setHeader(b []byte, stale bool) {
	e.writeLocked(func() {
		n := copy(e.header[:], b)
		e.headerLen = uint8(n)
		e.stale = stale
	})
}

func (e *Entry) zero() {
	e.writeLocked(func() {
		e.headerLen = 0
		e.stale = false
	})
	e.neighborIP = netip.Addr{}
	e.refCnt.Store(0)
}

func (e *Entry) reset(ip netip.Addr) {
	e.neighborIP = ip
	e.setHeader(nil, true)
	e.refCnt.Store(1)
}
