// Package rib implements the per-family Routing Information Base: an
// ordered, enumeration-capable prefix->next-hop database kept alongside
// the lookup-optimized LPM trie (internal/lpmtrie). See spec.md §4.1.
//
// Unlike the LPM trie, the RIB is not required to be lookup-fast — it
// exists specifically so the FIB manager can walk all prefixes contained
// in, or containing, a given prefix (the security-hole check of §4.4 and
// dump operations). A plain uncompressed bit-trie makes that walk trivial
// and obviously correct, at the cost of the 8-bit-stride layout the LPM
// trie uses for speed.
package rib

import (
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// Route is one entry of the RIB: a prefix and the FIB slot id installed
// for it.
type Route struct {
	Prefix  netip.Prefix
	NextHop uint32
}

type node struct {
	child   [2]*node
	hasRte  bool
	nextHop uint32
}

// Table is the RIB for one address family.
type Table struct {
	family types.Family
	root   node
	count  int
}

// New returns an empty RIB for fam.
func New(fam types.Family) *Table {
	return &Table{family: fam}
}

func bit(addr netip.Addr, i int) int {
	// bit 0 is the most significant bit of the address.
	b := addr.AsSlice()
	byteIdx := i / 8
	bitIdx := 7 - uint(i%8)
	return int((b[byteIdx] >> bitIdx) & 1)
}

func (t *Table) checkFamily(pfx netip.Prefix) error {
	fam, err := types.ValidatePrefix(pfx)
	if err != nil {
		return err
	}
	if fam != t.family {
		return types.ErrInvalidArg
	}
	return nil
}

// Add installs prefix -> nextHop. Returns ErrExists if already present.
func (t *Table) Add(pfx netip.Prefix, nextHop uint32) error {
	if err := t.checkFamily(pfx); err != nil {
		return err
	}

	n := &t.root
	addr := pfx.Addr()
	bits := pfx.Bits()

	for i := 0; i < bits; i++ {
		b := bit(addr, i)
		if n.child[b] == nil {
			n.child[b] = &node{}
		}
		n = n.child[b]
	}

	if n.hasRte {
		return types.ErrExists
	}

	n.hasRte = true
	n.nextHop = nextHop
	t.count++
	return nil
}

// Delete removes prefix. Returns ErrNotFound if absent.
func (t *Table) Delete(pfx netip.Prefix) error {
	if err := t.checkFamily(pfx); err != nil {
		return err
	}

	path := make([]*node, 0, pfx.Bits()+1)
	n := &t.root
	addr := pfx.Addr()
	bits := pfx.Bits()

	path = append(path, n)
	for i := 0; i < bits; i++ {
		b := bit(addr, i)
		if n.child[b] == nil {
			return types.ErrNotFound
		}
		n = n.child[b]
		path = append(path, n)
	}

	if !n.hasRte {
		return types.ErrNotFound
	}
	n.hasRte = false
	n.nextHop = 0
	t.count--

	// Prune dangling leaves bottom-up, skipping the root.
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		if cur.hasRte || cur.child[0] != nil || cur.child[1] != nil {
			break
		}
		parent := path[i-1]
		pb := bit(addr, i-1)
		parent.child[pb] = nil
	}

	return nil
}

// IsPresent reports whether pfx is installed exactly, and its next hop.
func (t *Table) IsPresent(pfx netip.Prefix) (uint32, bool) {
	if err := t.checkFamily(pfx); err != nil {
		return 0, false
	}

	n := &t.root
	addr := pfx.Addr()
	bits := pfx.Bits()

	for i := 0; i < bits; i++ {
		b := bit(addr, i)
		if n.child[b] == nil {
			return 0, false
		}
		n = n.child[b]
	}

	if !n.hasRte {
		return 0, false
	}
	return n.nextHop, true
}

// Lookup performs a longest-prefix match of addr against the RIB. It is
// used by the FIB manager only to find the matching NEIGHBOR_* slot for a
// known-LAN address (spec.md §4.1); the hot forwarding path uses the LPM
// trie instead.
func (t *Table) Lookup(addr netip.Addr) (uint32, bool) {
	if !types.SameFamily(addr, t.family) {
		return 0, false
	}

	n := &t.root
	var (
		best    uint32
		haveOne bool
	)
	if n.hasRte {
		best, haveOne = n.nextHop, true
	}

	bits := t.family.Bits()
	for i := 0; i < bits; i++ {
		b := bit(addr, i)
		if n.child[b] == nil {
			break
		}
		n = n.child[b]
		if n.hasRte {
			best, haveOne = n.nextHop, true
		}
	}

	return best, haveOne
}

// Count returns the number of installed routes.
func (t *Table) Count() int { return t.count }

// IterLonger yields every route strictly contained in root, plus root
// itself if present (spec.md §4.1). The walk is a single pass over the
// subtree rooted at root's bit path; callers may abandon the iterator at
// any time.
func (t *Table) IterLonger(root netip.Prefix) func(yield func(Route) bool) {
	return func(yield func(Route) bool) {
		if err := t.checkFamily(root); err != nil {
			return
		}

		n := &t.root
		addr := root.Addr()
		bits := root.Bits()

		for i := 0; i < bits; i++ {
			b := bit(addr, i)
			if n.child[b] == nil {
				return
			}
			n = n.child[b]
		}

		walkSubtree(n, root, yield)
	}
}

// All yields every installed route, in prefix-tree order (spec.md §6's
// dump operations). Unlike IterLonger, it takes no caller-supplied root
// prefix, so it is not subject to ValidatePrefix's length-0 rejection.
func (t *Table) All() func(yield func(Route) bool) {
	return func(yield func(Route) bool) {
		root := netip.PrefixFrom(zeroAddr(t.family), 0)
		walkSubtree(&t.root, root, yield)
	}
}

func walkSubtree(n *node, pfx netip.Prefix, yield func(Route) bool) bool {
	if n == nil {
		return true
	}
	if n.hasRte {
		if !yield(Route{Prefix: pfx, NextHop: n.nextHop}) {
			return false
		}
	}
	for b := 0; b < 2; b++ {
		if n.child[b] == nil {
			continue
		}
		childPfx := extend(pfx, b)
		if !walkSubtree(n.child[b], childPfx, yield) {
			return false
		}
	}
	return true
}

func extend(pfx netip.Prefix, b int) netip.Prefix {
	addr := pfx.Addr()
	newBits := pfx.Bits() + 1
	buf := addr.AsSlice()
	byteIdx := (newBits - 1) / 8
	bitIdx := 7 - uint((newBits-1)%8)
	if b == 1 {
		buf[byteIdx] |= 1 << bitIdx
	} else {
		buf[byteIdx] &^= 1 << bitIdx
	}

	var newAddr netip.Addr
	if len(buf) == 4 {
		newAddr = netip.AddrFrom4([4]byte(buf))
	} else {
		newAddr = netip.AddrFrom16([16]byte(buf))
	}
	return netip.PrefixFrom(newAddr, newBits)
}

// IterShorter yields every route that contains query (i.e. every ancestor
// on query's bit path that carries a route, including query itself if
// present) — spec.md §4.1.
func (t *Table) IterShorter(query netip.Prefix) func(yield func(Route) bool) {
	return func(yield func(Route) bool) {
		if err := t.checkFamily(query); err != nil {
			return
		}

		n := &t.root
		addr := query.Addr()
		bits := query.Bits()

		pfx := netip.PrefixFrom(zeroAddr(t.family), 0)
		for i := 0; i < bits; i++ {
			b := bit(addr, i)
			if n.child[b] == nil {
				return
			}
			n = n.child[b]
			pfx = extend(pfx, b)
			if n.hasRte {
				if !yield(Route{Prefix: pfx, NextHop: n.nextHop}) {
					return
				}
			}
		}
	}
}

func zeroAddr(fam types.Family) netip.Addr {
	if fam == types.V4 {
		return netip.AddrFrom4([4]byte{})
	}
	return netip.AddrFrom16([16]byte{})
}
