package lpmtrie

import (
	"net/netip"

	"github.com/gatekeeper-fib/fibcore/internal/types"
)

// node is one stride level of the trie: a fixed-size array of slot ids
// addressed by ART baseIndex (for prefixes terminating in this stride)
// plus a fixed-size array of child nodes addressed by octet (for prefixes
// continuing into the next stride). This mirrors the shape of bart's
// fastNode, minus the popcount-compressed storage and fringe/leaf
// optimizations bart uses to save memory — this package trades that
// memory saving for a simpler, directly-indexed implementation since the
// FIB's slot count is bounded and fixed at startup (spec.md §4.4), unlike
// a general-purpose CIDR table.
type node struct {
	prefixes    [512]uint32
	prefixesSet bitset512
	pfxCount    int

	children    [256]*node
	childrenSet bitset256
	cldCount    int
}

func (n *node) isEmpty() bool {
	return n.pfxCount == 0 && n.cldCount == 0
}

func (n *node) insertPrefix(octet uint8, pfxLen int, slot uint32) (existed bool) {
	idx := pfxToIdx(octet, pfxLen)
	existed = n.prefixesSet.test(idx)
	n.prefixes[idx] = slot
	if !existed {
		n.prefixesSet.set(idx)
		n.pfxCount++
	}
	return existed
}

func (n *node) deletePrefix(octet uint8, pfxLen int) (slot uint32, existed bool) {
	idx := pfxToIdx(octet, pfxLen)
	if !n.prefixesSet.test(idx) {
		return 0, false
	}
	slot = n.prefixes[idx]
	n.prefixesSet.clear(idx)
	n.prefixes[idx] = 0
	n.pfxCount--
	return slot, true
}

func (n *node) getPrefix(octet uint8, pfxLen int) (uint32, bool) {
	idx := pfxToIdx(octet, pfxLen)
	if !n.prefixesSet.test(idx) {
		return 0, false
	}
	return n.prefixes[idx], true
}

func (n *node) getChild(octet uint8) *node {
	if !n.childrenSet.test(octet) {
		return nil
	}
	return n.children[octet]
}

func (n *node) setChild(octet uint8, c *node) {
	if !n.childrenSet.test(octet) {
		n.childrenSet.set(octet)
		n.cldCount++
	}
	n.children[octet] = c
}

func (n *node) deleteChild(octet uint8) {
	if !n.childrenSet.test(octet) {
		return
	}
	n.childrenSet.clear(octet)
	n.children[octet] = nil
	n.cldCount--
}

// lookupStride performs the ART backtracking search within one stride:
// starting at the host-route baseIndex for octet, walk toward the root of
// the stride's complete binary tree until a set bit (an installed,
// possibly less specific, prefix within this stride) is found.
func (n *node) lookupStride(octet uint8) (uint32, bool) {
	idx := hostIdx(octet)
	for idx > 0 {
		if n.prefixesSet.test(idx) {
			return n.prefixes[idx], true
		}
		idx >>= 1
	}
	return 0, false
}

// Table is the LPM index for one address family.
type Table struct {
	family types.Family
	root   node
}

// New returns an empty LPM table for fam.
func New(fam types.Family) *Table {
	return &Table{family: fam}
}

func addrBytes(addr netip.Addr) []byte {
	return addr.AsSlice()
}

// Add installs pfx -> slot. Mutations are never performed on the LPM
// without the matching RIB mutation (spec.md §4.2); that invariant is the
// caller's (the root fibcore Manager's) responsibility, not this package's.
func (t *Table) Add(pfx netip.Prefix, slot uint32) error {
	fam, err := types.ValidatePrefix(pfx)
	if err != nil {
		return err
	}
	if fam != t.family {
		return types.ErrInvalidArg
	}

	bits := pfx.Bits()
	rem := bits % 8

	if rem == 0 {
		// Prefix length is an exact multiple of 8 (including /32, /128):
		// it terminates at the host baseIndex of the last consumed byte,
		// one stride above where a generic bit-walk of fullBytes steps
		// would land.
		return t.addAtByteBoundary(pfx, slot)
	}

	b := addrBytes(pfx.Addr())
	fullBytes := bits / 8

	n := &t.root
	for i := 0; i < fullBytes; i++ {
		octet := b[i]
		child := n.getChild(octet)
		if child == nil {
			child = &node{}
			n.setChild(octet, child)
		}
		n = child
	}

	octet := b[fullBytes]
	existed := n.insertPrefix(octet, rem, slot)
	if existed {
		// unreachable: caller checked RIB.IsPresent first, but guard
		// anyway since this package must never silently overwrite.
		return types.ErrExists
	}
	return nil
}

// addAtByteBoundary handles prefix lengths that are exact multiples of 8
// (including /32 and /128): the prefix terminates at the *host* index of
// the last consumed byte, one stride up from where a generic bit-walk
// would land.
func (t *Table) addAtByteBoundary(pfx netip.Prefix, slot uint32) error {
	b := addrBytes(pfx.Addr())
	bits := pfx.Bits()
	nBytes := bits / 8

	n := &t.root
	for i := 0; i < nBytes-1; i++ {
		octet := b[i]
		child := n.getChild(octet)
		if child == nil {
			child = &node{}
			n.setChild(octet, child)
		}
		n = child
	}

	octet := b[nBytes-1]
	existed := n.insertPrefix(octet, 8, slot)
	if existed {
		return types.ErrExists
	}
	return nil
}

// Delete removes pfx.
func (t *Table) Delete(pfx netip.Prefix) error {
	fam, err := types.ValidatePrefix(pfx)
	if err != nil {
		return err
	}
	if fam != t.family {
		return types.ErrInvalidArg
	}

	b := addrBytes(pfx.Addr())
	bits := pfx.Bits()
	fullBytes := bits / 8
	rem := bits % 8

	type frame struct {
		n     *node
		octet byte
	}
	var path []frame

	n := &t.root
	walkBytes := fullBytes
	if rem == 0 {
		walkBytes = fullBytes - 1
	}

	for i := 0; i < walkBytes; i++ {
		octet := b[i]
		child := n.getChild(octet)
		if child == nil {
			return types.ErrNotFound
		}
		path = append(path, frame{n, octet})
		n = child
	}

	pfxLen := rem
	if rem == 0 {
		pfxLen = 8
	}
	lastOctet := b[walkBytes]

	if _, existed := n.deletePrefix(lastOctet, pfxLen); !existed {
		return types.ErrNotFound
	}

	// Prune now-empty nodes bottom-up.
	cur := n
	for i := len(path) - 1; i >= 0; i-- {
		if !cur.isEmpty() {
			break
		}
		path[i].n.deleteChild(path[i].octet)
		cur = path[i].n
	}

	return nil
}

// Lookup returns the slot id of the longest prefix matching addr.
func (t *Table) Lookup(addr netip.Addr) (uint32, bool) {
	if !types.SameFamily(addr, t.family) {
		return 0, false
	}

	b := addrBytes(addr)
	n := &t.root

	var (
		best    uint32
		haveOne bool
	)

	for _, octet := range b {
		if slot, ok := n.lookupStride(octet); ok {
			best, haveOne = slot, true
		}
		child := n.getChild(octet)
		if child == nil {
			break
		}
		n = child
	}

	return best, haveOne
}
