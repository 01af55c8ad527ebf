// Package lpmtrie implements the lookup-optimized longest-prefix-match
// index (spec.md §4.2): an 8-bit-stride multibit trie returning a FIB
// slot id for the longest prefix matching an address.
//
// The per-stride indexing scheme (PfxToIdx/IdxToPfx/baseIndex lookup) is
// adapted from gaissmai/bart's internal/art package, which maps a stride's
// possible prefixes onto a complete binary tree so that a longest-match
// search within one stride is a simple "walk toward the root until a set
// bit is found" loop instead of a linear scan over 9 possible lengths.
package lpmtrie

// hostIdx is PfxToIdx(octet, 8): the baseIndex of a full-stride (host)
// match, used both to seed the within-stride backtracking search and as
// the index for level-8 prefixes (depth boundaries that land on a byte).
func hostIdx(octet uint8) uint {
	return 256 + uint(octet)
}

// pfxToIdx maps an (octet, pfxLen) pair — a prefix that is pfxLen bits
// long within this one 8-bit stride — onto its position in the complete
// binary tree, idx in [1, 511].
func pfxToIdx(octet uint8, pfxLen int) uint {
	return uint(octet>>uint(8-pfxLen)) + (1 << uint(pfxLen))
}
