// Package types holds the address-family primitives shared by the RIB,
// LPM trie, neighbor cache and FIB manager.
package types

import (
	"fmt"
	"net/netip"
)

// Family tags an address or prefix as IPv4 or IPv6. The FIB keeps entirely
// separate RIB/LPM/neighbor structures per family; nothing here is ever
// mixed across the tag.
type Family uint8

const (
	V4 Family = iota
	V6
)

func (f Family) String() string {
	if f == V4 {
		return "v4"
	}
	return "v6"
}

// Bits returns the address width for the family (32 or 128).
func (f Family) Bits() int {
	if f == V4 {
		return 32
	}
	return 128
}

// FamilyOf returns the family of a valid netip.Addr.
func FamilyOf(addr netip.Addr) (Family, error) {
	switch {
	case addr.Is4() || addr.Is4In6():
		return V4, nil
	case addr.Is6():
		return V6, nil
	default:
		return 0, fmt.Errorf("%w: invalid address", ErrInvalidArg)
	}
}

// ValidatePrefix enforces spec.md §3/§6: length in [1, family_bits], no
// default route, and the address must be the canonical (masked) form.
func ValidatePrefix(pfx netip.Prefix) (Family, error) {
	if !pfx.IsValid() {
		return 0, fmt.Errorf("%w: invalid prefix", ErrInvalidArg)
	}

	fam, err := FamilyOf(pfx.Addr())
	if err != nil {
		return 0, err
	}

	if pfx.Bits() <= 0 || pfx.Bits() > fam.Bits() {
		return 0, fmt.Errorf("%w: prefix length %d out of range [1,%d]", ErrInvalidArg, pfx.Bits(), fam.Bits())
	}

	if pfx != pfx.Masked() {
		return 0, fmt.Errorf("%w: prefix %s is not in canonical form", ErrInvalidArg, pfx)
	}

	return fam, nil
}

// SameFamily reports whether addr belongs to family fam.
func SameFamily(addr netip.Addr, fam Family) bool {
	got, err := FamilyOf(addr)
	return err == nil && got == fam
}
