// Package ifconfig models the interface configuration the FIB manager
// consumes from the (out-of-scope, spec.md §1) configuration front-end:
// the front/back interface's link address, VLAN tag, EtherType and LAN
// prefixes (spec.md §6: "interface.eth_addr, vlan_tag, configured_proto,
// ip4_addr, ip6_addr, plen").
package ifconfig

import (
	"net"
	"net/netip"
)

// Side identifies which physical interface a NEIGHBOR_* / GATEWAY_*
// slot belongs to.
type Side uint8

const (
	Front Side = iota
	Back
)

func (s Side) String() string {
	if s == Front {
		return "front"
	}
	return "back"
}

// DefaultMaxNeighborCapacity bounds the neighbor table size derived from
// a LAN prefix, so that a pathologically short front/back prefix (e.g. a
// /8) doesn't request a multi-billion-entry array. This is a deliberate
// divergence from the original C implementation, which sizes the table
// unconditionally as 2^(32-plen) (SPEC_FULL.md §3).
const DefaultMaxNeighborCapacity = 1 << 16

// Interface describes one side (front or back) of the appliance.
type Interface struct {
	Side Side
	MAC  net.HardwareAddr
	VLAN uint16 // 0 means untagged
	// Proto is the EtherType carried after the (optional) VLAN tag,
	// e.g. 0x0800 for IPv4, 0x86DD for IPv6.
	Proto uint16

	V4 netip.Prefix // the interface's own LAN, zero value if unconfigured
	V6 netip.Prefix

	MaxNeighborCapacity int // 0 means DefaultMaxNeighborCapacity
}

// HasV4 reports whether the interface has an IPv4 LAN configured.
func (i Interface) HasV4() bool { return i.V4.IsValid() }

// HasV6 reports whether the interface has an IPv6 LAN configured.
func (i Interface) HasV6() bool { return i.V6.IsValid() }

func (i Interface) maxCap() int {
	if i.MaxNeighborCapacity > 0 {
		return i.MaxNeighborCapacity
	}
	return DefaultMaxNeighborCapacity
}

// NeighborCapacity4 reproduces the original's 2^(32-plen) sizing for the
// IPv4 LAN, minus the network and broadcast addresses, clamped to
// maxCap().
func (i Interface) NeighborCapacity4() int {
	if !i.HasV4() {
		return 0
	}
	hostBits := 32 - i.V4.Bits()
	if hostBits >= 31 {
		return i.maxCap()
	}
	cap := (1 << uint(hostBits)) - 2
	if cap < 1 {
		cap = 1
	}
	if cap > i.maxCap() {
		cap = i.maxCap()
	}
	return cap
}

// NeighborCapacity6 uses the configured bound directly: unlike IPv4, a
// /64 V6 LAN has far too large a host space to size exactly, so
// spec.md §3 calls for "a configured bound" rather than a derived one.
func (i Interface) NeighborCapacity6() int {
	if !i.HasV6() {
		return 0
	}
	return i.maxCap()
}
