// Package resolver models the external link-layer-state (LLS) subsystem
// (spec.md §6): ARP for IPv4, ND for IPv6. It performs the actual neighbor
// discovery and invokes a callback, possibly from another thread, when an
// answer arrives, changes, or is withdrawn. The FIB core never resolves
// neighbors itself — it only holds and cancels subscriptions.
package resolver

import (
	"net"
	"net/netip"
)

// Result is delivered to a Callback on every resolver event.
type Result struct {
	// MAC is the resolved destination link address. Zero value until the
	// first successful resolution.
	MAC net.HardwareAddr
	// Stale mirrors the resolver's own staleness signal (spec.md §4.3):
	// still usable, but a fresher resolution should be preferred once
	// available.
	Stale bool
	// Final reports that no further callbacks will be delivered for this
	// subscription (spec.md §4.3's "null call_again_flag"); the neighbor
	// cache must zero the entry when it sees Final.
	Final bool
}

// Callback is invoked by the resolver, possibly concurrently with other
// callbacks and with Manager operations. The resolver holds no lock of the
// neighbor cache; the callback takes the affected entry's sequence lock
// itself when it writes.
type Callback func(res Result, arg any)

// Resolver is the subset of the LLS subsystem the neighbor cache depends
// on: hold/put for ARP and ND subscriptions (spec.md §6).
type Resolver interface {
	HoldARP(cb Callback, arg any, ip netip.Addr, lcore int) error
	HoldND(cb Callback, arg any, ip netip.Addr, lcore int) error
	PutARP(ip netip.Addr, lcore int)
	PutND(ip netip.Addr, lcore int)
}
