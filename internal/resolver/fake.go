package resolver

import (
	"net"
	"net/netip"
	"sync"

	"github.com/gatekeeper-fib/fibcore/internal/types"
)

var errResolverFail = types.ErrResolverFail

// Fake is a deterministic, single-threaded Resolver for tests. Each Hold
// call is recorded; the test drives resolution by calling Resolve
// explicitly instead of waiting on real ARP/ND traffic, and finalization is
// delivered by Put.
type Fake struct {
	mu   sync.Mutex
	subs map[netip.Addr]*fakeSub
}

type fakeSub struct {
	cb  Callback
	arg any
}

// NewFake returns an empty Fake resolver.
func NewFake() *Fake {
	return &Fake{subs: make(map[netip.Addr]*fakeSub)}
}

func (f *Fake) hold(cb Callback, arg any, ip netip.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[ip] = &fakeSub{cb: cb, arg: arg}
	return nil
}

func (f *Fake) put(ip netip.Addr) {
	f.mu.Lock()
	sub, ok := f.subs[ip]
	f.mu.Unlock()
	if !ok {
		return
	}
	// A real resolver cancels asynchronously and delivers one final
	// callback later; Fake delivers it synchronously and immediately, so
	// the in-flight-cancel race is not exercised through Fake.
	sub.cb(Result{Final: true}, sub.arg)
	f.mu.Lock()
	delete(f.subs, ip)
	f.mu.Unlock()
}

func (f *Fake) HoldARP(cb Callback, arg any, ip netip.Addr, _ int) error { return f.hold(cb, arg, ip) }
func (f *Fake) HoldND(cb Callback, arg any, ip netip.Addr, _ int) error  { return f.hold(cb, arg, ip) }
func (f *Fake) PutARP(ip netip.Addr, _ int)                             { f.put(ip) }
func (f *Fake) PutND(ip netip.Addr, _ int)                              { f.put(ip) }

// Resolve delivers a non-final resolution to the subscriber for ip, as a
// real resolver's ARP/ND reply would.
func (f *Fake) Resolve(ip netip.Addr, mac net.HardwareAddr, stale bool) {
	f.mu.Lock()
	sub, ok := f.subs[ip]
	f.mu.Unlock()
	if !ok {
		return
	}
	sub.cb(Result{MAC: mac, Stale: stale}, sub.arg)
}

// FailingResolver wraps Fake and fails Hold for any address listed in
// FailFor, modeling §4.3's "resolver-registration failure".
type FailingResolver struct {
	Fake
	FailFor map[netip.Addr]bool
}

func NewFailingResolver() *FailingResolver {
	return &FailingResolver{Fake: *NewFake(), FailFor: make(map[netip.Addr]bool)}
}

func (f *FailingResolver) HoldARP(cb Callback, arg any, ip netip.Addr, lcore int) error {
	if f.FailFor[ip] {
		return errResolverFail
	}
	return f.Fake.HoldARP(cb, arg, ip, lcore)
}

func (f *FailingResolver) HoldND(cb Callback, arg any, ip netip.Addr, lcore int) error {
	if f.FailFor[ip] {
		return errResolverFail
	}
	return f.Fake.HoldND(cb, arg, ip, lcore)
}
