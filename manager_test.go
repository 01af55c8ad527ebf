package fibcore

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatekeeper-fib/fibcore/internal/drain"
	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/resolver"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

func testMAC(n byte) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, n}
}

func newTestManager(t *testing.T) (*Manager, *resolver.Fake) {
	t.Helper()
	res := resolver.NewFake()
	m, err := New(Config{
		Front: ifconfig.Interface{
			Side:  ifconfig.Front,
			MAC:   testMAC(1),
			Proto: 0x0800,
			V4:    netip.MustParsePrefix("10.0.0.0/24"),
		},
		Back: ifconfig.Interface{
			Side:  ifconfig.Back,
			MAC:   testMAC(2),
			Proto: 0x0800,
			V4:    netip.MustParsePrefix("10.0.1.0/24"),
		},
		Resolver: res,
		Drain:    drain.Immediate{},
		Logger:   zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	return m, res
}

func TestNewInstallsNeighborSlots(t *testing.T) {
	m, _ := newTestManager(t)

	stats := m.Stats(types.V4)
	assert.EqualValues(t, 1, stats[ActionNeighborFront])
	assert.EqualValues(t, 1, stats[ActionNeighborBack])

	slot, ok := m.Lookup(netip.MustParseAddr("10.0.0.5"))
	require.True(t, ok)
	assert.Equal(t, ActionNeighborFront, slot.Action)

	slot, ok = m.Lookup(netip.MustParseAddr("10.0.1.5"))
	require.True(t, ok)
	assert.Equal(t, ActionNeighborBack, slot.Action)
}

func TestNeighborSlotID(t *testing.T) {
	m, _ := newTestManager(t)

	frontID, ok := m.NeighborSlotID(types.V4, ifconfig.Front)
	require.True(t, ok)
	backID, ok := m.NeighborSlotID(types.V4, ifconfig.Back)
	require.True(t, ok)
	assert.NotEqual(t, frontID, backID)

	frontSlot := m.fib[types.V4].Get(frontID)
	require.NotNil(t, frontSlot)
	assert.Equal(t, ActionNeighborFront, frontSlot.Action)

	_, ok = m.NeighborSlotID(types.V6, ifconfig.Front)
	assert.False(t, ok, "test manager has no V6 LAN configured")
}

func TestAddDropAndLookup(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	err := m.AddEntry(pfx, ActionDrop, RouteProps{Proto: 6, Priority: 1}, netip.Addr{}, nil)
	require.NoError(t, err)

	slot, ok := m.Lookup(netip.MustParseAddr("203.0.113.10"))
	require.True(t, ok)
	assert.Equal(t, ActionDrop, slot.Action)
	assert.EqualValues(t, 1, slot.Props.Priority)

	err = m.AddEntry(pfx, ActionDrop, RouteProps{}, netip.Addr{}, nil)
	assert.ErrorIs(t, err, ErrExists)
}

func TestAddDeleteRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	require.NoError(t, m.AddEntry(pfx, ActionDrop, RouteProps{}, netip.Addr{}, nil))
	require.NoError(t, m.DeleteEntry(context.Background(), pfx))

	_, ok := m.Lookup(netip.MustParseAddr("203.0.113.10"))
	assert.False(t, ok)

	err := m.DeleteEntry(context.Background(), pfx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGatewaySharedNeighbor(t *testing.T) {
	m, _ := newTestManager(t)
	gatewayIP := netip.MustParseAddr("10.0.0.254")

	pfxA := netip.MustParsePrefix("203.0.113.0/24")
	pfxB := netip.MustParsePrefix("198.51.100.0/24")

	require.NoError(t, m.AddEntry(pfxA, ActionGatewayFront, RouteProps{}, gatewayIP, nil))
	require.NoError(t, m.AddEntry(pfxB, ActionGatewayFront, RouteProps{}, gatewayIP, nil))

	slotA, ok := m.Lookup(netip.MustParseAddr("203.0.113.1"))
	require.True(t, ok)
	slotB, ok := m.Lookup(netip.MustParseAddr("198.51.100.1"))
	require.True(t, ok)

	require.NotNil(t, slotA.Gateway)
	assert.Same(t, slotA.Gateway, slotB.Gateway)
	assert.EqualValues(t, 2, slotA.Gateway.RefCount())

	require.NoError(t, m.DeleteEntry(context.Background(), pfxA))
	assert.EqualValues(t, 1, slotA.Gateway.RefCount())

	require.NoError(t, m.DeleteEntry(context.Background(), pfxB))
	assert.EqualValues(t, 0, slotA.Gateway.RefCount())
}

func TestGatewayInsideOwnPrefixRejected(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("198.51.100.0/24")
	gatewayIP := netip.MustParseAddr("198.51.100.5")

	err := m.AddEntry(pfx, ActionGatewayFront, RouteProps{}, gatewayIP, nil)
	assert.ErrorIs(t, err, ErrNotPermitted)

	// the failed attempt must not have leaked a neighbor-cache reference.
	assert.Equal(t, 0, m.neigh[types.V4][ifconfig.Front].Len())
}

func TestSecurityHoleRejectsGatewayUnderProtective(t *testing.T) {
	m, _ := newTestManager(t)
	wide := netip.MustParsePrefix("203.0.113.0/24")
	narrow := netip.MustParsePrefix("203.0.113.0/25")
	gatewayIP := netip.MustParseAddr("10.0.0.254")

	require.NoError(t, m.AddEntry(wide, ActionDrop, RouteProps{}, netip.Addr{}, nil))

	err := m.AddEntry(narrow, ActionGatewayFront, RouteProps{}, gatewayIP, nil)
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, ok := m.rib[types.V4].IsPresent(narrow)
	assert.False(t, ok)
}

func TestSecurityHoleRejectsProtectiveOverGateway(t *testing.T) {
	m, _ := newTestManager(t)
	narrow := netip.MustParsePrefix("203.0.113.0/25")
	wide := netip.MustParsePrefix("203.0.113.0/24")
	gatewayIP := netip.MustParseAddr("10.0.0.254")

	require.NoError(t, m.AddEntry(narrow, ActionGatewayFront, RouteProps{}, gatewayIP, nil))

	err := m.AddEntry(wide, ActionDrop, RouteProps{}, netip.Addr{}, nil)
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, ok := m.rib[types.V4].IsPresent(wide)
	assert.False(t, ok)
}

func TestLANCollisionRejected(t *testing.T) {
	m, _ := newTestManager(t)

	// 10.0.0.128/25 falls inside the front interface's own 10.0.0.0/24 LAN,
	// which today resolves to the NEIGHBOR_FRONT slot.
	pfx := netip.MustParsePrefix("10.0.0.128/25")
	err := m.AddEntry(pfx, ActionDrop, RouteProps{}, netip.Addr{}, nil)
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestGrantorUpdate(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	// Gateways for a GRANTOR entry resolve against the back interface's
	// neighbor cache (spec.md §4.4), so these addresses must sit on the
	// back LAN (10.0.1.0/24), not the front one.
	grantorIP1 := netip.MustParseAddr("198.51.100.1")
	gatewayIP1 := netip.MustParseAddr("10.0.1.10")
	pairs1 := []GrantorPair{{GrantorIP: grantorIP1, GatewayIP: gatewayIP1}}

	require.NoError(t, m.AddEntry(pfx, ActionGrantor, RouteProps{}, netip.Addr{}, pairs1))

	slot, ok := m.Lookup(netip.MustParseAddr("203.0.113.1"))
	require.True(t, ok)
	require.NotNil(t, slot.Grantors)
	oldEntry := slot.Grantors.Pairs()
	require.Len(t, oldEntry, 1)
	oldL2 := slot.Grantors.entries[0].l2
	assert.EqualValues(t, 1, oldL2.RefCount())

	grantorIP2 := netip.MustParseAddr("198.51.100.2")
	gatewayIP2 := netip.MustParseAddr("10.0.1.20")
	pairs2 := []GrantorPair{{GrantorIP: grantorIP2, GatewayIP: gatewayIP2}}

	require.NoError(t, m.UpdateGrantorSet(context.Background(), pfx, pairs2))

	assert.EqualValues(t, 0, oldL2.RefCount())

	newSlot, ok := m.Lookup(netip.MustParseAddr("203.0.113.1"))
	require.True(t, ok)
	newPairs := newSlot.Grantors.Pairs()
	require.Len(t, newPairs, 1)
	assert.Equal(t, grantorIP2, newPairs[0].GrantorIP)
}

// TestGrantorAcquiresBackInterfaceNeighbor pins down spec.md §4.4's "locate
// the back-side neighbor FIB" requirement: a GRANTOR gateway's layer-2
// entry must be acquired from the back neighbor cache, never the front
// one, regardless of which LAN the gateway address itself happens to sit
// on.
func TestGrantorAcquiresBackInterfaceNeighbor(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	grantorIP := netip.MustParseAddr("198.51.100.1")
	backGatewayIP := netip.MustParseAddr("10.0.1.10")
	pairs := []GrantorPair{{GrantorIP: grantorIP, GatewayIP: backGatewayIP}}

	require.NoError(t, m.AddEntry(pfx, ActionGrantor, RouteProps{}, netip.Addr{}, pairs))

	assert.Equal(t, 1, m.neigh[types.V4][ifconfig.Back].Len())
	assert.Equal(t, 0, m.neigh[types.V4][ifconfig.Front].Len())

	require.NoError(t, m.DeleteEntry(context.Background(), pfx))
	assert.Equal(t, 0, m.neigh[types.V4][ifconfig.Back].Len())
}

func TestAddGrantorTooManyEntriesRejected(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	pairs := make([]GrantorPair, MaxGrantorEntries+1)
	for i := range pairs {
		pairs[i] = GrantorPair{
			GrantorIP: netip.MustParseAddr("198.51.100.1"),
			GatewayIP: netip.MustParseAddr("10.0.0.10"),
		}
	}

	err := m.AddEntry(pfx, ActionGrantor, RouteProps{}, netip.Addr{}, pairs)
	assert.ErrorIs(t, err, ErrInvalidArg)
}

func TestAddNeighborActionRejected(t *testing.T) {
	m, _ := newTestManager(t)
	pfx := netip.MustParsePrefix("203.0.113.0/24")
	err := m.AddEntry(pfx, ActionNeighborFront, RouteProps{}, netip.Addr{}, nil)
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestDumpStreamsAllRoutes(t *testing.T) {
	m, _ := newTestManager(t)
	pfxs := []netip.Prefix{
		netip.MustParsePrefix("203.0.113.0/24"),
		netip.MustParsePrefix("198.51.100.0/24"),
		netip.MustParsePrefix("192.0.2.0/24"),
	}
	for _, p := range pfxs {
		require.NoError(t, m.AddEntry(p, ActionDrop, RouteProps{}, netip.Addr{}, nil))
	}

	var seen []netip.Prefix
	err := m.Dump(types.V4, func(batch []DumpEntry) bool {
		for _, e := range batch {
			seen = append(seen, e.Prefix)
		}
		return true
	})
	require.NoError(t, err)

	// 2 NEIGHBOR_* routes installed at startup, plus the 3 DROP routes.
	assert.Len(t, seen, 5)
}

func TestLookupPanicsOnRIBLPMMismatch(t *testing.T) {
	res := resolver.NewFake()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	m, err := New(Config{
		Front: ifconfig.Interface{
			Side: ifconfig.Front, MAC: testMAC(1), Proto: 0x0800,
			V4: netip.MustParsePrefix("10.0.0.0/24"),
		},
		Back: ifconfig.Interface{
			Side: ifconfig.Back, MAC: testMAC(2), Proto: 0x0800,
			V4: netip.MustParsePrefix("10.0.1.0/24"),
		},
		Resolver: res,
		Drain:    drain.Immediate{},
		Logger:   logger.Sugar(),
	})
	require.NoError(t, err)

	// Force the invariant violation directly: install an LPM entry whose
	// slot id was never published, which AddEntry/DeleteEntry can never
	// produce on their own (spec.md §9's "RIB/LPM/slot-array invariant").
	bogusPfx := netip.MustParsePrefix("203.0.113.0/24")
	require.NoError(t, m.lpm[types.V4].Add(bogusPfx, 999))

	assert.Panics(t, func() {
		m.Lookup(netip.MustParseAddr("203.0.113.1"))
	})
}

func TestDumpNeighborsReportsAcquiredEntries(t *testing.T) {
	m, _ := newTestManager(t)
	gatewayIP := netip.MustParseAddr("10.0.0.254")
	pfx := netip.MustParsePrefix("203.0.113.0/24")
	require.NoError(t, m.AddEntry(pfx, ActionGatewayFront, RouteProps{}, gatewayIP, nil))

	var seen []netip.Addr
	err := m.DumpNeighbors(types.V4, ifconfig.Front, func(batch []NeighborEntry) bool {
		for _, e := range batch {
			seen = append(seen, e.IP)
		}
		return true
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, gatewayIP, seen[0])
}
