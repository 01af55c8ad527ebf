package neighcache

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/resolver"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

func testIface() ifconfig.Interface {
	return ifconfig.Interface{
		Side:  ifconfig.Front,
		MAC:   net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		Proto: 0x0800,
	}
}

func TestAcquireCreatesAndSubscribes(t *testing.T) {
	res := resolver.NewFake()
	c := New(testIface(), types.V4, 4, 0, res, zap.NewNop().Sugar())

	ip := netip.MustParseAddr("10.0.0.2")
	e, err := c.Acquire(ip)
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.RefCount())

	hdr, stale := e.Read()
	assert.True(t, stale)
	assert.NotEmpty(t, hdr)

	res.Resolve(ip, net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, false)
	hdr, stale = e.Read()
	assert.False(t, stale)
	assert.Equal(t, byte(0xaa), hdr[0])
}

func TestAcquireSharesEntryAndRefcounts(t *testing.T) {
	res := resolver.NewFake()
	c := New(testIface(), types.V4, 4, 0, res, zap.NewNop().Sugar())

	ip := netip.MustParseAddr("10.0.0.2")
	e1, err := c.Acquire(ip)
	require.NoError(t, err)
	e2, err := c.Acquire(ip)
	require.NoError(t, err)

	assert.Same(t, e1, e2)
	assert.EqualValues(t, 2, e1.RefCount())

	c.Release(e1)
	assert.EqualValues(t, 1, e1.RefCount())

	c.Release(e2)
	// last release issues cancel; the fake resolver finalizes synchronously.
	assert.EqualValues(t, 0, e1.RefCount())
	assert.Equal(t, 0, c.Len())
}

func TestAcquireNoSpace(t *testing.T) {
	res := resolver.NewFake()
	c := New(testIface(), types.V4, 1, 0, res, zap.NewNop().Sugar())

	_, err := c.Acquire(netip.MustParseAddr("10.0.0.2"))
	require.NoError(t, err)

	_, err = c.Acquire(netip.MustParseAddr("10.0.0.3"))
	assert.ErrorIs(t, err, types.ErrNoSpace)
}

func TestAcquireResolverFailZeroesEntry(t *testing.T) {
	res := resolver.NewFailingResolver()
	ip := netip.MustParseAddr("10.0.0.2")
	res.FailFor[ip] = true

	c := New(testIface(), types.V4, 4, 0, res, zap.NewNop().Sugar())
	_, err := c.Acquire(ip)
	assert.ErrorIs(t, err, types.ErrResolverFail)
	assert.Equal(t, 0, c.Len())

	// the slot must be reusable after the failed acquire.
	res.FailFor[ip] = false
	e, err := c.Acquire(ip)
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.RefCount())
}

func TestReleaseAfterFreeIsNoop(t *testing.T) {
	res := resolver.NewFake()
	c := New(testIface(), types.V4, 4, 0, res, zap.NewNop().Sugar())

	ip := netip.MustParseAddr("10.0.0.2")
	e, err := c.Acquire(ip)
	require.NoError(t, err)
	c.Release(e)
	assert.EqualValues(t, 0, e.RefCount())

	assert.NotPanics(t, func() { c.Release(e) })
}
