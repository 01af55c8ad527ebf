package lpmtrie

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-fib/fibcore/internal/types"
)

func mustPfx(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p.Masked()
}

func TestLPMAddLookupDelete(t *testing.T) {
	tbl := New(types.V4)
	require.NoError(t, tbl.Add(mustPfx(t, "10.0.0.0/8"), 1))

	slot, ok := tbl.Lookup(netip.MustParseAddr("10.1.2.3"))
	require.True(t, ok)
	assert.EqualValues(t, 1, slot)

	_, ok = tbl.Lookup(netip.MustParseAddr("11.0.0.0"))
	assert.False(t, ok)

	require.NoError(t, tbl.Delete(mustPfx(t, "10.0.0.0/8")))
	_, ok = tbl.Lookup(netip.MustParseAddr("10.1.2.3"))
	assert.False(t, ok)
}

func TestLPMLongestMatchAcrossStrides(t *testing.T) {
	tbl := New(types.V4)
	require.NoError(t, tbl.Add(mustPfx(t, "10.0.0.0/8"), 1))
	require.NoError(t, tbl.Add(mustPfx(t, "10.1.0.0/16"), 2))
	require.NoError(t, tbl.Add(mustPfx(t, "10.1.1.0/24"), 3))
	require.NoError(t, tbl.Add(mustPfx(t, "10.1.1.128/25"), 4))

	cases := []struct {
		addr string
		slot uint32
	}{
		{"10.2.3.4", 1},
		{"10.1.2.3", 2},
		{"10.1.1.5", 3},
		{"10.1.1.200", 4},
	}
	for _, c := range cases {
		slot, ok := tbl.Lookup(netip.MustParseAddr(c.addr))
		require.True(t, ok, c.addr)
		assert.EqualValues(t, c.slot, slot, c.addr)
	}
}

func TestLPMHostRoute(t *testing.T) {
	tbl := New(types.V4)
	require.NoError(t, tbl.Add(mustPfx(t, "1.2.3.4/32"), 7))
	slot, ok := tbl.Lookup(netip.MustParseAddr("1.2.3.4"))
	require.True(t, ok)
	assert.EqualValues(t, 7, slot)

	_, ok = tbl.Lookup(netip.MustParseAddr("1.2.3.5"))
	assert.False(t, ok)
}

func TestLPMExists(t *testing.T) {
	tbl := New(types.V4)
	require.NoError(t, tbl.Add(mustPfx(t, "10.0.0.0/8"), 1))
	assert.ErrorIs(t, tbl.Add(mustPfx(t, "10.0.0.0/8"), 2), types.ErrExists)
}

func TestLPMDeleteNotFound(t *testing.T) {
	tbl := New(types.V4)
	assert.ErrorIs(t, tbl.Delete(mustPfx(t, "10.0.0.0/8")), types.ErrNotFound)
}

func TestLPMv6(t *testing.T) {
	tbl := New(types.V6)
	require.NoError(t, tbl.Add(mustPfx(t, "2001:db8::/32"), 1))
	require.NoError(t, tbl.Add(mustPfx(t, "2001:db8:1::/48"), 2))

	slot, ok := tbl.Lookup(netip.MustParseAddr("2001:db8:1::1"))
	require.True(t, ok)
	assert.EqualValues(t, 2, slot)

	slot, ok = tbl.Lookup(netip.MustParseAddr("2001:db8:2::1"))
	require.True(t, ok)
	assert.EqualValues(t, 1, slot)
}

func TestLPMDeletePrunesEmptyNodes(t *testing.T) {
	tbl := New(types.V4)
	pfx := mustPfx(t, "10.1.1.1/32")
	require.NoError(t, tbl.Add(pfx, 1))
	require.NoError(t, tbl.Delete(pfx))
	assert.True(t, tbl.root.isEmpty())
}
