package rib

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

func TestAddDeleteRoundTrip(t *testing.T) {
	r := New(types.V4)
	pfx := mustPfx(t, "10.0.0.0/8")

	require.NoError(t, r.Add(pfx, 42))
	assert.Equal(t, 1, r.Count())

	nh, ok := r.IsPresent(pfx)
	require.True(t, ok)
	assert.EqualValues(t, 42, nh)

	require.NoError(t, r.Delete(pfx))
	assert.Equal(t, 0, r.Count())

	_, ok = r.IsPresent(pfx)
	assert.False(t, ok)
}

func TestAddExists(t *testing.T) {
	r := New(types.V4)
	pfx := mustPfx(t, "10.0.0.0/8")
	require.NoError(t, r.Add(pfx, 1))
	assert.ErrorIs(t, r.Add(pfx, 2), types.ErrExists)
}

func TestDeleteNotFound(t *testing.T) {
	r := New(types.V4)
	assert.ErrorIs(t, r.Delete(mustPfx(t, "10.0.0.0/8")), types.ErrNotFound)
}

func TestLookupLongestMatch(t *testing.T) {
	r := New(types.V4)
	require.NoError(t, r.Add(mustPfx(t, "10.0.0.0/8"), 1))
	require.NoError(t, r.Add(mustPfx(t, "10.1.0.0/16"), 2))

	nh, ok := r.Lookup(netip.MustParseAddr("10.1.2.3"))
	require.True(t, ok)
	assert.EqualValues(t, 2, nh)

	nh, ok = r.Lookup(netip.MustParseAddr("10.2.2.3"))
	require.True(t, ok)
	assert.EqualValues(t, 1, nh)

	_, ok = r.Lookup(netip.MustParseAddr("11.0.0.0"))
	assert.False(t, ok)
}

func TestIterLonger(t *testing.T) {
	r := New(types.V4)
	require.NoError(t, r.Add(mustPfx(t, "10.0.0.0/8"), 1))
	require.NoError(t, r.Add(mustPfx(t, "10.1.0.0/16"), 2))
	require.NoError(t, r.Add(mustPfx(t, "10.1.1.0/24"), 3))
	require.NoError(t, r.Add(mustPfx(t, "11.0.0.0/8"), 4))

	var got []Route
	for route := range r.IterLonger(mustPfx(t, "10.0.0.0/8")) {
		got = append(got, route)
	}
	assert.Len(t, got, 3)
}

func TestIterShorter(t *testing.T) {
	r := New(types.V4)
	require.NoError(t, r.Add(mustPfx(t, "10.0.0.0/8"), 1))
	require.NoError(t, r.Add(mustPfx(t, "10.1.0.0/16"), 2))
	require.NoError(t, r.Add(mustPfx(t, "10.1.1.0/24"), 3))

	var got []Route
	for route := range r.IterShorter(mustPfx(t, "10.1.1.0/24")) {
		got = append(got, route)
	}
	assert.Len(t, got, 3)
}

func TestDeletePrunesDanglingNodes(t *testing.T) {
	r := New(types.V4)
	pfx := mustPfx(t, "10.1.1.0/24")
	require.NoError(t, r.Add(pfx, 1))
	require.NoError(t, r.Delete(pfx))
	assert.True(t, r.root.child[0] == nil && r.root.child[1] == nil)
}

func TestAll(t *testing.T) {
	r := New(types.V4)
	require.NoError(t, r.Add(mustPfx(t, "10.0.0.0/8"), 1))
	require.NoError(t, r.Add(mustPfx(t, "172.16.0.0/12"), 2))
	require.NoError(t, r.Add(mustPfx(t, "192.168.0.0/16"), 3))

	var got []Route
	for route := range r.All() {
		got = append(got, route)
	}
	assert.Len(t, got, 3)
}

func TestAllEmptyTable(t *testing.T) {
	r := New(types.V4)
	var got []Route
	for route := range r.All() {
		got = append(got, route)
	}
	assert.Empty(t, got)
}

func TestWrongFamilyRejected(t *testing.T) {
	r := New(types.V4)
	pfx := mustPfx(t, "::1/128")
	assert.ErrorIs(t, r.Add(pfx, 1), types.ErrInvalidArg)
}
