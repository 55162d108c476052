package shorthash_test

import (
	"testing"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/shorthash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oidWithFirstByte(t *testing.T, b byte, rest byte) ginternals.Oid {
	t.Helper()
	var raw [ginternals.OidSize]byte
	raw[0] = b
	raw[ginternals.OidSize-1] = rest
	oid, err := ginternals.NewOidFromHex(raw[:])
	require.NoError(t, err)
	return oid
}

func TestTryInsert(t *testing.T) {
	t.Parallel()

	r := shorthash.New(8, 4)

	oidA := oidWithFirstByte(t, 0x01, 0xaa)
	oidB := oidWithFirstByte(t, 0x01, 0xbb) // same top 8 bits as oidA

	assert.True(t, r.TryInsert(oidA))
	assert.False(t, r.TryInsert(oidB), "second oid shares oidA's short id and must be rejected")
	assert.Equal(t, 1, r.Count())

	oidC := oidWithFirstByte(t, 0x02, 0xcc)
	assert.True(t, r.TryInsert(oidC))
	assert.Equal(t, 2, r.Count())
}

func TestFull(t *testing.T) {
	t.Parallel()

	r := shorthash.New(2, 4)
	for i := byte(0); i < 4; i++ {
		require.True(t, r.TryInsert(oidWithFirstByte(t, i<<6, i)))
	}
	assert.True(t, r.Full())
}

func TestEmissionOrderPreservesAcceptanceOrder(t *testing.T) {
	t.Parallel()

	r := shorthash.New(8, 3)
	oids := []ginternals.Oid{
		oidWithFirstByte(t, 0x03, 1),
		oidWithFirstByte(t, 0x01, 2),
		oidWithFirstByte(t, 0x02, 3),
	}
	for _, o := range oids {
		require.True(t, r.TryInsert(o))
	}
	assert.Equal(t, oids, r.EmissionOrder())
}

func TestFreezeAndSort(t *testing.T) {
	t.Parallel()

	r := shorthash.New(8, 3)
	oidHigh := oidWithFirstByte(t, 0x03, 1)
	oidLow := oidWithFirstByte(t, 0x01, 2)
	oidMid := oidWithFirstByte(t, 0x02, 3)

	require.True(t, r.TryInsert(oidHigh))
	require.True(t, r.TryInsert(oidLow))
	require.True(t, r.TryInsert(oidMid))

	frozen := r.FreezeAndSort()
	require.Equal(t, 3, frozen.Len())
	assert.Equal(t, oidLow, frozen.OIDAt(0))
	assert.Equal(t, oidMid, frozen.OIDAt(1))
	assert.Equal(t, oidHigh, frozen.OIDAt(2))

	// emission indices: oidHigh was inserted first (index 0), oidLow second
	// (index 1), oidMid third (index 2)
	assert.Equal(t, uint32(1), frozen.EmissionIndexAt(0))
	assert.Equal(t, uint32(2), frozen.EmissionIndexAt(1))
	assert.Equal(t, uint32(0), frozen.EmissionIndexAt(2))

	sorted := frozen.SortedOIDs()
	assert.Equal(t, []ginternals.Oid{oidLow, oidMid, oidHigh}, sorted)
}

func TestTryInsertAfterFreezePanics(t *testing.T) {
	t.Parallel()

	r := shorthash.New(4, 1)
	r.FreezeAndSort()
	assert.Panics(t, func() {
		r.TryInsert(oidWithFirstByte(t, 0x00, 0))
	})
}
