package packfile_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOid(t *testing.T, s string) ginternals.Oid {
	t.Helper()
	oid, err := ginternals.NewOidFromStr(s)
	require.NoError(t, err)
	return oid
}

func buildTestIndex(t *testing.T) (*bytes.Buffer, []packfile.IndexEntry, ginternals.Oid) {
	t.Helper()

	entries := []packfile.IndexEntry{
		{Oid: mustOid(t, "1dcdadc2a420225783794fbffd51e2e137a69646"), CRC32: 0x1111, Offset: 12},
		{Oid: mustOid(t, "9785af758bcc96cd7237ba65eb2c9dd1ecaa3321"), CRC32: 0x2222, Offset: 9001},
		{Oid: mustOid(t, "f0b577644139c6e04216d82f1dd4a5a63addeeca"), CRC32: 0x3333, Offset: 1 << 33},
	}
	packOid := mustOid(t, "bbb720a96e4c29b9950a4c577c98470a4d5dd089")

	var buf bytes.Buffer
	require.NoError(t, packfile.WriteIndex(&buf, entries, packOid))
	return &buf, entries, packOid
}

func TestNewIndex(t *testing.T) {
	t.Parallel()

	t.Run("valid indexfile should pass", func(t *testing.T) {
		t.Parallel()

		buf, _, _ := buildTestIndex(t)
		index, err := packfile.NewIndex(bufio.NewReader(buf))
		require.NoError(t, err)
		assert.NotNil(t, index)
	})

	t.Run("garbage header should fail", func(t *testing.T) {
		t.Parallel()

		buf := bytes.NewBufferString("not a valid index header at all")
		index, err := packfile.NewIndex(bufio.NewReader(buf))
		require.Error(t, err)
		assert.Nil(t, index)
		assert.True(t, errors.Is(err, packfile.ErrInvalidMagic))
	})
}

func TestGetObjectOffset(t *testing.T) {
	t.Parallel()

	buf, entries, _ := buildTestIndex(t)
	index, err := packfile.NewIndex(bufio.NewReader(buf))
	require.NoError(t, err)

	t.Run("should work with valid oid", func(t *testing.T) {
		t.Parallel()

		offset, err := index.GetObjectOffset(entries[0].Oid)
		require.NoError(t, err)
		assert.Equal(t, entries[0].Offset, offset)
	})

	t.Run("should resolve an offset beyond 2GB via the extended table", func(t *testing.T) {
		t.Parallel()

		offset, err := index.GetObjectOffset(entries[2].Oid)
		require.NoError(t, err)
		assert.Equal(t, entries[2].Offset, offset)
	})

	t.Run("should fail with unknown oid", func(t *testing.T) {
		t.Parallel()

		unknown := mustOid(t, "000000000000000000000000000000000000000a")
		_, err := index.GetObjectOffset(unknown)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ginternals.ErrObjectNotFound), "invalid error returned: %s", err.Error())
	})
}

func TestGetObjectCRC(t *testing.T) {
	t.Parallel()

	buf, entries, _ := buildTestIndex(t)
	index, err := packfile.NewIndex(bufio.NewReader(buf))
	require.NoError(t, err)

	crc, err := index.GetObjectCRC(entries[1].Oid)
	require.NoError(t, err)
	assert.Equal(t, entries[1].CRC32, crc)
}

func TestIndexObjectCount(t *testing.T) {
	t.Parallel()

	buf, entries, _ := buildTestIndex(t)
	index, err := packfile.NewIndex(bufio.NewReader(buf))
	require.NoError(t, err)

	count, err := index.ObjectCount()
	require.NoError(t, err)
	assert.Equal(t, len(entries), count)
}
