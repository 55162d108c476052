package delta_test

import (
	"testing"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/delta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeVarint mirrors the little-endian, MSB-continuation scheme delta.Encode
// writes its size header in, just enough to assert the header round-trips.
func decodeVarint(b []byte) (v uint64, n int) {
	for i, c := range b {
		v |= uint64(c&0x7f) << (7 * uint(i))
		if c&0x80 == 0 {
			return v, i + 1
		}
	}
	return v, len(b)
}

func TestEncodeHeader(t *testing.T) {
	t.Parallel()

	base := []byte("tree abc\nauthor a\n\nr1\n")
	target := []byte("tree abc\nauthor a\n\nr2\n")

	out := delta.Encode(base, target)
	baseSize, n1 := decodeVarint(out)
	targetSize, n2 := decodeVarint(out[n1:])
	assert.Equal(t, uint64(len(base)), baseSize)
	assert.Equal(t, uint64(len(target)), targetSize)
	assert.Positive(t, n2)
}

func TestEncodeSharesPrefixAndSuffix(t *testing.T) {
	t.Parallel()

	base := []byte("tree abc\nauthor a\n\nr100\n")
	target := []byte("tree abc\nauthor a\n\nr999\n")

	out := delta.Encode(base, target)
	// a delta that only needs to replace "100" with "999" should be far
	// smaller than re-inserting the whole target literally
	assert.Less(t, len(out), len(target))
}

func TestEncodeTotallyDifferent(t *testing.T) {
	t.Parallel()

	base := []byte("aaaaaaaaaa")
	target := []byte("bbbbbbbbbb")

	out := delta.Encode(base, target)
	require.NotEmpty(t, out)
	// no shared prefix/suffix: the body should be a pure INSERT, so the
	// delta can't be smaller than target plus its small header
	assert.GreaterOrEqual(t, len(out), len(target))
}

func TestEncodeIdentical(t *testing.T) {
	t.Parallel()

	content := []byte("tree abc\nauthor a\n\nsame message\n")
	out := delta.Encode(content, content)

	_, n1 := decodeVarint(out)
	_, n2 := decodeVarint(out[n1:])
	// identical content should collapse to a single COPY instruction
	// covering the whole base, plus the two size varints
	assert.Less(t, len(out), n1+n2+8)
}
