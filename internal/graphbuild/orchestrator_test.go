package graphbuild_test

import (
	"testing"
	"time"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/graphbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingWriter is a graphbuild.PackWriter stub that just remembers
// what it was asked to write, so these tests can check orchestration
// logic (ordering, delta bases, bucket membership) without a real pack.
type recordingWriter struct {
	plain map[ginternals.Oid][]byte
	deltas map[ginternals.Oid]ginternals.Oid
	order []ginternals.Oid
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		plain:  make(map[ginternals.Oid][]byte),
		deltas: make(map[ginternals.Oid]ginternals.Oid),
	}
}

func (w *recordingWriter) WriteObject(oid ginternals.Oid, typ object.Type, content []byte) error {
	w.plain[oid] = content
	w.order = append(w.order, oid)
	return nil
}

func (w *recordingWriter) WriteRefDelta(oid, baseOid ginternals.Oid, deltaStream []byte) error {
	w.deltas[oid] = baseOid
	w.order = append(w.order, oid)
	return nil
}

func testTemplate() *object.CommitTemplate {
	treeID, _ := ginternals.NewOidFromStr("f0b577644139c6e04216d82f1dd4a5a63addeeca")
	sig := object.Signature{Name: "gen", Email: "gen@example.com", Time: time.Unix(0, 0).UTC()}
	return object.NewCommitTemplate(treeID, sig, sig, "r")
}

func TestBucketLayout(t *testing.T) {
	t.Parallel()

	bucketSize, numBuckets := graphbuild.BucketLayout(8)
	assert.Equal(t, uint64(16), bucketSize)
	assert.Equal(t, uint64(16), numBuckets)

	// odd k still splits exactly to 2^k
	bucketSize, numBuckets = graphbuild.BucketLayout(7)
	assert.Equal(t, bucketSize*numBuckets, uint64(1)<<7)
}

func TestObjectCount(t *testing.T) {
	t.Parallel()

	// k=8 worked example: 256 roots, 16 mid merges, 1 top = 273
	assert.Equal(t, uint64(273), graphbuild.ObjectCount(8))
}

func TestRunGraphSmallK(t *testing.T) {
	t.Parallel()

	const k = 6 // 8 roots x 8 buckets = 64 roots, 8 mid merges, 1 top = 73
	tpl := testTemplate()
	w := newRecordingWriter()

	result, err := graphbuild.RunGraph(tpl, k, w)
	require.NoError(t, err)

	bucketSize, numBuckets := graphbuild.BucketLayout(k)
	totalRoots := bucketSize * numBuckets

	assert.Equal(t, totalRoots, result.RootCount)
	assert.Equal(t, numBuckets, result.MidMergeCount)
	assert.Len(t, result.EmissionOIDs, int(totalRoots+numBuckets+1))
	assert.Equal(t, result.Tip, result.EmissionOIDs[len(result.EmissionOIDs)-1],
		"the top merge is always last-emitted, and is the branch tip")

	// the sorted root set has no duplicates and is exactly totalRoots long
	assert.Len(t, result.SortedRootOIDs, int(totalRoots))
	seen := make(map[ginternals.Oid]bool, len(result.SortedRootOIDs))
	for _, oid := range result.SortedRootOIDs {
		assert.False(t, seen[oid], "duplicate oid in sorted root set")
		seen[oid] = true
	}

	// the first emitted root is a plain object; every other root is a
	// ref-delta against it
	firstRoot := result.EmissionOIDs[0]
	assert.Contains(t, w.plain, firstRoot)
	for i := 1; i < int(totalRoots); i++ {
		oid := result.EmissionOIDs[i]
		base, isDelta := w.deltas[oid]
		require.True(t, isDelta, "root %d should be emitted as a ref-delta", i)
		assert.Equal(t, firstRoot, base, "every non-first root deltas against the first root")
	}

	// mid merges and the top are emitted as plain commits
	for i := int(totalRoots); i < len(result.EmissionOIDs); i++ {
		assert.Contains(t, w.plain, result.EmissionOIDs[i])
	}

	// structural reachability check: the top merge's body lists every mid
	// merge oid as a parent, and each mid merge's body lists exactly its
	// bucket's roots as parents
	topBody := w.plain[result.Tip]
	topCommit, err := object.NewCommitFromObject(object.NewWithID(result.Tip, object.TypeCommit, topBody))
	require.NoError(t, err)
	assert.Len(t, topCommit.ParentIDs(), int(numBuckets))

	midStart := int(totalRoots)
	for b := uint64(0); b < numBuckets; b++ {
		midOID := result.EmissionOIDs[midStart+int(b)]
		body := w.plain[midOID]
		commit, err := object.NewCommitFromObject(object.NewWithID(midOID, object.TypeCommit, body))
		require.NoError(t, err)
		assert.Equal(t, result.EmissionOIDs[b*bucketSize:(b+1)*bucketSize], commit.ParentIDs(),
			"mid merge %d's parents must be exactly its bucket's roots, in emission order", b)
	}
}

func TestRunGraphDeterministic(t *testing.T) {
	t.Parallel()

	const k = 4
	r1, err := graphbuild.RunGraph(testTemplate(), k, newRecordingWriter())
	require.NoError(t, err)
	r2, err := graphbuild.RunGraph(testTemplate(), k, newRecordingWriter())
	require.NoError(t, err)

	assert.Equal(t, r1.Tip, r2.Tip)
	assert.Equal(t, r1.EmissionOIDs, r2.EmissionOIDs)
}
