// Package graphbuild drives the three-phase commit graph build: it calls
// the delta encoder, commit template, shorthash registry, and pack writer
// in the right order to produce the pack's exact byte-for-byte shape.
package graphbuild

import (
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/delta"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/packfile"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/progress"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/shorthash"
	"golang.org/x/xerrors"
)

// BucketLayout splits a k-bit short-identifier space into a bucket count
// and a per-bucket root count whose product is exactly 2^k: the low half
// of k becomes the per-bucket root count, the high half becomes the
// bucket count. At k=28 this gives a 2^14 x 2^14 split exactly.
func BucketLayout(k uint) (bucketSize, numBuckets uint64) {
	low := k / 2
	high := k - low
	return uint64(1) << low, uint64(1) << high
}

// ObjectCount is the total number of commits a run at width k produces:
// every root, every mid merge, plus the one top merge. This is known
// before any object is built, which is what lets the pack header's object
// count be written once up front instead of patched in afterward.
func ObjectCount(k uint) uint64 {
	bucketSize, numBuckets := BucketLayout(k)
	return bucketSize*numBuckets + numBuckets + 1
}

// Result is everything the caller needs after a successful RunGraph: the
// branch tip, every emitted oid in pack emission order (roots, then mid
// merges, then the tip), and the root oids in ascending byte-lexicographic
// order (so a caller can confirm the accepted root set is an exact,
// gap-free permutation of the short-identifier space).
type Result struct {
	Tip            ginternals.Oid
	EmissionOIDs   []ginternals.Oid
	SortedRootOIDs []ginternals.Oid
	RootCount      uint64
	MidMergeCount  uint64
}

// PackWriter is the subset of *packfile.Writer the orchestrator needs;
// declared as an interface purely so tests can swap in a recording stub
// without constructing a real afero file.
type PackWriter interface {
	WriteObject(oid ginternals.Oid, typ object.Type, content []byte) error
	WriteRefDelta(oid, baseOid ginternals.Oid, deltaStream []byte) error
}

var _ PackWriter = (*packfile.Writer)(nil)

// RunGraph executes Phase R (roots), Phase M (mid merges), and Phase T
// (the top merge) against an already-opened pw, in that order, and
// returns the branch tip plus the full emission-order oid list.
func RunGraph(tpl *object.CommitTemplate, k uint, pw PackWriter) (*Result, error) {
	bucketSize, numBuckets := BucketLayout(k)
	totalRoots := bucketSize * numBuckets

	reg := shorthash.New(k, int(totalRoots))
	emission := make([]ginternals.Oid, 0, ObjectCount(k))

	progress.Phase("R (roots)")
	counter := progress.NewCounter("roots accepted", totalRoots)

	var firstRootOID ginternals.Oid
	var firstRootBody []byte
	nonce := uint64(0)
	accepted := uint64(0)

	for b := uint64(0); b < numBuckets; b++ {
		for i := uint64(0); i < bucketSize; i++ {
			for {
				oid := tpl.HashRoot(nonce)
				if reg.TryInsert(oid) {
					body := tpl.BuildRoot(nonce)
					if accepted == 0 {
						firstRootOID = oid
						firstRootBody = body
						if err := pw.WriteObject(oid, object.TypeCommit, body); err != nil {
							return nil, xerrors.Errorf("could not write base root commit: %w", err)
						}
					} else {
						d := delta.Encode(firstRootBody, body)
						if err := pw.WriteRefDelta(oid, firstRootOID, d); err != nil {
							return nil, xerrors.Errorf("could not write delta root commit: %w", err)
						}
					}
					emission = append(emission, oid)
					accepted++
					nonce++
					counter.Update(accepted)
					break
				}
				nonce++
			}
		}
	}

	if reg.Count() != int(totalRoots) {
		return nil, xerrors.Errorf("registry accepted %d roots, expected %d", reg.Count(), totalRoots)
	}

	// FreezeAndSort closes the registry to further inserts. Phase M uses
	// the untouched emission-order view (a contiguous per-bucket slice of
	// it is exactly one bucket's roots); the sorted view is kept on Result
	// so callers can confirm the accepted root set has no gaps or dupes.
	frozen := reg.FreezeAndSort()
	rootsByEmission := reg.EmissionOrder()
	sortedRoots := frozen.SortedOIDs()

	progress.Phase("M (mid merges)")
	midOIDs := make([]ginternals.Oid, numBuckets)
	for b := uint64(0); b < numBuckets; b++ {
		parents := rootsByEmission[b*bucketSize : (b+1)*bucketSize]
		body := tpl.BuildMerge(parents, b)
		oid := object.New(object.TypeCommit, body).ID()
		if err := pw.WriteObject(oid, object.TypeCommit, body); err != nil {
			return nil, xerrors.Errorf("could not write mid merge %d: %w", b, err)
		}
		midOIDs[b] = oid
		emission = append(emission, oid)
	}

	progress.Phase("T (top)")
	topBody := tpl.BuildMerge(midOIDs, 0)
	tip := object.New(object.TypeCommit, topBody).ID()
	if err := pw.WriteObject(tip, object.TypeCommit, topBody); err != nil {
		return nil, xerrors.Errorf("could not write top merge: %w", err)
	}
	emission = append(emission, tip)

	return &Result{
		Tip:            tip,
		EmissionOIDs:   emission,
		SortedRootOIDs: sortedRoots,
		RootCount:      totalRoots,
		MidMergeCount:  numBuckets,
	}, nil
}
