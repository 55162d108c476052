// Package shorthash implements an insert-only set of git object ids,
// indexed by the leading k bits of the id, used to decide whether a
// freshly generated root commit's short identifier is one that hasn't
// been claimed yet.
//
// The registry is deliberately dumb: TryInsert is a single bit test and a
// single bit set against a flat bitset, with no hashing, no tree, and no
// rebalancing. At k=28 the bitset is 2^28 bits (32 MiB) and the backing oid
// slice is pre-sized to 2^28 entries (5 GiB at 20 bytes each); at smaller
// k values both are proportionally tiny.
package shorthash

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
)

// Registry tracks which of the 2^K possible short ids (K = the bit-width
// passed to New) have been claimed by an accepted root commit, plus the
// full oid of each accepted root in the order it was accepted.
type Registry struct {
	mu sync.Mutex

	k      uint
	bits   []uint64
	oids   []ginternals.Oid
	frozen bool
}

// New creates a registry for short ids of bit-width k (1 <= k <= 32). want
// is the exact number of entries the caller expects to insert; the oid
// slice is pre-sized to it so TryInsert never reallocates mid-run.
func New(k uint, want int) *Registry {
	if k == 0 || k > 32 {
		panic("shorthash: k must be between 1 and 32")
	}
	numShortIDs := uint64(1) << k
	numWords := (numShortIDs + 63) / 64
	return &Registry{
		k:    k,
		bits: make([]uint64, numWords),
		oids: make([]ginternals.Oid, 0, want),
	}
}

// shortID extracts the leading k bits of oid as an integer in [0, 2^k).
func shortID(oid ginternals.Oid, k uint) uint32 {
	v := binary.BigEndian.Uint32(oid[:4])
	return v >> (32 - k)
}

// TryInsert claims oid's short id if it hasn't been claimed yet. It reports
// whether the claim succeeded. Once frozen via FreezeAndSort, TryInsert
// panics: the registry is insert-only up to the point it's handed off for
// index construction, never after.
func (r *Registry) TryInsert(oid ginternals.Oid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic("shorthash: TryInsert after FreezeAndSort")
	}

	s := shortID(oid, r.k)
	word, bit := s/64, s%64
	if r.bits[word]&(uint64(1)<<bit) != 0 {
		return false
	}
	r.bits[word] |= uint64(1) << bit
	r.oids = append(r.oids, oid)
	return true
}

// Count returns the number of oids accepted so far.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.oids)
}

// Full reports whether every one of the 2^k short ids has been claimed.
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.oids)) == uint64(1)<<r.k
}

// EmissionOrder returns the accepted oids in the order TryInsert accepted
// them. This is what the graph orchestrator slices into per-bucket parent
// lists during Phase M: since Phase R emits bucket-major, nonce-minor, a
// contiguous range of this slice is exactly one bucket's accepted roots.
//
// The returned slice is the registry's own backing array; callers must not
// mutate it.
func (r *Registry) EmissionOrder() []ginternals.Oid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oids
}

// Frozen is the result of FreezeAndSort: an indirect ascending-oid-order
// view over a registry's accepted oids, alongside each entry's original
// emission index.
type Frozen struct {
	emissionOrder []ginternals.Oid
	sortedIdx     []uint32
}

// Len is the number of accepted oids.
func (f *Frozen) Len() int { return len(f.sortedIdx) }

// OIDAt returns the oid at ascending-sort position i.
func (f *Frozen) OIDAt(i int) ginternals.Oid {
	return f.emissionOrder[f.sortedIdx[i]]
}

// EmissionIndexAt returns the original TryInsert acceptance index of the
// oid at ascending-sort position i.
func (f *Frozen) EmissionIndexAt(i int) uint32 {
	return f.sortedIdx[i]
}

// SortedOIDs materializes the full ascending-order oid list. Used for
// completeness checks; not used on the hot insertion path.
func (f *Frozen) SortedOIDs() []ginternals.Oid {
	out := make([]ginternals.Oid, len(f.sortedIdx))
	for i := range f.sortedIdx {
		out[i] = f.OIDAt(i)
	}
	return out
}

// FreezeAndSort closes the registry to further inserts and returns an
// indirect ascending-oid sort over everything accepted so far: the
// registry's own emission-order slice is left untouched (the orchestrator
// still needs it, in original order, to build Phase M's per-bucket parent
// lists) and a parallel index array records the sort permutation, which
// also doubles as each oid's original emission index.
func (r *Registry) FreezeAndSort() *Frozen {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true

	idx := make([]uint32, len(r.oids))
	for i := range idx {
		idx[i] = uint32(i)
	}
	oids := r.oids
	sort.Slice(idx, func(i, j int) bool {
		a, b := oids[idx[i]], oids[idx[j]]
		for k := 0; k < ginternals.OidSize; k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	return &Frozen{emissionOrder: r.oids, sortedIdx: idx}
}
