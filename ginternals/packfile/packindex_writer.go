package packfile

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"golang.org/x/xerrors"
)

// offsetMSB flags a layer4 entry as an indirection into layer5, per
// pack-format.txt's large-offset encoding.
const offsetMSB = 0x80000000

// maxSmallOffset is the biggest pack offset that fits in the 31 usable bits
// of a layer4 entry
const maxSmallOffset = 0x7fffffff

// IndexEntry is one object's worth of index metadata: WriteIndex takes a
// full, final list of these (already deduped) and emits a v2 pack-index
// byte-for-byte.
type IndexEntry struct {
	Oid    ginternals.Oid
	CRC32  uint32
	Offset uint64
}

// WriteIndex writes a v2 pack-index to w: header, fan-out table (layer1),
// sorted oids (layer2), CRC32s (layer3), offsets (layer4, plus layer5 for
// any offset that doesn't fit in 31 bits), packChecksum, then the SHA1 of
// everything written so far.
//
// entries does not need to be pre-sorted; WriteIndex sorts a copy by Oid,
// which is the order git's pack-index format requires.
func WriteIndex(w io.Writer, entries []IndexEntry, packChecksum ginternals.Oid) (err error) {
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return oidLess(sorted[i].Oid, sorted[j].Oid)
	})

	h := newTrailerHash()
	mw := io.MultiWriter(w, h)

	if _, err = mw.Write(indexHeader()); err != nil {
		return xerrors.Errorf("could not write index header: %w", err)
	}

	// Layer1: fan-out table, one cumulative count per possible first byte
	var fanout [256]uint32
	for _, e := range sorted {
		fanout[e.Oid[0]]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}
	var buf4 [4]byte
	for _, count := range fanout {
		binary.BigEndian.PutUint32(buf4[:], count)
		if _, err = mw.Write(buf4[:]); err != nil {
			return xerrors.Errorf("could not write fanout table: %w", err)
		}
	}

	// Layer2: sorted oids
	for _, e := range sorted {
		if _, err = mw.Write(e.Oid.Bytes()); err != nil {
			return xerrors.Errorf("could not write oid %s: %w", e.Oid.String(), err)
		}
	}

	// Layer3: CRC32s, same order as layer2
	for _, e := range sorted {
		binary.BigEndian.PutUint32(buf4[:], e.CRC32)
		if _, err = mw.Write(buf4[:]); err != nil {
			return xerrors.Errorf("could not write crc for %s: %w", e.Oid.String(), err)
		}
	}

	// Layer4/5: offsets. Entries whose offset doesn't fit in 31 bits get
	// an MSB-flagged indirection into layer5, in first-seen order.
	var layer5 []uint64
	for _, e := range sorted {
		if e.Offset <= maxSmallOffset {
			binary.BigEndian.PutUint32(buf4[:], uint32(e.Offset))
		} else {
			binary.BigEndian.PutUint32(buf4[:], offsetMSB|uint32(len(layer5)))
			layer5 = append(layer5, e.Offset)
		}
		if _, err = mw.Write(buf4[:]); err != nil {
			return xerrors.Errorf("could not write offset for %s: %w", e.Oid.String(), err)
		}
	}
	var buf8 [8]byte
	for _, off := range layer5 {
		binary.BigEndian.PutUint64(buf8[:], off)
		if _, err = mw.Write(buf8[:]); err != nil {
			return xerrors.Errorf("could not write extended offset: %w", err)
		}
	}

	// Trailer: the pack's own checksum, then the running checksum of
	// everything written to the index so far.
	if _, err = mw.Write(packChecksum.Bytes()); err != nil {
		return xerrors.Errorf("could not write pack checksum trailer: %w", err)
	}
	if _, err = w.Write(h.Sum(nil)); err != nil {
		return xerrors.Errorf("could not write index checksum trailer: %w", err)
	}
	return nil
}

func oidLess(a, b ginternals.Oid) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
