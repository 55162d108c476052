package packfile

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // this is git's own content-addressing hash, not used for security
	"hash"
	"hash/crc32"
	"io"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"golang.org/x/xerrors"
)

// newTrailerHash returns the running hash used for both the pack's and the
// index's trailing checksum: git packs are content-addressed with SHA1
// regardless of which hash ginternals.Oid itself uses internally, so this
// stays a plain sha1.New() rather than going through githash.Hash.
func newTrailerHash() hash.Hash {
	return sha1.New() //nolint:gosec
}

// Writer streams a v2 packfile: header, then one object entry per
// WriteObject/WriteRefDelta call, then Close() appends the trailing
// checksum.
//
// Writer is not safe for concurrent use; callers write objects
// sequentially from a single goroutine.
type Writer struct {
	w      io.Writer
	hash   hash.Hash
	offset uint64

	entries []IndexEntry
}

// NewWriter writes the 12-byte pack header (magic, version, object count)
// and returns a Writer ready to stream objectCount entries.
func NewWriter(w io.Writer, objectCount uint32) (*Writer, error) {
	pw := &Writer{
		w:    w,
		hash: newTrailerHash(),
	}
	mw := io.MultiWriter(pw.w, pw.hash)

	header := make([]byte, 0, packfileHeaderSize)
	header = append(header, packfileMagic()...)
	header = append(header, packfileVersion()...)
	countBuf := make([]byte, 4)
	putUint32BE(countBuf, objectCount)
	header = append(header, countBuf...)

	n, err := mw.Write(header)
	if err != nil {
		return nil, xerrors.Errorf("could not write pack header: %w", err)
	}
	pw.offset = uint64(n)
	return pw, nil
}

// WriteObject writes a plain (non-delta) object entry: a type+size header
// followed by the zlib-compressed content, recorded under oid.
func (pw *Writer) WriteObject(oid ginternals.Oid, typ object.Type, content []byte) error {
	compressed, err := deflate(content)
	if err != nil {
		return xerrors.Errorf("could not compress object %s: %w", oid.String(), err)
	}
	return pw.writeEntry(oid, typ, len(content), compressed)
}

// WriteRefDelta writes a delta-against-named-base entry: a type+size
// header (size is the length of the uncompressed delta instruction
// stream), the 20-byte base Oid (uncompressed, per pack-format.txt), then
// the zlib-compressed delta stream. baseOid must name an object already
// written earlier in this pack, since a reader resolves delta bases by
// re-reading backwards through what's already been written.
func (pw *Writer) WriteRefDelta(oid, baseOid ginternals.Oid, deltaStream []byte) error {
	compressed, err := deflate(deltaStream)
	if err != nil {
		return xerrors.Errorf("could not compress delta for %s: %w", oid.String(), err)
	}
	return pw.writeEntry(oid, object.ObjectDeltaRef, len(deltaStream), append(baseOid.Bytes(), compressed...))
}

// writeEntry emits the type+size header followed by payload (which, for a
// ref-delta, is the base Oid bytes followed by the compressed delta — the
// CRC32 recorded in the index covers exactly these bytes, matching what a
// reader sees after the header).
func (pw *Writer) writeEntry(oid ginternals.Oid, typ object.Type, rawSize int, payload []byte) error {
	header := encodeObjectHeader(typ, uint64(rawSize))

	crc := crc32.NewIEEE()
	mw := io.MultiWriter(pw.w, pw.hash, crc)

	n1, err := mw.Write(header)
	if err != nil {
		return xerrors.Errorf("could not write object header for %s: %w", oid.String(), err)
	}
	n2, err := mw.Write(payload)
	if err != nil {
		return xerrors.Errorf("could not write object payload for %s: %w", oid.String(), err)
	}

	pw.entries = append(pw.entries, IndexEntry{
		Oid:    oid,
		CRC32:  crc.Sum32(),
		Offset: pw.offset,
	})
	pw.offset += uint64(n1 + n2)
	return nil
}

// Entries returns the Oid/CRC32/offset recorded for every object written
// so far, in write order. Feeds directly into WriteIndex.
func (pw *Writer) Entries() []IndexEntry {
	out := make([]IndexEntry, len(pw.entries))
	copy(out, pw.entries)
	return out
}

// Close appends the trailing 20-byte SHA1 checksum of everything written
// (header + every entry) and returns it; this value is also the packfile's
// own Oid and what WriteIndex expects as packChecksum.
func (pw *Writer) Close() (ginternals.Oid, error) {
	sum := pw.hash.Sum(nil)
	if _, err := pw.w.Write(sum); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write pack trailer: %w", err)
	}
	oid, err := ginternals.NewOidFromHex(sum)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not derive pack oid: %w", err)
	}
	return oid, nil
}

// deflate zlib-compresses data at the compression level git itself uses
// for packs.
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeObjectHeader builds the variable-length type+size prefix that
// precedes every pack object: MSB | type(3 bits) | size-low-4-bits in the
// first byte, then 7-bit little-endian continuation chunks for the rest
// of size. This is the exact inverse of the metadata parsing in
// getRawObjectAt.
func encodeObjectHeader(typ object.Type, size uint64) []byte {
	first := byte(typ&0b111) << 4
	first |= byte(size & 0b1111)
	size >>= 4

	out := []byte{first}
	if size == 0 {
		return out
	}
	out[0] |= 0b1000_0000

	for size > 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size != 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func putUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
