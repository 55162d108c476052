package packfile

import (
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Verify re-opens a just-written pack/index pair through the regular
// reader path and re-derives every object's Oid from its decompressed,
// delta-resolved, "commit <len>\0"-framed content, confirming it matches
// the Oid recorded in the index; it also recomputes each object's raw
// on-disk CRC32 and compares it against what the index recorded at
// write time. expectedPackOid is checked against the pack's own
// trailing checksum. oids is the full set the caller expects to find;
// GetObject looks a ref-delta's base up through the index, so every base
// must itself be in the pack.
//
// This is a verify-pack-shaped self-check: it reuses the existing reader
// instead of trusting the writer blindly, the same "read back what you
// wrote" pattern as the reader's own tests.
func Verify(fs afero.Fs, packPath string, oids []ginternals.Oid, expectedPackOid ginternals.Oid) (err error) {
	pack, err := NewFromFile(fs, packPath)
	if err != nil {
		return xerrors.Errorf("could not open pack for verification: %w", err)
	}
	defer func() {
		if closeErr := pack.Close(); err == nil {
			err = closeErr
		}
	}()

	packOid, err := pack.ID()
	if err != nil {
		return xerrors.Errorf("could not read pack checksum: %w", err)
	}
	if packOid != expectedPackOid {
		return xerrors.Errorf("pack checksum mismatch: wrote %s, read back %s: %w", expectedPackOid.String(), packOid.String(), ErrVerifyFailed)
	}

	for _, want := range oids {
		o, err := pack.GetObject(want)
		if err != nil {
			return xerrors.Errorf("could not resolve %s: %w", want.String(), err)
		}
		if o.ID() != want {
			return xerrors.Errorf("object at %s round-tripped to %s: %w", want.String(), o.ID().String(), ErrVerifyFailed)
		}
		if err := pack.VerifyObjectCRC(want); err != nil {
			return xerrors.Errorf("CRC32 check failed for %s: %w", want.String(), err)
		}
	}

	if int(pack.ObjectCount()) != len(oids) {
		return xerrors.Errorf("pack header claims %d objects, expected %d: %w", pack.ObjectCount(), len(oids), ErrVerifyFailed)
	}
	return nil
}
