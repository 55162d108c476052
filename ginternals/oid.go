package ginternals

import (
	"encoding/hex"
	"errors"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/githash"
)

// OidSize is the length of an Oid, in bytes
const OidSize = githash.SHA1Size

// ShortOidHexSize is the number of hex characters in a short identifier
// (the first 28 bits / 7 hex chars of an Oid)
const ShortOidHexSize = 7

var (
	// NullOid is the value of an empty Oid (all zeros)
	NullOid = Oid{}

	// ErrInvalidOid is returned when a given value isn't a valid Oid
	ErrInvalidOid = errors.New("invalid Oid")
)

// hasher derives Oids from framed object content. Git only ever used
// SHA1 for this object format, so this is not made
// pluggable like githash.Hash would allow; nothing in this repo needs a
// second hash algorithm.
var hasher = githash.NewSHA1()

// Oid represents a git object ID: the SHA1 of a framed object body
type Oid [OidSize]byte

// Bytes returns the raw 20 bytes of the Oid
func (o Oid) Bytes() []byte {
	return o[:]
}

// String returns the lowercase-hex representation of the Oid
func (o Oid) String() string {
	return hex.EncodeToString(o[:])
}

// ShortString returns the 7-hex-char short identifier of the Oid
func (o Oid) ShortString() string {
	return o.String()[:ShortOidHexSize]
}

// IsZero returns whether the oid is the zero-value NullOid
func (o Oid) IsZero() bool {
	return o == NullOid
}

// NewOidFromContent returns the Oid of the given content.
// $content is expected to already be framed (i.e. "commit <len>\0<body>")
func NewOidFromContent(content []byte) Oid {
	sum := hasher.Sum(content)
	var oid Oid
	copy(oid[:], sum.Bytes())
	return oid
}

// NewOidFromHex returns an Oid from the provided byte-encoded (raw, not hex
// text) oid
func NewOidFromHex(id []byte) (Oid, error) {
	if len(id) < OidSize {
		return NullOid, ErrInvalidOid
	}
	var oid Oid
	copy(oid[:], id)
	return oid, nil
}

// NewOidFromChars creates an Oid from the given hex-text char bytes
// For the SHA {'9', 'b', '9', '1', 'd', 'a', ...} the oid will be
// {0x9b, 0x91, 0xda, ...}
func NewOidFromChars(id []byte) (Oid, error) {
	return NewOidFromStr(string(id))
}

// NewOidFromStr creates an Oid from the given hex-text string
func NewOidFromStr(id string) (Oid, error) {
	b, err := hex.DecodeString(id)
	if err != nil {
		return NullOid, err
	}
	if len(b) != OidSize {
		return NullOid, ErrInvalidOid
	}
	var oid Oid
	copy(oid[:], b)
	return oid, nil
}
