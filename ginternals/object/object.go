// Package object contains methods and structs to work with git objects
package object

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/errutil"
	"golang.org/x/xerrors"
)

var (
	// ErrObjectUnknown represents an error thrown when encountering an
	// unknown object type
	ErrObjectUnknown = errors.New("invalid object type")

	// ErrObjectInvalid represents an error thrown when an object contains
	// unexpected data or when the wrong object is provided to a method
	ErrObjectInvalid = errors.New("invalid object")

	// ErrCommitInvalid represents an error thrown when parsing an invalid
	// commit object
	ErrCommitInvalid = errors.New("invalid commit")
)

// Type represents the type of an object as stored in a packfile
type Type int8

// List of all the possible object types. The numeric values match the
// type field of the packfile object-header (see pack-format.txt); 5 is
// reserved by git for future use.
const (
	TypeCommit     Type = 1
	TypeTree       Type = 2
	TypeBlob       Type = 3
	TypeTag        Type = 4
	ObjectDeltaOFS Type = 6
	ObjectDeltaRef Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case ObjectDeltaOFS:
		return "ofs-delta"
	case ObjectDeltaRef:
		return "ref-delta"
	default:
		return fmt.Sprintf("unknown(%d)", int8(t))
	}
}

// IsValid checks if the object type is a known type
func (t Type) IsValid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag, ObjectDeltaOFS, ObjectDeltaRef:
		return true
	default:
		return false
	}
}

// Object represents a git object. An object can be of multiple types
// but they all share the same content-addressed storage scheme: the Oid
// is the SHA1 of "<type> <size>\0<content>".
// https://git-scm.com/book/en/v2/Git-Internals-Git-Objects
type Object struct {
	id      ginternals.Oid
	typ     Type
	content []byte

	idProcessing sync.Once
}

// New creates a new git object of the given type
func New(typ Type, content []byte) *Object {
	o := &Object{
		typ:     typ,
		content: content,
	}
	o.id, _ = o.build()
	return o
}

// NewWithID creates an object whose Oid is already known (e.g. because it
// was just read back out of a packfile), skipping the hash computation
func NewWithID(id ginternals.Oid, typ Type, content []byte) *Object {
	return &Object{
		id:      id,
		typ:     typ,
		content: content,
	}
}

// ID returns the Oid of the object, computing it lazily if needed
func (o *Object) ID() ginternals.Oid {
	o.idProcessing.Do(func() {
		if o.id.IsZero() {
			o.id, _ = o.build()
		}
	})
	return o.id
}

// Size returns the size of the object's content, in bytes
func (o *Object) Size() int {
	return len(o.content)
}

// Type returns the Type of this object
func (o *Object) Type() Type {
	return o.typ
}

// Bytes returns the object's content (not including the type/size framing)
func (o *Object) Bytes() []byte {
	return o.content
}

// build returns the framed object (the exact bytes that get hashed and,
// once compressed, stored) alongside its Oid: hash of "commit <len>\0" +
// body, for commit objects.
func (o *Object) build() (oid ginternals.Oid, framed []byte) {
	w := new(bytes.Buffer)
	w.WriteString(o.Type().String())
	w.WriteByte(' ')
	w.WriteString(strconv.Itoa(o.Size()))
	w.WriteByte(0)
	w.Write(o.Bytes())

	framed = w.Bytes()
	oid = ginternals.NewOidFromContent(framed)
	return oid, framed
}

// Compress returns the object zlib-compressed, framed the same way build()
// frames it for hashing.
func (o *Object) Compress() (data []byte, err error) {
	_, framed := o.build()

	compressed := new(bytes.Buffer)
	zw, err := zlib.NewWriterLevel(compressed, zlib.BestCompression)
	if err != nil {
		return nil, xerrors.Errorf("could not create zlib writer: %w", err)
	}
	if _, err = zw.Write(framed); err != nil {
		errutil.Close(zw, &err)
		return nil, xerrors.Errorf("could not zlib the object: %w", err)
	}
	// Close flushes the deflate stream and the zlib checksum, so it has to
	// run before the buffer is read
	if err = zw.Close(); err != nil {
		return nil, xerrors.Errorf("could not close zlib writer: %w", err)
	}
	return compressed.Bytes(), nil
}

// AsCommit parses the object as a Commit
func (o *Object) AsCommit() (*Commit, error) {
	if o.typ != TypeCommit {
		return nil, fmt.Errorf("type %s is not a commit: %w", o.typ, ErrObjectInvalid)
	}
	return NewCommitFromObject(o)
}
