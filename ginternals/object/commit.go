package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/readutil"
	"github.com/pkg/errors"
)

// ErrSignatureInvalid is an error thrown when the signature of a commit
// couldn't be parsed
var ErrSignatureInvalid = errors.New("commit signature is invalid")

// Signature represents the author/committer and time of a commit
type Signature struct {
	Time  time.Time
	Name  string
	Email string
}

// String returns a stringified version of the Signature, matching the
// "Name <email> seconds tz" format git uses in commit bodies
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Time.Unix(), s.Time.Format("-0700"))
}

// IsZero returns whether the signature has the zero value
func (s Signature) IsZero() bool {
	return s.Time.IsZero() && s.Name == "" && s.Email == ""
}

// NewSignatureFromBytes parses a signature line's value.
//
// A signature has the following format:
// User Name <user.email@domain.tld> timestamp timezone
func NewSignatureFromBytes(b []byte) (Signature, error) {
	sig := Signature{}

	data := readutil.ReadTo(b, '<')
	if len(data) == 0 {
		return sig, errors.Wrap(ErrSignatureInvalid, "couldn't retrieve the name")
	}
	sig.Name = strings.TrimSpace(string(data))
	offset := len(data) + 1 // +1 to skip the "<"
	if offset >= len(b) {
		return sig, errors.Wrap(ErrSignatureInvalid, "signature stopped after the name")
	}

	data = readutil.ReadTo(b[offset:], '>')
	if len(data) == 0 {
		return sig, errors.Wrap(ErrSignatureInvalid, "couldn't retrieve the email")
	}
	sig.Email = string(data)
	offset += len(data) + 2 // +2 to skip the "> "
	if offset >= len(b) {
		return sig, errors.Wrap(ErrSignatureInvalid, "signature stopped after the email")
	}

	timestamp := readutil.ReadTo(b[offset:], ' ')
	if len(timestamp) == 0 {
		return sig, errors.Wrap(ErrSignatureInvalid, "couldn't retrieve the timestamp")
	}
	offset += len(timestamp) + 1 // +1 to skip the " "
	if offset >= len(b) {
		return sig, errors.Wrap(ErrSignatureInvalid, "signature stopped after the timestamp")
	}

	t, err := strconv.ParseInt(string(timestamp), 10, 64)
	if err != nil {
		return sig, errors.Wrapf(err, "invalid timestamp %s", timestamp)
	}
	sig.Time = time.Unix(t, 0)

	timezone := b[offset:]
	tz, err := time.Parse("-0700", string(timezone))
	if err != nil {
		return sig, errors.Wrapf(err, "invalid timezone format %s", timezone)
	}
	sig.Time = sig.Time.In(tz.Location())
	return sig, nil
}

// CommitOptions represents all the optional data used to create a commit
type CommitOptions struct {
	Message string
	// Committer represents the person creating the commit. If not
	// provided, the author is used as committer.
	Committer Signature
	ParentIDs []ginternals.Oid
}

// Commit represents a commit object
type Commit struct {
	rawObject *Object

	author    Signature
	committer Signature
	message   string

	parentIDs []ginternals.Oid
	treeID    ginternals.Oid
}

// NewCommit creates a new Commit object and its backing raw Object
func NewCommit(treeID ginternals.Oid, author Signature, opts *CommitOptions) *Commit {
	c := &Commit{
		treeID:    treeID,
		author:    author,
		committer: opts.Committer,
		message:   opts.Message,
		parentIDs: opts.ParentIDs,
	}
	if c.committer.IsZero() {
		c.committer = author
	}
	c.rawObject = c.ToObject()
	return c
}

// NewCommitFromObject creates a Commit from a raw commit Object.
//
// A commit has the following format:
//
//	tree {sha}
//	parent {sha}
//	author {author_name} <{author_email}> {author_date_seconds} {author_date_timezone}
//	committer {committer_name} <{committer_email}> {committer_date_seconds} {committer_date_timezone}
//
//	{commit message}
//
// A commit can have 0 (root), 1 (regular), or many (merge) parent lines.
func NewCommitFromObject(o *Object) (*Commit, error) {
	if o.typ != TypeCommit {
		return nil, fmt.Errorf("type %s is not a commit: %w", o.typ, ErrObjectInvalid)
	}
	c := &Commit{
		rawObject: o,
	}
	objData := o.Bytes()
	offset := 0
	for {
		line := readutil.ReadTo(objData[offset:], '\n')
		offset += len(line) + 1 // +1 to count the \n

		if len(line) == 0 && offset == 1 {
			return nil, fmt.Errorf("could not find commit first line: %w", ErrCommitInvalid)
		}

		// An empty line means everything left is the commit message
		if len(line) == 0 {
			if offset < len(objData) {
				c.message = string(objData[offset:])
			}
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		var err error
		switch string(kv[0]) {
		case "tree":
			c.treeID, err = ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse tree id %#v: %w", kv[1], err)
			}
		case "parent":
			oid, perr := ginternals.NewOidFromChars(kv[1])
			if perr != nil {
				return nil, fmt.Errorf("could not parse parent id %#v: %w", kv[1], perr)
			}
			c.parentIDs = append(c.parentIDs, oid)
		case "author":
			c.author, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse author signature [%s]: %w", string(kv[1]), err)
			}
		case "committer":
			c.committer, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse committer signature [%s]: %w", string(kv[1]), err)
			}
		}
	}

	if c.author.IsZero() {
		return nil, fmt.Errorf("commit has no author: %w", ErrCommitInvalid)
	}
	if c.treeID.IsZero() {
		return nil, fmt.Errorf("commit has no tree: %w", ErrCommitInvalid)
	}
	return c, nil
}

// ID returns the Oid of the commit
func (c *Commit) ID() ginternals.Oid {
	return c.rawObject.ID()
}

// Author returns the Signature of the person that made the changes
func (c *Commit) Author() Signature {
	return c.author
}

// Committer returns the Signature of the person that created the commit
func (c *Commit) Committer() Signature {
	return c.committer
}

// Message returns the commit's message
func (c *Commit) Message() string {
	return c.message
}

// ParentIDs returns the list of Oid of the parent commits, in the order
// they appear in the commit body
func (c *Commit) ParentIDs() []ginternals.Oid {
	out := make([]ginternals.Oid, len(c.parentIDs))
	copy(out, c.parentIDs)
	return out
}

// TreeID returns the Oid of the commit's tree
func (c *Commit) TreeID() ginternals.Oid {
	return c.treeID
}

// ToObject returns the underlying raw Object, building it the first time
func (c *Commit) ToObject() *Object {
	if c.rawObject != nil {
		return c.rawObject
	}
	return New(TypeCommit, c.body())
}

// body renders the commit body: tree line, parent lines in order, author
// line, committer line, a blank line, then the message.
func (c *Commit) body() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("tree ")
	buf.WriteString(c.treeID.String())
	buf.WriteByte('\n')

	for _, p := range c.parentIDs {
		buf.WriteString("parent ")
		buf.WriteString(p.String())
		buf.WriteByte('\n')
	}

	buf.WriteString("author ")
	buf.WriteString(c.author.String())
	buf.WriteByte('\n')

	buf.WriteString("committer ")
	buf.WriteString(c.committer.String())
	buf.WriteByte('\n')

	buf.WriteByte('\n')
	buf.WriteString(c.message)
	return buf.Bytes()
}
