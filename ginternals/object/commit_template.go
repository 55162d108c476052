package object

import (
	"strconv"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
)

// CommitTemplate holds the fixed parts of every generated commit: the tree
// the commits all point to, the author/committer identity, and the message
// prefix. Only the parent list and a trailing nonce ever change between
// generated bodies, which keeps bodies deterministic and, for roots
// especially, highly compressible against one another.
type CommitTemplate struct {
	TreeID        ginternals.Oid
	Author        Signature
	Committer     Signature
	MessagePrefix string
}

// NewCommitTemplate builds a CommitTemplate from its four byte-string knobs.
// The author/committer signatures are expected to already carry a fixed
// timestamp: nothing in this repo calls time.Now for commit content, since
// that would make two runs with identical templates produce different
// packs.
func NewCommitTemplate(treeID ginternals.Oid, author, committer Signature, messagePrefix string) *CommitTemplate {
	return &CommitTemplate{
		TreeID:        treeID,
		Author:        author,
		Committer:     committer,
		MessagePrefix: messagePrefix,
	}
}

// BuildRoot returns the body of a parentless (root) commit whose message
// ends with the decimal rendering of nonce. Varying nonce is the only
// thing that can make two root bodies (and therefore their Oids) differ.
func (t *CommitTemplate) BuildRoot(nonce uint64) []byte {
	return t.build(nil, nonce)
}

// BuildMerge returns the body of a merge commit with the given parents (in
// order) and nonce.
func (t *CommitTemplate) BuildMerge(parentIDs []ginternals.Oid, nonce uint64) []byte {
	return t.build(parentIDs, nonce)
}

func (t *CommitTemplate) build(parentIDs []ginternals.Oid, nonce uint64) []byte {
	c := &Commit{
		treeID:    t.TreeID,
		author:    t.Author,
		committer: t.Committer,
		parentIDs: parentIDs,
		message:   t.MessagePrefix + strconv.FormatUint(nonce, 10) + "\n",
	}
	return c.body()
}

// HashRoot returns the Oid a root commit with the given nonce would get.
// Used by the registry's hot path (Phase R hashes far more candidates
// than it ever accepts).
func (t *CommitTemplate) HashRoot(nonce uint64) ginternals.Oid {
	return t.hash(t.BuildRoot(nonce))
}

func (t *CommitTemplate) hash(body []byte) ginternals.Oid {
	return New(TypeCommit, body).ID()
}
