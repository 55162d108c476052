package object_test

import (
	"testing"
	"time"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate(t *testing.T) *object.CommitTemplate {
	t.Helper()
	treeID, err := ginternals.NewOidFromStr("f0b577644139c6e04216d82f1dd4a5a63addeeca")
	require.NoError(t, err)
	a := object.Signature{Name: "gen", Email: "gen@example.com", Time: time.Unix(0, 0).UTC()}
	return object.NewCommitTemplate(treeID, a, a, "r")
}

func TestCommitTemplateBuildRoot(t *testing.T) {
	t.Parallel()

	tpl := testTemplate(t)
	b1 := tpl.BuildRoot(1)
	b2 := tpl.BuildRoot(2)
	assert.NotEqual(t, b1, b2, "different nonces must produce different bodies")

	o := object.New(object.TypeCommit, b1)
	ci, err := o.AsCommit()
	require.NoError(t, err)
	assert.Empty(t, ci.ParentIDs())
	assert.Equal(t, "r1\n", ci.Message())
}

func TestCommitTemplateBuildMerge(t *testing.T) {
	t.Parallel()

	tpl := testTemplate(t)
	parentID, err := ginternals.NewOidFromStr("9785af758bcc96cd7237ba65eb2c9dd1ecaa3321")
	require.NoError(t, err)

	body := tpl.BuildMerge([]ginternals.Oid{parentID}, 7)
	o := object.New(object.TypeCommit, body)
	ci, err := o.AsCommit()
	require.NoError(t, err)
	assert.Equal(t, []ginternals.Oid{parentID}, ci.ParentIDs())
}

func TestCommitTemplateHashRoot(t *testing.T) {
	t.Parallel()

	tpl := testTemplate(t)
	id := tpl.HashRoot(42)
	o := object.New(object.TypeCommit, tpl.BuildRoot(42))
	assert.Equal(t, o.ID(), id)
}
