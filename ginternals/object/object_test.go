package object_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsCommit(t *testing.T) {
	t.Parallel()

	t.Run("regular commit with all the fields", func(t *testing.T) {
		t.Parallel()

		treeID, _ := ginternals.NewOidFromStr("f0b577644139c6e04216d82f1dd4a5a63addeeca")
		parentID, _ := ginternals.NewOidFromStr("9785af758bcc96cd7237ba65eb2c9dd1ecaa3321")

		var b bytes.Buffer
		b.WriteString("tree ")
		b.WriteString(treeID.String())
		b.WriteString("\n")
		b.WriteString("parent ")
		b.WriteString(parentID.String())
		b.WriteString("\n")
		b.WriteString(`author Melvin Laplanche <melvin.wont.reply@gmail.com> 1566115917 -0700
committer Melvin Laplanche <melvin.wont.reply@gmail.com> 1566115917 -0700

commit head

commit body`)
		rawData := b.Bytes()

		o := object.New(object.TypeCommit, rawData)
		expectedSigName := "Melvin Laplanche"
		expectedSigEmail := "melvin.wont.reply@gmail.com"
		expectedSigTimestamp := int64(1566115917)
		expectedSigOffset := 3600 * -7

		ci, err := o.AsCommit()
		require.NoError(t, err)

		assert.Equal(t, o.ID(), ci.ID())
		assert.Equal(t, "f0b577644139c6e04216d82f1dd4a5a63addeeca", ci.TreeID().String(), "invalid tree id")

		require.False(t, ci.Author().IsZero(), "author missing")
		assert.Equal(t, expectedSigName, ci.Author().Name, "invalid author name")
		assert.Equal(t, expectedSigEmail, ci.Author().Email, "invalid author email")
		assert.Equal(t, expectedSigTimestamp, ci.Author().Time.Unix(), "invalid author timestamp")
		_, tzOffset := ci.Author().Time.Zone()
		assert.Equal(t, expectedSigOffset, tzOffset, "invalid author timezone offset")

		require.Len(t, ci.ParentIDs(), 1, "invalid amount of parent")
		assert.Equal(t, "9785af758bcc96cd7237ba65eb2c9dd1ecaa3321", ci.ParentIDs()[0].String(), "invalid parent id")

		expectedMessage := "commit head\n\ncommit body"
		assert.Equal(t, expectedMessage, ci.Message(), "invalid Message")
	})

	t.Run("non-commit type should fail", func(t *testing.T) {
		t.Parallel()

		o := object.New(object.TypeBlob, []byte("hello"))
		_, err := o.AsCommit()
		require.Error(t, err)
	})
}

func TestType(t *testing.T) {
	t.Parallel()

	t.Run("type.String()", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			desc     string
			typ      object.Type
			expected string
		}{
			{desc: "commit", typ: object.TypeCommit, expected: "commit"},
			{desc: "tree", typ: object.TypeTree, expected: "tree"},
			{desc: "blob", typ: object.TypeBlob, expected: "blob"},
			{desc: "tag", typ: object.TypeTag, expected: "tag"},
			{desc: "ofs-delta", typ: object.ObjectDeltaOFS, expected: "ofs-delta"},
			{desc: "ref-delta", typ: object.ObjectDeltaRef, expected: "ref-delta"},
		}
		for i, tc := range testCases {
			tc := tc
			t.Run(fmt.Sprintf("%d/%s", i, tc.desc), func(t *testing.T) {
				t.Parallel()
				assert.Equal(t, tc.expected, tc.typ.String())
			})
		}
	})

	t.Run("type.IsValid()", func(t *testing.T) {
		t.Parallel()

		assert.True(t, object.TypeCommit.IsValid())
		assert.True(t, object.ObjectDeltaRef.IsValid())
		assert.False(t, object.Type(5).IsValid())
		assert.False(t, object.Type(42).IsValid())
	})
}

func TestCompress(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeCommit, []byte("tree f0b577644139c6e04216d82f1dd4a5a63addeeca\nauthor a <a@a.com> 0 +0000\ncommitter a <a@a.com> 0 +0000\n\nmsg"))
	compressed, err := o.Compress()
	require.NoError(t, err)
	assert.NotEmpty(t, compressed)
	assert.NotEqual(t, o.Bytes(), compressed)
}

func TestNewWithID(t *testing.T) {
	t.Parallel()

	id, _ := ginternals.NewOidFromStr("9785af758bcc96cd7237ba65eb2c9dd1ecaa3321")
	o := object.NewWithID(id, object.TypeCommit, []byte("content"))
	assert.Equal(t, id, o.ID())
	assert.Equal(t, object.TypeCommit, o.Type())
}
