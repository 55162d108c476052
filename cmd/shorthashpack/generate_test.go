package main

import (
	"testing"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/config"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/graphbuild"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate(t *testing.T) *object.CommitTemplate {
	t.Helper()
	return config.Default().CommitTemplate()
}

func TestGeneratePackEndToEnd(t *testing.T) {
	t.Parallel()

	const k = 6 // downscaled width: small enough to run in a test
	fs := afero.NewMemMapFs()
	tpl := testTemplate(t)

	packOid, objectCount, packSize, err := generatePack(fs, tpl, k, "/out")
	require.NoError(t, err)
	assert.Equal(t, uint32(graphbuild.ObjectCount(k)), objectCount)
	assert.Greater(t, packSize, int64(0))

	exists, err := afero.Exists(fs, "/out/"+packBaseName(packOid)+".pack")
	require.NoError(t, err)
	assert.True(t, exists)

	idxExists, err := afero.Exists(fs, "/out/"+packBaseName(packOid)+".idx")
	require.NoError(t, err)
	assert.True(t, idxExists)

	tmpExists, err := afero.Exists(fs, "/out/.shorthashpack-tmp.pack")
	require.NoError(t, err)
	assert.False(t, tmpExists, "the temp pack name should have been renamed away")
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()

	const k = 4
	result, err := runDryRun(testTemplate(t), k)
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<k, result.RootCount)
}
