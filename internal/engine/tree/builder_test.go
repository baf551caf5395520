package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/engine/tree"
)

func TestBuilder_CreatesIntermediateLevels(t *testing.T) {
	store := cas.NewMemoryStore()
	d, err := store.Store(t.Context(), []byte("content"))
	require.NoError(t, err)

	b := tree.NewBuilder(store)
	require.NoError(t, b.AddFile("a/b/c.txt", d, false))
	require.NoError(t, b.AddDirectory("empty"))

	root, err := b.Build(t.Context())
	require.NoError(t, err)

	names := []string{}
	for _, n := range root.Entries() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"a", "empty"}, names)

	emptyNode, ok := root.Lookup("empty")
	require.True(t, ok)
	assert.True(t, emptyNode.IsDir())
	assert.Equal(t, domain.EmptyTreeDigest, emptyNode.Digest)
}

func TestBuilder_OrderIndependent(t *testing.T) {
	store := cas.NewMemoryStore()
	x, err := store.Store(t.Context(), []byte("x"))
	require.NoError(t, err)
	y, err := store.Store(t.Context(), []byte("y"))
	require.NoError(t, err)

	first := tree.NewBuilder(store)
	require.NoError(t, first.AddFile("d/x", x, false))
	require.NoError(t, first.AddFile("y", y, true))

	second := tree.NewBuilder(store)
	require.NoError(t, second.AddFile("y", y, true))
	require.NoError(t, second.AddFile("d/x", x, false))

	a, err := first.Build(t.Context())
	require.NoError(t, err)
	b, err := second.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, a.Digest(), b.Digest())
}

func TestBuilder_Conflicts(t *testing.T) {
	store := cas.NewMemoryStore()
	d := domain.DigestOf([]byte("a"))
	other := domain.DigestOf([]byte("b"))

	b := tree.NewBuilder(store)
	require.NoError(t, b.AddFile("out", d, false))
	require.NoError(t, b.AddFile("out", d, false), "identical re-add is allowed")

	assert.ErrorIs(t, b.AddFile("out", other, false), domain.ErrMergeConflict)
	assert.ErrorIs(t, b.AddFile("out/inner", d, false), domain.ErrMergeConflict)

	require.NoError(t, b.AddFile("dir/file", d, false))
	assert.ErrorIs(t, b.AddTree("dir", domain.EmptyTreeDigest), domain.ErrMergeConflict)
}

func TestBuilder_RejectsEscapingPaths(t *testing.T) {
	b := tree.NewBuilder(cas.NewMemoryStore())
	d := domain.DigestOf([]byte("a"))

	for _, p := range []string{"../x", "/abs", "", "."} {
		assert.ErrorIs(t, b.AddFile(p, d, false), domain.ErrPathOutsideRoot, p)
	}
}

func TestWalk_VisitsDirectoriesBeforeContents(t *testing.T) {
	store := cas.NewMemoryStore()
	root := build(t, store, map[string]file{"b/z": {content: "z"}, "a": {content: "a"}})

	var visited []string
	require.NoError(t, tree.Walk(t.Context(), store, root.Digest(), func(p string, _ domain.DirectoryNode) error {
		visited = append(visited, p)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "b/z"}, visited)

	all, err := tree.Digests(t.Context(), store, root.Digest())
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
