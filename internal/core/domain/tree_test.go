package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/core/domain"
)

func TestFromEntries_CanonicalOrder(t *testing.T) {
	t.Parallel()

	a := domain.DigestOf([]byte("a"))
	b := domain.DigestOf([]byte("b"))

	t1, err := domain.NewTree(
		domain.FileNode("b.txt", b, false),
		domain.FileNode("a.txt", a, true),
	)
	require.NoError(t, err)

	t2, err := domain.FromEntries(map[string]domain.DirectoryNode{
		"a.txt": domain.FileNode("ignored", a, true),
		"b.txt": domain.FileNode("", b, false),
	})
	require.NoError(t, err)

	assert.Equal(t, t1.Digest(), t2.Digest())
	assert.Equal(t, t1.Encode(), t2.Encode())

	entries := t1.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
}

func TestNewTree_DifferentContentDifferentDigest(t *testing.T) {
	t.Parallel()

	d := domain.DigestOf([]byte("x"))

	plain, err := domain.NewTree(domain.FileNode("run.sh", d, false))
	require.NoError(t, err)
	exec, err := domain.NewTree(domain.FileNode("run.sh", d, true))
	require.NoError(t, err)

	assert.NotEqual(t, plain.Digest(), exec.Digest())
}

func TestNewTree_Rejects(t *testing.T) {
	t.Parallel()

	d := domain.DigestOf([]byte("x"))

	tests := []struct {
		name    string
		nodes   []domain.DirectoryNode
		wantErr error
	}{
		{
			name:    "duplicate name",
			nodes:   []domain.DirectoryNode{domain.FileNode("a", d, false), domain.DirNode("a", d)},
			wantErr: domain.ErrDuplicateEntry,
		},
		{
			name:    "slash in name",
			nodes:   []domain.DirectoryNode{domain.FileNode("a/b", d, false)},
			wantErr: domain.ErrInvalidEntryName,
		},
		{
			name:    "dot dot",
			nodes:   []domain.DirectoryNode{domain.FileNode("..", d, false)},
			wantErr: domain.ErrInvalidEntryName,
		},
		{
			name:    "empty name",
			nodes:   []domain.DirectoryNode{domain.FileNode("", d, false)},
			wantErr: domain.ErrInvalidEntryName,
		},
		{
			name:    "unknown kind",
			nodes:   []domain.DirectoryNode{{Name: "a", Digest: d}},
			wantErr: domain.ErrInvalidTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := domain.NewTree(tt.nodes...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeTree_RoundTrip(t *testing.T) {
	t.Parallel()

	child, err := domain.NewTree(domain.FileNode("main.go", domain.DigestOf([]byte("package main")), false))
	require.NoError(t, err)

	root, err := domain.NewTree(
		domain.DirNode("cmd", child.Digest()),
		domain.FileNode("go.mod", domain.DigestOf([]byte("module x")), false),
	)
	require.NoError(t, err)

	decoded, err := domain.DecodeTree(root.Encode())
	require.NoError(t, err)
	assert.True(t, root.Equal(decoded))

	node, ok := decoded.Lookup("cmd")
	require.True(t, ok)
	assert.True(t, node.IsDir())
	assert.Equal(t, child.Digest(), node.Digest)

	_, ok = decoded.Lookup("missing")
	assert.False(t, ok)
}

func TestDecodeTree_Garbage(t *testing.T) {
	t.Parallel()

	_, err := domain.DecodeTree([]byte("not cbor"))
	require.ErrorIs(t, err, domain.ErrInvalidTree)
}

func TestEmptyTree(t *testing.T) {
	t.Parallel()

	tree, err := domain.FromEntries(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyTreeDigest, tree.Digest())
	assert.Equal(t, 0, domain.EmptyTree.Len())
}
