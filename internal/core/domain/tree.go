package domain

import (
	"bytes"
	"slices"
	"strings"

	"go.trai.ch/rex/internal/codec"
	"go.trai.ch/zerr"
)

// NodeKind distinguishes file entries from nested directories.
type NodeKind uint8

const (
	// KindFile marks an entry that references a blob.
	KindFile NodeKind = 1
	// KindDirectory marks an entry that references a serialized DirectoryTree.
	KindDirectory NodeKind = 2
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// DirectoryNode is a named entry of a DirectoryTree.
type DirectoryNode struct {
	Name       string   `cbor:"1,keyasint"`
	Kind       NodeKind `cbor:"2,keyasint"`
	Digest     Digest   `cbor:"3,keyasint"`
	Executable bool     `cbor:"4,keyasint,omitempty"`
}

// FileNode returns a file entry.
func FileNode(name string, d Digest, executable bool) DirectoryNode {
	return DirectoryNode{Name: name, Kind: KindFile, Digest: d, Executable: executable}
}

// DirNode returns a directory entry referencing the digest of a serialized child tree.
func DirNode(name string, d Digest) DirectoryNode {
	return DirectoryNode{Name: name, Kind: KindDirectory, Digest: d}
}

// IsDir reports whether the node references a nested tree.
func (n DirectoryNode) IsDir() bool {
	return n.Kind == KindDirectory
}

// SameContent reports whether two nodes reference identical content, ignoring their names.
func (n DirectoryNode) SameContent(o DirectoryNode) bool {
	return n.Kind == o.Kind && n.Digest == o.Digest && n.Executable == o.Executable
}

type treeWire struct {
	Entries []DirectoryNode `cbor:"1,keyasint"`
}

// DirectoryTree is an immutable, digest-addressed listing of one directory level.
// Entries are unique by name and kept in lexicographic order so that the
// serialization, and therefore the digest, is canonical.
type DirectoryTree struct {
	entries []DirectoryNode
	encoded []byte
	digest  Digest
}

// EmptyTree is the tree with no entries.
var EmptyTree = mustTree()

// EmptyTreeDigest is the digest of EmptyTree.
var EmptyTreeDigest = EmptyTree.Digest()

func mustTree() *DirectoryTree {
	t, err := NewTree()
	if err != nil {
		panic("domain: failed to build empty tree: " + err.Error())
	}
	return t
}

// FromEntries builds a tree from a name to node mapping. The map key is authoritative for the entry name.
func FromEntries(entries map[string]DirectoryNode) (*DirectoryTree, error) {
	nodes := make([]DirectoryNode, 0, len(entries))
	for name, node := range entries {
		node.Name = name
		nodes = append(nodes, node)
	}
	return NewTree(nodes...)
}

// NewTree builds a tree from a list of nodes. Duplicate names are rejected.
func NewTree(nodes ...DirectoryNode) (*DirectoryTree, error) {
	entries := make([]DirectoryNode, len(nodes))
	copy(entries, nodes)
	slices.SortFunc(entries, func(a, b DirectoryNode) int {
		return strings.Compare(a.Name, b.Name)
	})

	for i, n := range entries {
		if err := ValidateEntryName(n.Name); err != nil {
			return nil, err
		}
		if n.Kind != KindFile && n.Kind != KindDirectory {
			return nil, zerr.With(zerr.Wrap(ErrInvalidTree, "unknown node kind"), "name", n.Name)
		}
		if n.Kind == KindDirectory && n.Executable {
			entries[i].Executable = false
		}
		if i > 0 && entries[i-1].Name == n.Name {
			return nil, zerr.With(zerr.Wrap(ErrDuplicateEntry, "failed to build tree"), "name", n.Name)
		}
	}

	encoded, err := codec.Marshal(treeWire{Entries: entries})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode tree")
	}

	return &DirectoryTree{
		entries: entries,
		encoded: encoded,
		digest:  DigestOf(encoded),
	}, nil
}

// DecodeTree parses a serialized tree. Only canonical encodings are accepted.
func DecodeTree(data []byte) (*DirectoryTree, error) {
	var wire treeWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, zerr.Wrap(ErrInvalidTree, "failed to decode tree: "+err.Error())
	}

	t, err := NewTree(wire.Entries...)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(t.encoded, data) {
		return nil, zerr.Wrap(ErrInvalidTree, "tree encoding is not canonical")
	}

	return t, nil
}

// Digest returns the digest of the canonical serialization.
func (t *DirectoryTree) Digest() Digest {
	return t.digest
}

// Encode returns the canonical serialization. The returned slice must not be modified.
func (t *DirectoryTree) Encode() []byte {
	return t.encoded
}

// Entries returns a copy of the sorted entries.
func (t *DirectoryTree) Entries() []DirectoryNode {
	return slices.Clone(t.entries)
}

// Len returns the number of entries.
func (t *DirectoryTree) Len() int {
	return len(t.entries)
}

// Lookup returns the entry with the given name.
func (t *DirectoryTree) Lookup(name string) (DirectoryNode, bool) {
	i, ok := slices.BinarySearchFunc(t.entries, name, func(n DirectoryNode, name string) int {
		return strings.Compare(n.Name, name)
	})
	if !ok {
		return DirectoryNode{}, false
	}
	return t.entries[i], true
}

// Equal reports whether both trees have the same digest.
func (t *DirectoryTree) Equal(o *DirectoryTree) bool {
	return t.digest == o.digest
}

// ValidateEntryName checks that name is a single, non-special path component.
func ValidateEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
	case strings.ContainsAny(name, "/\x00"):
	default:
		return nil
	}
	return zerr.With(zerr.Wrap(ErrInvalidEntryName, "failed to validate entry"), "name", name)
}
