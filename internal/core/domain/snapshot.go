package domain

import "go.trai.ch/zerr"

// PathGlobs selects files relative to a root. Patterns use path.Match syntax
// per segment, and a "**" segment matches any number of directories.
type PathGlobs struct {
	Include []string
	Exclude []string
}

// Validate checks that the globs are relative and do not escape the root.
func (g PathGlobs) Validate() error {
	if len(g.Include) == 0 {
		return zerr.Wrap(ErrInvalidRequest, "path globs must include at least one pattern")
	}
	for _, p := range append(append([]string{}, g.Include...), g.Exclude...) {
		if _, err := CleanRelativePath(p); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid glob"), "glob", p)
		}
	}
	return nil
}

// Snapshot is an ingested directory: the root tree digest plus the sorted
// relative paths it contains.
type Snapshot struct {
	Tree  Digest
	Files []string
	Dirs  []string
}

// EmptySnapshot is the snapshot of nothing.
var EmptySnapshot = Snapshot{Tree: EmptyTreeDigest}

// FileContent is one file of a tree read back from the store.
type FileContent struct {
	Path       string
	Content    []byte
	Executable bool
}
