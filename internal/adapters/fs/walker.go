// Package fs ingests directories from the local filesystem into the content store.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/rex/internal/core/domain"
)

// Entry is one filesystem object yielded by Walker, with its slash-separated path relative to the root.
type Entry struct {
	Path  string
	IsDir bool
}

// Walker provides file walking functionality.
type Walker struct {
	keepStateDirs bool
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithStateDirs makes the walker descend into .git, .jj and .rex directories.
func WithStateDirs() WalkerOption {
	return func(w *Walker) {
		w.keepStateDirs = true
	}
}

// NewWalker creates a new Walker.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk yields every file and directory below root in lexical order, skipping
// version control metadata, rex's own state directory and names matching ignores.
// WithStateDirs disables the first two skips.
// Directories for which prune returns true are not entered. prune may be nil.
// The walk stops at the first error, which is yielded with an empty Entry.
func (w *Walker) Walk(root string, ignores []string, prune func(rel string) bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}

			if skip := w.shouldSkip(d, ignores); skip {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			rel = filepath.ToSlash(rel)
			if d.IsDir() && prune != nil && prune(rel) {
				return filepath.SkipDir
			}

			if !yield(Entry{Path: rel, IsDir: d.IsDir()}, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

func (w *Walker) shouldSkip(d fs.DirEntry, ignores []string) bool {
	name := d.Name()

	if d.IsDir() && !w.keepStateDirs {
		switch name {
		case ".git", ".jj", domain.RexDirName:
			return true
		}
	}

	for _, ignore := range ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			return true
		}
	}
	return false
}
