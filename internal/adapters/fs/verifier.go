package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/zerr"
)

// Verifier checks declared outputs before they are captured.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyOutputs checks that every declared file is a regular file and every
// declared directory is a directory. Declared paths are relative to workDir,
// which is itself relative to root; "" means root. The first violation is
// returned as a *domain.MissingOutputError naming the declared path. Symlinks
// are followed but must resolve inside root.
func (v *Verifier) VerifyOutputs(root, workDir string, files, dirs []string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve sandbox root"), "path", root)
	}
	base := filepath.Join(root, filepath.FromSlash(workDir))

	check := func(rel string, wantDir bool) error {
		abs := filepath.Join(base, filepath.FromSlash(rel))

		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &domain.MissingOutputError{Path: rel}
			}
			return zerr.With(zerr.Wrap(err, "failed to resolve output"), "path", rel)
		}
		if !within(resolvedRoot, resolved) {
			return zerr.With(zerr.Wrap(domain.ErrPathOutsideRoot, "output escapes the sandbox"), "path", rel)
		}

		info, err := os.Stat(resolved)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat output"), "path", rel)
		}
		if info.IsDir() != wantDir || (!wantDir && !info.Mode().IsRegular()) {
			return &domain.MissingOutputError{Path: rel}
		}
		return nil
	}

	for _, f := range files {
		if err := check(f, false); err != nil {
			return err
		}
	}
	for _, d := range dirs {
		if err := check(d, true); err != nil {
			return err
		}
	}
	return nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
