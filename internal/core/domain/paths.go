package domain

import (
	"path"
	"strings"

	"go.trai.ch/zerr"
)

// CleanRelativePath normalizes a slash-separated path that must stay inside a sandbox root.
// Absolute paths, paths escaping the root and the root itself are rejected.
func CleanRelativePath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.ContainsRune(p, '\x00') {
		return "", zerr.With(zerr.Wrap(ErrPathOutsideRoot, "failed to clean path"), "path", p)
	}

	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", zerr.With(zerr.Wrap(ErrPathOutsideRoot, "failed to clean path"), "path", p)
	}

	return cleaned, nil
}

// SplitPath splits a cleaned relative path into its components.
func SplitPath(p string) []string {
	return strings.Split(p, "/")
}

// JoinPath joins a parent path and an entry name; an empty parent yields the name.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
