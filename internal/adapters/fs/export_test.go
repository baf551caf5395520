package fs

import "go.trai.ch/rex/internal/core/domain"

// Matcher exposes the glob matcher for tests.
type Matcher = matcher

// NewMatcher exposes newMatcher for tests.
func NewMatcher(g domain.PathGlobs) (*Matcher, error) {
	return newMatcher(g)
}

// MemoLen returns the number of memoized digests.
func (h *Hasher) MemoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.memo)
}
