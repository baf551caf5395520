package runner

import "go.trai.ch/rex/internal/core/domain"

// Waiters returns the number of callers attached to the in-flight execution of fp.
func (c *Caching) Waiters(fp domain.Fingerprint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.inflight[fp]; ok {
		return cl.waiters
	}
	return 0
}
