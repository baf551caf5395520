// Package runner composes CommandRunners: result caching with single-flight
// deduplication, and remote execution with local fallback.
package runner

import (
	"context"
	"sync"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CommandRunner = (*Caching)(nil)

// call is one execution shared by every caller with the same fingerprint.
type call struct {
	done    chan struct{}
	result  domain.ExecutionResult
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Caching serves results from an ActionCache and collapses concurrent
// identical requests into a single execution of the inner runner.
type Caching struct {
	inner         ports.CommandRunner
	cache         ports.ActionCache
	store         ports.ContentStore
	logger        ports.Logger
	tracer        ports.Tracer
	cacheFailures bool

	mu       sync.Mutex
	inflight map[domain.Fingerprint]*call
}

// CachingOption configures a Caching runner.
type CachingOption func(*Caching)

// WithCacheFailures also caches results with a non-zero exit code.
func WithCacheFailures(enable bool) CachingOption {
	return func(c *Caching) {
		c.cacheFailures = enable
	}
}

// NewCaching wraps inner. Cached results are only served while store still
// holds every digest they name.
func NewCaching(
	inner ports.CommandRunner,
	cache ports.ActionCache,
	store ports.ContentStore,
	logger ports.Logger,
	tracer ports.Tracer,
	opts ...CachingOption,
) *Caching {
	c := &Caching{
		inner:    inner,
		cache:    cache,
		store:    store,
		logger:   logger,
		tracer:   tracer,
		inflight: make(map[domain.Fingerprint]*call),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute implements ports.CommandRunner.
func (c *Caching) Execute(ctx context.Context, req *domain.ExecutionRequest) (result domain.ExecutionResult, err error) {
	fp := req.Fingerprint()

	ctx, span := c.tracer.Start(ctx, "runner.cache",
		ports.WithAttribute("fingerprint", fp.String()),
		ports.WithAttribute("name", req.Name()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if !req.NoCache() {
		if res, ok := c.lookup(ctx, fp); ok {
			span.SetAttribute("cache.hit", true)
			c.logger.Debug("cache hit for " + req.Name())
			return res, nil
		}
	}
	span.SetAttribute("cache.hit", false)

	return c.join(ctx, req)
}

// lookup returns a cached result whose digests are all present in the store.
// Cache read failures are logged and treated as misses.
func (c *Caching) lookup(ctx context.Context, fp domain.Fingerprint) (domain.ExecutionResult, bool) {
	res, ok, err := c.cache.Get(ctx, fp)
	if err != nil {
		c.logger.Warn("action cache lookup failed: " + err.Error())
		return domain.ExecutionResult{}, false
	}
	if !ok {
		return domain.ExecutionResult{}, false
	}

	var digests []domain.Digest
	for _, d := range res.Digests() {
		if d != domain.EmptyTreeDigest {
			digests = append(digests, d)
		}
	}
	missing, err := c.store.FindMissing(ctx, digests)
	if err != nil || len(missing) > 0 {
		return domain.ExecutionResult{}, false
	}
	return res, true
}

// join attaches the caller to the in-flight execution for req, starting one if
// none exists, and waits for it or for the caller's own cancellation.
func (c *Caching) join(ctx context.Context, req *domain.ExecutionRequest) (domain.ExecutionResult, error) {
	fp := req.Fingerprint()

	c.mu.Lock()
	cl, ok := c.inflight[fp]
	if !ok {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call{done: make(chan struct{}), cancel: cancel}
		c.inflight[fp] = cl
		go c.run(callCtx, fp, cl, req)
	}
	cl.waiters++
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.result, cl.err
	case <-ctx.Done():
		c.leave(fp, cl)
		return domain.ExecutionResult{}, ctx.Err()
	}
}

// leave detaches a waiter. The execution is cancelled once nobody waits for it.
func (c *Caching) leave(fp domain.Fingerprint, cl *call) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl.waiters--
	if cl.waiters > 0 {
		return
	}
	cl.cancel()
	if c.inflight[fp] == cl {
		delete(c.inflight, fp)
	}
}

func (c *Caching) run(ctx context.Context, fp domain.Fingerprint, cl *call, req *domain.ExecutionRequest) {
	defer cl.cancel()

	var (
		res domain.ExecutionResult
		err error
		hit bool
	)
	// A concurrent execution may have filled the cache between our lookup and
	// registering this call.
	if !req.NoCache() {
		res, hit = c.lookup(ctx, fp)
	}
	if !hit {
		res, err = c.inner.Execute(ctx, req)
		if err == nil && !req.NoCache() && (res.Succeeded() || c.cacheFailures) {
			if perr := c.cache.Put(ctx, fp, res); perr != nil {
				c.logger.Error(zerr.With(zerr.Wrap(perr, "failed to record result"), "action", req.Name()))
			}
		}
	}

	c.mu.Lock()
	if c.inflight[fp] == cl {
		delete(c.inflight, fp)
	}
	c.mu.Unlock()

	cl.result, cl.err = res, err
	close(cl.done)
}
