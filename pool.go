package tpl2pdf

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one renderer is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// rendererPool bounds how many renderers (one browser each) exist at once.
// Renderers are created lazily on first acquire to avoid startup delay.
// When every renderer is checked out, acquire blocks until one is released
// or the caller's context is done.
type rendererPool struct {
	size      int
	newFn     func() renderer
	renderers []renderer
	idle      chan renderer
	mu        sync.Mutex
	created   int
	closed    bool
	metrics   *metrics
}

// newRendererPool creates a pool with capacity for n renderers built by newFn.
func newRendererPool(n int, newFn func() renderer, m *metrics) *rendererPool {
	if n < MinPoolSize {
		n = MinPoolSize
	}

	return &rendererPool{
		size:      n,
		newFn:     newFn,
		renderers: make([]renderer, 0, n),
		idle:      make(chan renderer, n),
		metrics:   m,
	}
}

// acquire gets a renderer, creating one if capacity allows.
// Blocks while all renderers are in use; returns ctx.Err() if ctx ends first.
func (p *rendererPool) acquire(ctx context.Context) (renderer, error) {
	start := time.Now()
	r, err := p.take(ctx)
	if err != nil {
		return nil, err
	}
	p.metrics.observePoolWait(time.Since(start))
	p.metrics.poolAcquired()
	return r, nil
}

func (p *rendererPool) take(ctx context.Context) (renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Try to get an idle renderer (non-blocking)
	select {
	case r, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	default:
	}

	// Check if we can create a new renderer
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		r := p.newFn()
		p.renderers = append(p.renderers, r)
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	// All renderers created, wait for one to be released
	select {
	case r, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release returns a renderer to the pool. After close it is a no-op.
// The send happens under the lock so it cannot race with close(p.idle);
// it never blocks because at most size renderers exist.
func (p *rendererPool) release(r renderer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.metrics.poolReleased()
	p.idle <- r
}

// discard closes a renderer that is no longer usable (e.g. its browser died)
// and puts a fresh one in its slot. The replacement is idle, so a caller
// blocked in acquire is woken; it launches its browser on first use.
func (p *rendererPool) discard(r renderer) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	for i, existing := range p.renderers {
		if existing == r {
			fresh := p.newFn()
			p.renderers[i] = fresh
			p.idle <- fresh
			break
		}
	}
	p.metrics.poolReleased()
	p.mu.Unlock()

	return r.Close()
}

// close releases all browser resources, including renderers still checked out.
// Returns an aggregated error if multiple renderers fail to close.
func (p *rendererPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	renderers := p.renderers
	p.renderers = nil
	p.mu.Unlock()

	var errs []error
	for _, r := range renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// capacity returns the maximum number of renderers.
func (p *rendererPool) capacity() int {
	return p.size
}

// ResolvePoolSize determines the optimal pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolvePoolSize(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
