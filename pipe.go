package mtdp

import (
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// Pipe connects two adjacent stages: a BufferPool of empty handles owned by
// the downstream stage, a BufferFifo of full handles owned by the upstream
// stage, and a semaphore tracking how many full handles are waiting
// (spec.md §4.3).
//
// A Pipe is safe for concurrent use by exactly one producer goroutine and
// one consumer goroutine, plus at most one configuration goroutine calling
// Resize or Clear while the owning Pipeline is Disabled.
type Pipe[B any] struct {
	pool *BufferPool[B]
	fifo *BufferFifo[B]
	sem  *semaphore

	poolMu sync.Mutex
	fifoMu sync.Mutex

	// enabled points at the owning Pipeline's enabled flag. Resize and
	// Clear refuse to run while it is set, since they rewrite the FIFO's
	// backing store out from under a running producer/consumer pair.
	enabled *flag
}

func newPipe[B any](capacity int, enabled *flag) *Pipe[B] {
	return &Pipe[B]{
		pool:    NewBufferPool[B](),
		fifo:    NewBufferFifo[B](capacity),
		sem:     newSemaphore(capacity),
		enabled: enabled,
	}
}

// GetEmptyBuffer removes and returns a handle from the free pool. ok is
// false if the pool is currently empty.
func (p *Pipe[B]) GetEmptyBuffer() (h B, ok bool) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.pool.PopBack()
}

// PutBack returns a handle to the free pool, e.g. after a consumer decides
// not to forward it downstream.
func (p *Pipe[B]) PutBack(h B) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	p.pool.PushBack(h)
}

// PushBuffer enqueues a full handle onto the FIFO. It returns false without
// blocking if the FIFO is already at capacity (B3). On success, the caller
// must call Release to post the corresponding semaphore token — the two are
// kept separate, rather than combined into one call, so that producers
// always perform them in that exact order (spec.md's push-then-release
// invariant).
func (p *Pipe[B]) PushBuffer(h B) bool {
	p.fifoMu.Lock()
	defer p.fifoMu.Unlock()
	return p.fifo.PushBack(h)
}

// Release posts one semaphore token, making a buffer pushed by PushBuffer
// visible to a waiting consumer.
func (p *Pipe[B]) Release() {
	p.sem.release(1)
}

// GetFullBuffer waits up to timeout for a full buffer to become available,
// then dequeues and returns it. ok is false if timeout elapses first.
func (p *Pipe[B]) GetFullBuffer(timeout time.Duration) (h B, ok bool) {
	if !p.sem.tryAcquireFor(timeout) {
		return h, false
	}
	p.fifoMu.Lock()
	defer p.fifoMu.Unlock()
	return p.fifo.PopFront()
}

// Buffers returns the pipe's free-pool backing slice, for client code that
// wants to pre-populate handles before Enable.
func (p *Pipe[B]) Buffers() []B {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.pool.Buffers()
}

// Resize grows or shrinks both halves of the pipe so that pool+FIFO holds
// exactly n handles in total, returning the pool's resulting backing slice
// for the caller to fill any newly-created slots. It fails with ErrEnabled
// if the owning pipeline is not Disabled.
func (p *Pipe[B]) Resize(n int) ([]B, error) {
	if p.enabled.IsSet() {
		return nil, xerrors.Errorf("mtdp: pipe resize: %w", ErrEnabled)
	}
	p.lock2()
	defer p.unlock2()

	total := p.pool.Size() + p.fifo.Size()
	switch {
	case n > total:
		p.fifo.Grow(n)
		p.sem.resize(n)
		return p.pool.Resize(n - p.fifo.Size()), nil
	case n < total:
		// Drop from the FIFO first (discarding the oldest queued,
		// not-yet-consumed handles, one semaphore token each), then shrink
		// the pool.
		for range p.fifo.DropOldest(total - n) {
			p.sem.tryAcquireFor(0)
		}
		p.sem.resize(max(n, 1))
		poolTarget := n - p.fifo.Size()
		if poolTarget < 0 {
			poolTarget = 0
		}
		return p.pool.Resize(poolTarget), nil
	default:
		return p.pool.Buffers(), nil
	}
}

// Clear drains the FIFO back into the pool, so that every handle the pipe
// is holding — whether empty or full — ends up in the free pool and none
// are lost. It fails with ErrEnabled if the owning pipeline is not
// Disabled.
func (p *Pipe[B]) Clear() error {
	if p.enabled.IsSet() {
		return xerrors.Errorf("mtdp: pipe clear: %w", ErrEnabled)
	}
	p.lock2()
	defer p.unlock2()

	for _, h := range p.fifo.DropOldest(p.fifo.Size()) {
		p.pool.PushBack(h)
	}
	p.sem = newSemaphore(p.pool.Size())
	return nil
}

// lock2 acquires both of the pipe's mutexes in a fixed global order
// (pool then FIFO), the Go analogue of the original library's mtdp_lock2
// backoff routine for acquiring two locks without risking deadlock against
// a concurrent acquisition in the opposite order. Since GetEmptyBuffer/
// PutBack only ever take poolMu and PushBuffer/GetFullBuffer only ever take
// fifoMu, a fixed order here is sufficient and no backoff/retry is needed.
func (p *Pipe[B]) lock2() {
	p.poolMu.Lock()
	p.fifoMu.Lock()
}

func (p *Pipe[B]) unlock2() {
	p.fifoMu.Unlock()
	p.poolMu.Unlock()
}
