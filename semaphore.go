package mtdp

import "time"

// semaphore is a counting semaphore tracking a Pipe's FIFO fullness
// (spec.md §4.3). Producers release(1) after a successful push_buffer;
// consumers tryAcquireFor(timeout) before get_full_buffer so that a
// consumer with nothing to do can still wake up periodically to report
// itself idle for quiescence detection (spec.md §4.5/§4.6).
//
// Backed by a buffered channel used token-style, the idiomatic Go
// substitute for a platform counting semaphore with a timed acquire.
type semaphore struct {
	tokens chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &semaphore{tokens: make(chan struct{}, capacity)}
}

// release posts n tokens. Callers must never release more tokens than the
// number of full buffers actually pushed, or the channel send blocks.
func (s *semaphore) release(n int) {
	for i := 0; i < n; i++ {
		s.tokens <- struct{}{}
	}
}

// tryAcquireFor blocks for up to timeout waiting for a token. It returns
// true if one was acquired.
func (s *semaphore) tryAcquireFor(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-s.tokens:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.tokens:
		return true
	case <-timer.C:
		return false
	}
}

// resize changes the semaphore's capacity, preserving as many outstanding
// tokens as fit in the new capacity. It must only be called while no
// producer/consumer goroutines are running against it (configuration time).
func (s *semaphore) resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	pending := len(s.tokens)
	if pending > capacity {
		pending = capacity
	}
	newTokens := make(chan struct{}, capacity)
	for i := 0; i < pending; i++ {
		newTokens <- struct{}{}
	}
	// Drain any tokens beyond the new capacity; they correspond to FIFO
	// entries that Pipe.Resize has already dropped.
	s.tokens = newTokens
}
