package mtdp

import "sync"

// flag is a boolean condition word with blocking waiters in both
// directions, the Go substitute for the futex-style wait/notify word the
// original library parks on (spec.md §4.6 "done", §4.7 "destroying").
//
// sync/atomic gives lock-free reads and writes but no way to block until a
// value changes; sync.Cond gives exactly that, at the cost of a mutex. Since
// the pipeline's destroying word is waited on (Pipeline.Wait blocks in
// WaitClear), Cond is the better fit here than a bare atomic bool plus
// busy-polling; the enabled and done words are only read with IsSet.
type flag struct {
	mu  sync.Mutex
	cnd *sync.Cond
	set bool
}

func newFlag() *flag {
	f := &flag{}
	f.cnd = sync.NewCond(&f.mu)
	return f
}

// Set raises the flag and wakes every waiter blocked in WaitSet.
func (f *flag) Set() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
	f.cnd.Broadcast()
}

// Clear lowers the flag and wakes every waiter blocked in WaitClear.
func (f *flag) Clear() {
	f.mu.Lock()
	f.set = false
	f.mu.Unlock()
	f.cnd.Broadcast()
}

// IsSet reports the flag's current value.
func (f *flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// WaitSet blocks until the flag is set.
func (f *flag) WaitSet() {
	f.mu.Lock()
	for !f.set {
		f.cnd.Wait()
	}
	f.mu.Unlock()
}

// WaitClear blocks until the flag is clear.
func (f *flag) WaitClear() {
	f.mu.Lock()
	for f.set {
		f.cnd.Wait()
	}
	f.mu.Unlock()
}
