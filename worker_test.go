package mtdp

import (
	"sync/atomic"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(WorkerTestSuite))

type WorkerTestSuite struct{}

func (s *WorkerTestSuite) TestParkedWorkerDoesNotStep(c *gc.C) {
	var calls int32
	w := newWorker("test", func() { atomic.AddInt32(&calls, 1) })
	w.start()
	defer w.destroy()

	time.Sleep(20 * time.Millisecond)
	c.Assert(atomic.LoadInt32(&calls), gc.Equals, int32(0))
}

func (s *WorkerTestSuite) TestEnableStepsUntilDisable(c *gc.C) {
	var calls int32
	w := newWorker("test", func() { atomic.AddInt32(&calls, 1) })
	w.start()
	defer w.destroy()

	w.enable()
	time.Sleep(20 * time.Millisecond)
	w.disable()

	n := atomic.LoadInt32(&calls)
	c.Assert(n > 0, gc.Equals, true)

	time.Sleep(20 * time.Millisecond)
	c.Assert(atomic.LoadInt32(&calls), gc.Equals, n)
}

func (s *WorkerTestSuite) TestDestroyJoinsGoroutine(c *gc.C) {
	w := newWorker("test", func() {})
	w.start()
	w.enable()
	w.destroy()

	select {
	case <-w.done:
	default:
		c.Fatal("done channel not closed after destroy")
	}
}

func (s *WorkerTestSuite) TestStopRequested(c *gc.C) {
	w := newWorker("test", func() {})
	c.Assert(w.stopRequested(), gc.Equals, true)
	w.start()
	defer w.destroy()
	w.enable()
	c.Assert(w.stopRequested(), gc.Equals, false)
	w.disable()
	c.Assert(w.stopRequested(), gc.Equals, true)
}
