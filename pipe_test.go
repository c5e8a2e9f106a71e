package mtdp

import (
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(PipeTestSuite))

type PipeTestSuite struct{}

func (s *PipeTestSuite) newDisabledPipe(capacity int) *Pipe[int] {
	return newPipe[int](capacity, newFlag())
}

func (s *PipeTestSuite) TestPushThenReleaseMakesBufferVisible(c *gc.C) {
	p := s.newDisabledPipe(4)
	_, err := p.Resize(4)
	c.Assert(err, gc.IsNil)

	h, ok := p.GetEmptyBuffer()
	c.Assert(ok, gc.Equals, true)

	c.Assert(p.PushBuffer(h), gc.Equals, true)

	// Before Release, the consumer must not observe the buffer.
	_, ok = p.GetFullBuffer(5 * time.Millisecond)
	c.Assert(ok, gc.Equals, false)

	p.Release()
	got, ok := p.GetFullBuffer(5 * time.Millisecond)
	c.Assert(ok, gc.Equals, true)
	c.Assert(got, gc.Equals, h)
}

func (s *PipeTestSuite) TestPushBufferRejectsWhenFifoFull(c *gc.C) {
	p := s.newDisabledPipe(1)
	_, err := p.Resize(1)
	c.Assert(err, gc.IsNil)

	h, _ := p.GetEmptyBuffer()
	c.Assert(p.PushBuffer(h), gc.Equals, true)
	c.Assert(p.PushBuffer(99), gc.Equals, false)
}

func (s *PipeTestSuite) TestGetFullBufferTimesOutWhenEmpty(c *gc.C) {
	p := s.newDisabledPipe(2)
	_, ok := p.GetFullBuffer(5 * time.Millisecond)
	c.Assert(ok, gc.Equals, false)
}

func (s *PipeTestSuite) TestResizeFailsWhenEnabled(c *gc.C) {
	enabled := newFlag()
	enabled.Set()
	p := newPipe[int](4, enabled)
	_, err := p.Resize(8)
	code, ok := CodeOf(err)
	c.Assert(ok, gc.Equals, true)
	c.Assert(code, gc.Equals, Enabled)
}

func (s *PipeTestSuite) TestClearDrainsFifoBackIntoPool(c *gc.C) {
	p := s.newDisabledPipe(4)
	_, err := p.Resize(4)
	c.Assert(err, gc.IsNil)

	h, _ := p.GetEmptyBuffer()
	c.Assert(p.PushBuffer(h), gc.Equals, true)
	p.Release()

	c.Assert(p.Clear(), gc.IsNil)
	c.Assert(len(p.Buffers()), gc.Equals, 4)
}

func (s *PipeTestSuite) TestResizeShrinkDropsFromFifoFirst(c *gc.C) {
	p := s.newDisabledPipe(4)
	_, err := p.Resize(4)
	c.Assert(err, gc.IsNil)

	for i := 0; i < 4; i++ {
		h, _ := p.GetEmptyBuffer()
		c.Assert(p.PushBuffer(h), gc.Equals, true)
		p.Release()
	}

	_, err = p.Resize(2)
	c.Assert(err, gc.IsNil)

	count := 0
	for {
		if _, ok := p.GetFullBuffer(0); ok {
			count++
			continue
		}
		break
	}
	c.Assert(count, gc.Equals, 2)
}
