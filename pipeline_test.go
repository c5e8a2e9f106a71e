package mtdp

import (
	"sync"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(PipelineTestSuite))

type PipelineTestSuite struct{}

type testBuffer struct {
	seq int
}

func (s *PipelineTestSuite) TestFullLifecycleForwardsAllBuffers(c *gc.C) {
	cfg := Config{InternalStages: 1, ConsumerTimeout: 10 * time.Millisecond}
	p, err := New[*testBuffer](cfg)
	c.Assert(err, gc.IsNil)
	defer p.Destroy()

	const total = 5
	for _, pipe := range p.Pipes() {
		buffers, err := pipe.Resize(total)
		c.Assert(err, gc.IsNil)
		for i := range buffers {
			if buffers[i] == nil {
				buffers[i] = &testBuffer{}
			}
		}
	}

	var mu sync.Mutex
	var sunk []int
	produced := 0

	p.Source().Process = func(ctx *SourceContext[*testBuffer]) {
		if produced >= total {
			ctx.MarkFinished()
			return
		}
		produced++
		ctx.Output.seq = produced
		ctx.ReadyToPush = true
	}
	p.Stages()[0].Process = func(ctx *StageContext[*testBuffer]) {
		if !ctx.HasInput {
			return
		}
		ctx.Output.seq = ctx.Input.seq
		ctx.ReadyToPush = true
	}
	p.Sink().Process = func(ctx *SinkContext[*testBuffer]) {
		if !ctx.HasInput {
			return
		}
		mu.Lock()
		sunk = append(sunk, ctx.Input.seq)
		mu.Unlock()
	}

	c.Assert(p.Enable(), gc.IsNil)
	c.Assert(p.Start(), gc.IsNil)

	deadline := time.After(2 * time.Second)
	done := make(chan struct{})
	go func() { p.Wait(); close(done) }()
	select {
	case <-done:
	case <-deadline:
		c.Fatal("pipeline did not quiesce")
	}

	c.Assert(p.Stop(), gc.IsNil)
	c.Assert(p.Disable(), gc.IsNil)

	mu.Lock()
	defer mu.Unlock()
	c.Assert(len(sunk), gc.Equals, total)

	// Every handle must have been returned to its originating pipe's pool;
	// none lost in the FIFO-to-pool drain that Disable performs.
	for _, pipe := range p.Pipes() {
		c.Assert(len(pipe.Buffers()), gc.Equals, total)
	}
}

func (s *PipelineTestSuite) TestEnableTwiceFails(c *gc.C) {
	p, err := New[int](Config{})
	c.Assert(err, gc.IsNil)
	defer p.Destroy()

	c.Assert(p.Enable(), gc.IsNil)
	err = p.Enable()
	code, ok := CodeOf(err)
	c.Assert(ok, gc.Equals, true)
	c.Assert(code, gc.Equals, Enabled)
}

func (s *PipelineTestSuite) TestStartWithoutEnableFails(c *gc.C) {
	p, err := New[int](Config{})
	c.Assert(err, gc.IsNil)
	defer p.Destroy()

	err = p.Start()
	code, ok := CodeOf(err)
	c.Assert(ok, gc.Equals, true)
	c.Assert(code, gc.Equals, NotEnabled)
}

func (s *PipelineTestSuite) TestStopStartIsReversible(c *gc.C) {
	cfg := Config{ConsumerTimeout: 5 * time.Millisecond}
	p, err := New[int](cfg)
	c.Assert(err, gc.IsNil)
	defer p.Destroy()

	// The source's Process only runs while an empty buffer is available
	// from its output pipe.
	for _, pipe := range p.Pipes() {
		_, err := pipe.Resize(4)
		c.Assert(err, gc.IsNil)
	}

	var calls int
	var mu sync.Mutex
	p.Source().Process = func(ctx *SourceContext[int]) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	p.Sink().Process = func(ctx *SinkContext[int]) {}

	c.Assert(p.Enable(), gc.IsNil)
	c.Assert(p.Start(), gc.IsNil)
	time.Sleep(20 * time.Millisecond)
	c.Assert(p.Stop(), gc.IsNil)
	// Stop parks the source after its current step; let that step finish.
	time.Sleep(5 * time.Millisecond)

	mu.Lock()
	afterStop := calls
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	c.Assert(calls, gc.Equals, afterStop)
	mu.Unlock()

	c.Assert(p.Start(), gc.IsNil)
	time.Sleep(20 * time.Millisecond)
	c.Assert(p.Stop(), gc.IsNil)
	mu.Lock()
	c.Assert(calls > afterStop, gc.Equals, true)
	mu.Unlock()

	c.Assert(p.Disable(), gc.IsNil)
}

func (s *PipelineTestSuite) TestConfigValidateAggregatesErrors(c *gc.C) {
	_, err := New[int](Config{InternalStages: -1, ConsumerTimeout: -1})
	c.Assert(err, gc.ErrorMatches, "(?s).*internal stages.*consumer timeout.*")
}

func (s *PipelineTestSuite) TestLastErrorReflectsDroppedBuffer(c *gc.C) {
	cfg := Config{ConsumerTimeout: 5 * time.Millisecond}
	p, err := New[int](cfg)
	c.Assert(err, gc.IsNil)
	defer p.Destroy()

	for _, pipe := range p.Pipes() {
		_, err := pipe.Resize(3)
		c.Assert(err, gc.IsNil)
		// Resize keeps the FIFO at least as large as the pipe's buffer
		// count, so a full FIFO cannot occur through it; a one-slot FIFO
		// stands in for one.
		pipe.fifo = NewBufferFifo[int](1)
	}

	p.Source().Process = func(ctx *SourceContext[int]) {
		ctx.Output = 1
		ctx.ReadyToPush = true
	}
	p.Sink().Process = func(ctx *SinkContext[int]) {
		// a slow consumer: while it holds one buffer, the one-slot FIFO
		// fills up and later pushes are dropped
		time.Sleep(20 * time.Millisecond)
	}

	c.Assert(p.Enable(), gc.IsNil)
	c.Assert(p.Start(), gc.IsNil)

	deadline := time.Now().Add(time.Second)
	for p.LastError() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(p.LastError(), gc.NotNil)

	c.Assert(p.Stop(), gc.IsNil)
	c.Assert(p.Disable(), gc.IsNil)
}
