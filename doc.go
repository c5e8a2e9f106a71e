// Package mtdp implements a reusable multi-threaded pipeline runtime for
// streaming data processing.
//
// A client describes a linear pipeline made of one source, zero or more
// internal stages and one sink. Each stage runs on its own goroutine and
// exchanges ownership of client-allocated buffer handles with its neighbors
// through fixed-capacity pipes: a free pool of empty buffers plus a bounded
// FIFO of full ones. The runtime never looks inside a buffer handle — it
// only shuffles ownership so that at any instant a handle belongs to exactly
// one pipe (pool or FIFO) or to one stage's input/output slot.
//
// # Quick start
//
//	cfg := mtdp.Config{InternalStages: 1}
//	p, err := mtdp.New[*myBuffer](cfg)
//	if err != nil {
//		return err
//	}
//	defer p.Destroy()
//
//	source := p.Source()
//	source.Process = func(ctx *mtdp.SourceContext[*myBuffer]) { ... }
//
//	stage := p.Stages()[0]
//	stage.Process = func(ctx *mtdp.StageContext[*myBuffer]) { ... }
//
//	sink := p.Sink()
//	sink.Process = func(ctx *mtdp.SinkContext[*myBuffer]) { ... }
//
//	for _, pipe := range p.Pipes() {
//		pipe.Resize(32)
//	}
//
//	if err := p.Enable(); err != nil {
//		return err
//	}
//	if err := p.Start(); err != nil {
//		return err
//	}
//	p.Wait()
//	return p.Disable()
//
// # Lifecycle
//
// A pipeline moves through Disabled, Enabled and Active states. Enable
// spawns one goroutine per stage (parked). Start wakes them all. Stop parks
// them again without losing any buffered data. Disable tears everything down
// and returns every in-flight buffer to its originating pipe's pool. Wait
// blocks the caller until the pipeline becomes quiescent: the source has
// called SourceContext.MarkFinished and every other stage has since timed
// out waiting for more input.
//
// # What this package does not do
//
// It does not allocate or free buffer payloads (the client owns that), it
// does not run user stage logic for them (the client supplies callbacks),
// and it does not support nonlinear topologies, dynamic stage insertion, or
// intra-stage parallelism — see SPEC_FULL.md in the module root for the full
// rationale.
package mtdp
