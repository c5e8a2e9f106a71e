package mtdp

import (
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/xerrors"
)

// Source is the first stage of a pipeline: it has no input, and produces at
// most one buffer per call into its single output pipe.
type Source[B any] struct {
	// Name labels this source in logs, traces and metrics. Defaults to
	// "source" if left empty.
	Name string
	// Self is handed to every SourceContext as Self, for the callback's
	// own state.
	Self any
	// Process is called repeatedly once the pipeline is Active, each time
	// with an empty buffer from the output pipe's pool already in
	// ctx.Output; while that pool is empty it is not called. It must
	// set ctx.Output and ctx.ReadyToPush to hand a buffer downstream, or
	// leave ReadyToPush false to skip this call.
	Process func(ctx *SourceContext[B])

	driver *sourceDriver[B]
}

type sourceDriver[B any] struct {
	name    string
	src     *Source[B]
	out     *Pipe[B]
	w       *worker
	done    *flag
	tracer  opentracing.Tracer
	metrics *Metrics
	onError func(error)

	finished bool
}

func newSourceDriver[B any](src *Source[B], out *Pipe[B], tracer opentracing.Tracer, metrics *Metrics, onError func(error)) *sourceDriver[B] {
	name := src.Name
	if name == "" {
		name = "source"
	}
	d := &sourceDriver[B]{name: name, src: src, out: out, done: newFlag(), tracer: tracer, metrics: metrics, onError: onError}
	d.w = newWorker(d.name, d.step)
	return d
}

func (d *sourceDriver[B]) step() {
	h, ok := d.out.GetEmptyBuffer()
	if !ok {
		// Nothing to produce into; back off briefly rather than spin.
		time.Sleep(time.Millisecond)
		return
	}

	span := startSpan(d.tracer, d.name)
	ctx := &SourceContext[B]{Self: d.src.Self, w: d.w, onFinished: func() { d.finished = true }}
	ctx.Output = h
	d.src.Process(ctx)
	finishSpan(span)

	if !ctx.ReadyToPush {
		d.out.PutBack(h)
		if d.finished {
			d.done.Set()
		}
		return
	}
	if !d.out.PushBuffer(ctx.Output) {
		// Downstream FIFO is momentarily full; give the handle back to the
		// pool rather than lose it, and try again next call.
		d.out.PutBack(ctx.Output)
		d.metrics.incDropped(d.name)
		if d.onError != nil {
			d.onError(xerrors.Errorf("mtdp: %s: %w", d.name, errFifoFull))
		}
		return
	}
	d.out.Release()
	d.metrics.incProduced(d.name)
	if d.finished {
		d.done.Set()
	}
}

func (d *sourceDriver[B]) isDone() bool { return d.done.IsSet() }
