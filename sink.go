package mtdp

import (
	"time"

	"github.com/opentracing/opentracing-go"
)

// Sink is the last stage of a pipeline: it has no output, and consumes at
// most one buffer per call from its single input pipe.
type Sink[B any] struct {
	// Name labels this sink in logs, traces and metrics. Defaults to "sink"
	// if left empty.
	Name    string
	Self    any
	Process func(ctx *SinkContext[B])

	driver *sinkDriver[B]
}

type sinkDriver[B any] struct {
	name    string
	snk     *Sink[B]
	in      *Pipe[B]
	w       *worker
	done    *flag
	timeout time.Duration
	tracer  opentracing.Tracer
	metrics *Metrics
}

func newSinkDriver[B any](snk *Sink[B], in *Pipe[B], timeout time.Duration, tracer opentracing.Tracer, metrics *Metrics) *sinkDriver[B] {
	name := snk.Name
	if name == "" {
		name = "sink"
	}
	d := &sinkDriver[B]{name: name, snk: snk, in: in, done: newFlag(), timeout: timeout, tracer: tracer, metrics: metrics}
	d.w = newWorker(d.name, d.step)
	return d
}

func (d *sinkDriver[B]) step() {
	in, ok := d.in.GetFullBuffer(d.timeout)
	if !ok {
		d.done.Set()
		return
	}
	d.done.Clear()
	d.metrics.incConsumed(d.name)

	span := startSpan(d.tracer, d.name)
	ctx := &SinkContext[B]{Self: d.snk.Self, w: d.w, Input: in, HasInput: true}
	d.snk.Process(ctx)
	finishSpan(span)

	d.in.PutBack(ctx.Input)
}

func (d *sinkDriver[B]) isDone() bool { return d.done.IsSet() }
