package mtdp

import (
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/xerrors"
)

// Stage is one internal processing step of a pipeline, sitting between two
// pipes. It pulls a full buffer from its input pipe, may produce a buffer
// for its output pipe, and decides independently whether to consume, to
// forward, to both, or to drop.
type Stage[B any] struct {
	// Name labels this stage in logs, traces and metrics. Defaults to
	// "stage[i]" (its index in the pipeline) if left empty.
	Name    string
	Self    any
	Process func(ctx *StageContext[B])

	driver *stageDriver[B]
}

type stageDriver[B any] struct {
	name    string
	stg     *Stage[B]
	in      *Pipe[B]
	out     *Pipe[B]
	w       *worker
	done    *flag
	timeout time.Duration
	tracer  opentracing.Tracer
	metrics *Metrics
	onError func(error)

	// pendingIn holds an already-acquired input buffer across step() calls
	// when no output buffer was available to pair it with. It must not be
	// dropped or re-acquired until an output buffer frees up.
	pendingIn    B
	hasPendingIn bool
}

func newStageDriver[B any](defaultName string, stg *Stage[B], in, out *Pipe[B], timeout time.Duration, tracer opentracing.Tracer, metrics *Metrics, onError func(error)) *stageDriver[B] {
	name := stg.Name
	if name == "" {
		name = defaultName
	}
	d := &stageDriver[B]{name: name, stg: stg, in: in, out: out, done: newFlag(), timeout: timeout, tracer: tracer, metrics: metrics, onError: onError}
	d.w = newWorker(name, d.step)
	return d
}

// step implements the stage's per-call algorithm: pull first (respecting
// the configured timeout so stopRequested gets rechecked), then push.
// A stage with no input available within the timeout marks itself done,
// the signal Pipeline.Wait uses to detect quiescence; receiving input later
// clears it again.
//
// process() is only ever invoked once an empty output buffer is actually in
// hand. If the output pool is momentarily exhausted, the already-acquired
// input is held onto rather than processed or returned, and step() retries
// on the next call — mirroring the original library's stage loop, which
// only calls the user callback when an output buffer is available and
// otherwise yields with the input still pending.
func (d *stageDriver[B]) step() {
	in := d.pendingIn
	if !d.hasPendingIn {
		var ok bool
		in, ok = d.in.GetFullBuffer(d.timeout)
		if !ok {
			d.done.Set()
			return
		}
		d.done.Clear()
		d.metrics.incConsumed(d.name)
	}

	outBuf, hasOut := d.out.GetEmptyBuffer()
	if !hasOut {
		// Hold onto the input; nothing has been consumed or lost. Yield and
		// let a later step() retry once downstream frees a buffer.
		d.pendingIn = in
		d.hasPendingIn = true
		time.Sleep(time.Millisecond)
		return
	}
	d.hasPendingIn = false
	var zero B
	d.pendingIn = zero

	span := startSpan(d.tracer, d.name)
	ctx := &StageContext[B]{Self: d.stg.Self, w: d.w, Input: in, HasInput: true, Output: outBuf}
	d.stg.Process(ctx)
	finishSpan(span)

	// The input buffer's empty slot always returns to the input pipe's
	// pool, whether or not the stage chose to forward a (possibly
	// different) buffer downstream.
	d.in.PutBack(ctx.Input)

	if !ctx.ReadyToPush {
		d.out.PutBack(outBuf)
		return
	}
	if !d.out.PushBuffer(ctx.Output) {
		d.out.PutBack(ctx.Output)
		d.metrics.incDropped(d.name)
		if d.onError != nil {
			d.onError(xerrors.Errorf("mtdp: %s: %w", d.name, errFifoFull))
		}
		return
	}
	d.out.Release()
	d.metrics.incProduced(d.name)
}

func (d *stageDriver[B]) isDone() bool { return d.done.IsSet() }
