package mtdp

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Pipeline is a linear source -> stage(s) -> sink runtime. Create one with
// New, wire up Source/Stages/Sink and Pipes while it is Disabled, then walk
// it through Enable, Start, Wait and Stop/Disable as needed.
type Pipeline[B any] struct {
	id     uuid.UUID
	cfg    Config
	logger *logrus.Entry

	source *Source[B]
	stages []*Stage[B]
	sink   *Sink[B]
	pipes  []*Pipe[B]

	sourceDriver *sourceDriver[B]
	stageDrivers []*stageDriver[B]
	sinkDriver   *sinkDriver[B]

	enabled    *flag
	active     atomic.Bool
	destroying *flag
	destroyed  atomic.Bool

	lastErr atomic.Value

	mu sync.Mutex
}

// New builds a Pipeline with cfg.InternalStages internal stages, each
// connected by a Pipe of the default capacity (spec.md §4.1's
// minPoolCapacity). The pipeline starts Disabled; wire up Source, Stages,
// Sink and, optionally, resize Pipes before calling Enable.
func New[B any](cfg Config) (*Pipeline[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("mtdp: new: %w", err)
	}
	cfg = cfg.withDefaults()

	p := &Pipeline[B]{
		id:         uuid.New(),
		cfg:        cfg,
		enabled:    newFlag(),
		destroying: newFlag(),
	}
	p.logger = cfg.Logger.WithField("pipeline", p.id.String())

	p.source = &Source[B]{}
	p.sink = &Sink[B]{}
	p.stages = make([]*Stage[B], cfg.InternalStages)
	for i := range p.stages {
		p.stages[i] = &Stage[B]{}
	}

	p.pipes = make([]*Pipe[B], cfg.InternalStages+1)
	for i := range p.pipes {
		p.pipes[i] = newPipe[B](minPoolCapacity, p.enabled)
	}

	return p, nil
}

// Source returns the pipeline's source descriptor. Set its Self and
// Process fields before calling Enable.
func (p *Pipeline[B]) Source() *Source[B] { return p.source }

// Stages returns the pipeline's internal stage descriptors, in pipeline
// order. Set each one's Self and Process fields before calling Enable.
func (p *Pipeline[B]) Stages() []*Stage[B] { return p.stages }

// Sink returns the pipeline's sink descriptor. Set its Self and Process
// fields before calling Enable.
func (p *Pipeline[B]) Sink() *Sink[B] { return p.sink }

// Pipes returns the pipeline's pipes in order: pipes[0] connects the source
// to stages[0] (or directly to the sink if there are no stages), pipes[i]
// connects stages[i-1] to stages[i], and pipes[len(pipes)-1] connects the
// last stage (or the source) to the sink.
func (p *Pipeline[B]) Pipes() []*Pipe[B] { return p.pipes }

// LastError returns the most recent error logged by a driver goroutine, or
// nil if none has occurred. Unlike the per-goroutine errno slot of the
// original library, Go has no goroutine-local storage to mirror exactly;
// this is a best-effort, pipeline-wide substitute — see DESIGN.md.
func (p *Pipeline[B]) LastError() error {
	v := p.lastErr.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

func (p *Pipeline[B]) setLastError(err error) {
	if err == nil {
		return
	}
	p.lastErr.Store(err)
	p.logger.WithError(err).Error("mtdp: driver error")
}

// Enable spawns one goroutine per stage, parked until Start is called. It
// fails with ErrEnabled if the pipeline is already Enabled or Active.
func (p *Pipeline[B]) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled.IsSet() {
		return xerrors.Errorf("mtdp: enable: %w", ErrEnabled)
	}

	p.sinkDriver = newSinkDriver[B](p.sink, p.pipes[len(p.pipes)-1], p.cfg.ConsumerTimeout, p.cfg.Tracer, p.cfg.Metrics)
	p.stageDrivers = make([]*stageDriver[B], len(p.stages))
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stageDrivers[i] = newStageDriver[B](stageName(i), p.stages[i], p.pipes[i], p.pipes[i+1], p.cfg.ConsumerTimeout, p.cfg.Tracer, p.cfg.Metrics, p.setLastError)
	}
	p.sourceDriver = newSourceDriver[B](p.source, p.pipes[0], p.cfg.Tracer, p.cfg.Metrics, p.setLastError)

	// Spawn order mirrors teardown order in reverse: sink first, stages
	// from last to first, source last (spec.md §5).
	p.sinkDriver.w.start()
	for i := len(p.stageDrivers) - 1; i >= 0; i-- {
		p.stageDrivers[i].w.start()
	}
	p.sourceDriver.w.start()

	p.enabled.Set()
	p.logger.Info("mtdp: pipeline enabled")
	return nil
}

// Start wakes every stage goroutine so it begins calling its Process
// callback. It fails with ErrNotEnabled if the pipeline is not Enabled.
func (p *Pipeline[B]) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled.IsSet() {
		return xerrors.Errorf("mtdp: start: %w", ErrNotEnabled)
	}
	if p.active.Swap(true) {
		return xerrors.Errorf("mtdp: start: %w", ErrActive)
	}

	// Enable order mirrors disable order in reverse: sink first, stages
	// reverse, source last, so that downstream stages are always ready to
	// receive before upstream stages can produce.
	p.sinkDriver.w.enable()
	for i := len(p.stageDrivers) - 1; i >= 0; i-- {
		p.stageDrivers[i].w.enable()
	}
	p.sourceDriver.w.enable()

	p.logger.Info("mtdp: pipeline started")
	return nil
}

// Stop parks every stage goroutine after its current step, without losing
// any buffered data. The pipeline returns to the Enabled state; Start can
// resume it later.
func (p *Pipeline[B]) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active.Swap(false) {
		return xerrors.Errorf("mtdp: stop: %w", ErrNotEnabled)
	}

	p.sourceDriver.w.disable()
	for i := range p.stageDrivers {
		p.stageDrivers[i].w.disable()
	}
	p.sinkDriver.w.disable()

	p.logger.Info("mtdp: pipeline stopped")
	return nil
}

// Wait blocks the calling goroutine until the pipeline becomes quiescent:
// the source has called SourceContext.MarkFinished and every downstream
// stage reports itself idle (its last wait for input timed out) on two
// back-to-back checks. Idle stages alone do not end the wait while the
// source has not finished. It is safe to call Wait only while the pipeline
// is Active.
func (p *Pipeline[B]) Wait() {
	p.destroying.WaitClear() // no-op unless a concurrent Disable is racing in

	allDone := func() bool {
		if !p.sourceDriver.isDone() {
			return false
		}
		for _, d := range p.stageDrivers {
			if !d.isDone() {
				return false
			}
		}
		return p.sinkDriver.isDone()
	}

	for {
		if allDone() {
			// Re-check after the fact: a stage that was done a moment ago
			// may have received fresh input in between checks. Only report
			// quiescent if every stage is still simultaneously done.
			if allDone() {
				p.cfg.Metrics.setQuiescent(true)
				return
			}
		}
		time.Sleep(p.cfg.ConsumerTimeout)
	}
}

// Disable tears the pipeline all the way down: it stops every goroutine,
// joins them, returns any input a stage was still holding to its pipe, and
// drains every pipe's FIFO back into that pipe's pool. The pools keep their
// buffers; Enable can be called again. It fails with ErrNotEnabled if the
// pipeline is already Disabled.
func (p *Pipeline[B]) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled.IsSet() {
		return xerrors.Errorf("mtdp: disable: %w", ErrNotEnabled)
	}

	p.destroying.Set()
	defer p.destroying.Clear()

	if p.active.Load() {
		p.sourceDriver.w.disable()
		for i := range p.stageDrivers {
			p.stageDrivers[i].w.disable()
		}
		p.sinkDriver.w.disable()
		p.active.Store(false)
	}

	// Destroy order: source, stages forward, sink — each join blocks until
	// that goroutine has observed destroyed and returned (spec.md §5).
	p.sourceDriver.w.destroy()
	for i := range p.stageDrivers {
		p.stageDrivers[i].w.destroy()
	}
	p.sinkDriver.w.destroy()

	// A stage still holding an input it could not pair with an output
	// buffer returns it to the pipe it came from.
	for _, d := range p.stageDrivers {
		if d.hasPendingIn {
			d.in.PutBack(d.pendingIn)
			var zero B
			d.pendingIn, d.hasPendingIn = zero, false
		}
	}

	// Pipe.Clear refuses to run while enabled is set, so flip it before
	// tearing down the pipes' contents.
	p.enabled.Clear()

	var result *multierror.Error
	for _, pipe := range p.pipes {
		if err := pipe.Clear(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	p.cfg.Metrics.setQuiescent(false)
	p.logger.Info("mtdp: pipeline disabled")
	return result.ErrorOrNil()
}

// Destroy releases any resources still held by a pipeline that was never
// disabled. It is safe to call on an already-disabled pipeline and safe to
// call more than once.
func (p *Pipeline[B]) Destroy() {
	if p.destroyed.Swap(true) {
		return
	}
	if p.enabled.IsSet() {
		_ = p.Disable()
	}
}

func stageName(i int) string {
	return "stage[" + strconv.Itoa(i) + "]"
}
