package mtdp

// SourceContext is handed to a source's Process callback on every call. The
// callback is responsible for producing at most one output buffer per call
// and indicating whether it did so by setting Output and ReadyToPush.
type SourceContext[B any] struct {
	// Self is arbitrary user state, set once before Enable and left alone
	// by the runtime afterward.
	Self any

	// Output must be set together with ReadyToPush=true to hand a produced
	// buffer downstream.
	Output      B
	ReadyToPush bool

	w          *worker
	onFinished func()
	finished   bool
}

// StopRequested reports whether the pipeline is being stopped or disabled,
// so a long-running Process callback can cooperatively yield early.
func (c *SourceContext[B]) StopRequested() bool {
	return c.w.stopRequested()
}

// MarkFinished tells the pipeline that the source will never produce
// another buffer. Once every buffer it has already produced has drained
// through the rest of the pipeline, Wait returns.
func (c *SourceContext[B]) MarkFinished() {
	c.finished = true
	if c.onFinished != nil {
		c.onFinished()
	}
}

// StageContext is handed to an internal stage's Process callback on every
// call. The callback may consume an input buffer, produce an output buffer,
// both, or neither.
type StageContext[B any] struct {
	Self any

	Input      B
	HasInput   bool
	Output     B
	ReadyToPush bool

	w *worker
}

// StopRequested reports whether the pipeline is being stopped or disabled.
func (c *StageContext[B]) StopRequested() bool {
	return c.w.stopRequested()
}

// SinkContext is handed to the sink's Process callback on every call. The
// callback consumes an input buffer; once it returns, the driver puts that
// buffer back into the upstream pipe's free pool.
type SinkContext[B any] struct {
	Self any

	Input    B
	HasInput bool

	w *worker
}

// StopRequested reports whether the pipeline is being stopped or disabled.
func (c *SinkContext[B]) StopRequested() bool {
	return c.w.stopRequested()
}
