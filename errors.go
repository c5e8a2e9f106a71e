package mtdp

import (
	"golang.org/x/xerrors"
)

// Code classifies the outcome of a pipeline operation, mirroring the
// mtdp_error enumeration of the original C library.
type Code int

const (
	// OK indicates a successful call.
	OK Code = iota
	// NoMem indicates a resource-exhaustion failure while growing an
	// internal structure.
	NoMem
	// Active indicates an operation that is illegal while the pipeline is
	// in the Active state.
	Active
	// Enabled indicates an operation that is illegal while the pipeline is
	// in the Enabled (or Active) state.
	Enabled
	// NotEnabled indicates an operation that requires the pipeline to be
	// Enabled or Active, attempted while Disabled.
	NotEnabled
	// BadPtr indicates an operation attempted on a nil or already-destroyed
	// pipeline.
	BadPtr
	// ThrdError indicates a goroutine-spawning failure.
	ThrdError
	// MtxError indicates a mutual-exclusion primitive failure.
	MtxError
	// CndError indicates a condition-variable primitive failure.
	CndError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case NoMem:
		return "no memory"
	case Active:
		return "pipeline is active"
	case Enabled:
		return "pipeline is enabled"
	case NotEnabled:
		return "pipeline is not enabled"
	case BadPtr:
		return "invalid pipeline reference"
	case ThrdError:
		return "goroutine failure"
	case MtxError:
		return "mutex failure"
	case CndError:
		return "condition variable failure"
	default:
		return "unknown"
	}
}

// codeError carries a Code alongside the wrapped error chain so that
// CodeOf can recover it after the error has been annotated with
// xerrors.Errorf at call sites.
type codeError struct {
	code Code
}

func (e *codeError) Error() string { return e.code.String() }

// Sentinel errors, one per precondition/fault category described in
// spec.md §7. Call sites wrap these with xerrors.Errorf to attach
// component-scoped context, e.g.:
//
//	xerrors.Errorf("mtdp: start: %w", ErrNotEnabled)
var (
	ErrNoMem      error = &codeError{NoMem}
	ErrActive     error = &codeError{Active}
	ErrEnabled    error = &codeError{Enabled}
	ErrNotEnabled error = &codeError{NotEnabled}
	ErrBadPtr     error = &codeError{BadPtr}
	ErrThread     error = &codeError{ThrdError}
	ErrMutex      error = &codeError{MtxError}
	ErrCond       error = &codeError{CndError}
)

// errFifoFull is a transient, non-fatal condition reported through
// Pipeline.LastError when a stage produces a buffer but its downstream
// pipe's FIFO is momentarily at capacity. It is not one of the Code
// sentinels because it never blocks the caller or fails an API call — the
// produced buffer is simply returned to its pool and retried.
var errFifoFull = xerrors.New("mtdp: downstream fifo full, buffer dropped")

// CodeOf recovers the Code carried by err, walking its wrap chain. It
// returns OK for a nil error and reports ok=false if err was never produced
// by this package.
func CodeOf(err error) (code Code, ok bool) {
	if err == nil {
		return OK, true
	}
	var ce *codeError
	if xerrors.As(err, &ce) {
		return ce.code, true
	}
	return 0, false
}
