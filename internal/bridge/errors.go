package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrCausalityViolation matches every *CausalityError.
	ErrCausalityViolation = errors.New("causality violation")

	// ErrNoFlow is returned when a handler is called with a context that
	// carries no flow. Wrap the context with flow.New or flow.Fork.
	ErrNoFlow = errors.New("bridge: context carries no flow")
)

// Reason names the kind of causality violation.
type Reason string

const (
	// ReasonMismatch: a finish named an operation other than the innermost.
	ReasonMismatch Reason = "finish_mismatch"
	// ReasonNotOpen: a finish arrived with no operation open.
	ReasonNotOpen Reason = "finish_not_open"
	// ReasonNoActiveOperation: a log or tag arrived with no operation open.
	ReasonNoActiveOperation Reason = "no_active_operation"
)

// CausalityError reports an event that does not fit the flow's nesting. The
// event it describes was not emitted.
type CausalityError struct {
	Reason    Reason
	Op        string // handler: "finish", "log" or "set-tag"
	Operation string // the operation named by a finish
	Innermost string // the innermost open operation, if any
	Err       error
}

func (e *CausalityError) Error() string {
	switch e.Reason {
	case ReasonMismatch:
		return fmt.Sprintf("causality violation: %s %q while %q is the innermost open operation", e.Op, e.Operation, e.Innermost)
	case ReasonNotOpen:
		return fmt.Sprintf("causality violation: %s %q with no operation open", e.Op, e.Operation)
	default:
		return fmt.Sprintf("causality violation: %s with no operation open", e.Op)
	}
}

func (e *CausalityError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCausalityViolation) hold.
func (e *CausalityError) Is(target error) bool {
	return target == ErrCausalityViolation
}
