package domain

import (
	"fmt"
	"runtime/debug"
)

// Phase names a bootstrap step.
type Phase string

const (
	PhaseAudit    Phase = "audit"
	PhaseValidate Phase = "validate"
	PhaseLoad     Phase = "load"
	PhaseStart    Phase = "start"
)

// PhaseError is a bootstrap failure. Stack is captured where the error is
// created and must only be logged when debug output is enabled.
type PhaseError struct {
	Phase Phase
	Err   error
	Stack []byte
}

// NewPhaseError wraps err, capturing the current stack.
func NewPhaseError(phase Phase, err error) *PhaseError {
	return &PhaseError{Phase: phase, Err: err, Stack: debug.Stack()}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
