package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDefinition = errors.New("invalid activity definition")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidAnswer     = errors.New("invalid answer")
	// ErrMatchRejected reports a wrong matching guess. The guess is not
	// stored; the session stays usable.
	ErrMatchRejected = errors.New("match rejected")
)

// DefinitionError names the offending field of an authored activity.
type DefinitionError struct {
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDefinition, e.Field, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidDefinition }

func invalidf(field, format string, args ...any) error {
	return &DefinitionError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a session method is called in a state
// that does not allow it. The session is left unchanged.
type TransitionError struct {
	Op    string
	State Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s not allowed while %s", ErrInvalidTransition, e.Op, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
