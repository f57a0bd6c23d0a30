// Package errors defines the error taxonomy shared by the engine components.
// Domain operations surface only the sentinels below; persistence failures
// are wrapped with ErrPersistence, logged at the component boundary, and
// never reach callers of index/predictor/evictor operations.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID  = errors.New("item id already indexed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("persistence failure")
)

// EngineError attaches the originating component and a human-readable
// message to one of the sentinel errors.
type EngineError struct {
	Err       error
	Component string
	Message   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Err.Error(), e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func New(sentinel error, component, message string) *EngineError {
	return &EngineError{
		Err:       sentinel,
		Component: component,
		Message:   message,
	}
}

func Newf(sentinel error, component, format string, args ...any) *EngineError {
	return &EngineError{
		Err:       sentinel,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}
}
