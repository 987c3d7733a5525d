package scope

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when work is started on a closed scope. It is also
// the cancellation cause of a scope's context once Close begins.
var ErrClosed = errors.New("scope: closed")

// PanicError wraps a value recovered from a panicking task or finalizer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
