package reactive

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNoDependencies is returned when a derived node is built from an empty
// dependency list.
var ErrNoDependencies = errors.New("reactive: no dependencies")

// ErrNoScope is returned when a node that runs tasks is created without a
// scope.
var ErrNoScope = errors.New("reactive: nil scope")

// ComputeError wraps a panic raised by a compute or effect function.
type ComputeError struct {
	// Node is the name (or ID) of the node whose function panicked.
	Node string

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack at the time of the panic.
	Stack []byte
}

func newComputeError(node string, v any) *ComputeError {
	return &ComputeError{Node: node, Value: v, Stack: debug.Stack()}
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("reactive: %s panicked: %v", e.Node, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *ComputeError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
