package reactive

import (
	"fmt"
	"time"
)

// Strategy decides what an async derived node does with a trigger that
// arrives while a computation is in flight.
type Strategy int

const (
	// Queue runs computations one after another in trigger order.
	Queue Strategy = iota

	// Abort cancels the in-flight computation and starts a new one.
	Abort

	// Debounce waits for a quiet period, then computes once with the last
	// sampled values. It cancels an in-flight computation like Abort.
	Debounce
)

func (s Strategy) String() string {
	switch s {
	case Queue:
		return "queue"
	case Abort:
		return "abort"
	case Debounce:
		return "debounce"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses the String form of a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "queue", "":
		return Queue, nil
	case "abort":
		return Abort, nil
	case "debounce":
		return Debounce, nil
	default:
		return Queue, fmt.Errorf("reactive: unknown strategy %q", s)
	}
}

// DefaultDebounce is the window used by WithStrategy(Debounce) when no
// explicit duration is given.
const DefaultDebounce = 50 * time.Millisecond

// Option configures a node.
type Option func(*options)

type options struct {
	name     string
	equal    any
	strategy Strategy
	debounce time.Duration
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.strategy == Debounce && o.debounce <= 0 {
		o.debounce = DefaultDebounce
	}
	return o
}

// WithName names the node in logs, metrics and traces.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithEqual sets the equality used to deduplicate values.
// The function's type must match the node's value type.
func WithEqual[T any](fn func(a, b T) bool) Option {
	return func(o *options) {
		o.equal = EqualFunc[T](fn)
	}
}

// WithStrategy sets the concurrency strategy of an async derived node.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithDebounce selects the Debounce strategy with window d.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.strategy = Debounce
		o.debounce = d
	}
}

func equalFor[T any](o options) EqualFunc[T] {
	if o.equal == nil {
		return DefaultEqual[T]
	}
	fn, ok := o.equal.(EqualFunc[T])
	if !ok {
		var zero T
		panic(fmt.Sprintf("reactive: WithEqual function %T does not match value type %T", o.equal, zero))
	}
	return fn
}
