package scope

import (
	"log/slog"

	"github.com/vango-dev/ripple/internal/idgen"
)

// Policy decides what a failing task does to its scope.
type Policy int

const (
	// Isolate logs and records the failure; the scope stays open.
	Isolate Policy = iota

	// Escalate closes the failing task's scope and reports the failure
	// to the parent, which applies its own policy.
	Escalate
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Isolate:
		return "isolate"
	case Escalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// Option configures a Scope.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
	ids    idgen.Generator
	nodes  idgen.Generator
	policy Policy
}

func defaultOptions() options {
	return options{policy: Isolate}
}

// WithName sets a human-readable name, used in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. Children inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator sets the generator used for scope IDs. Node IDs draw
// from it too unless WithNodeIDGenerator is given. Children share their
// root's generators.
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithNodeIDGenerator sets the generator handed out by NextID.
func WithNodeIDGenerator(g idgen.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.nodes = g
		}
	}
}

// WithSupervision sets the task failure policy. Children inherit it.
func WithSupervision(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}
