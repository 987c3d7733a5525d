package reactive

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/ripple/pkg/scope"
)

// defaultTracerName is used when the scope context carries no tracer.
const defaultTracerName = "ripple"

// node carries what every vertex needs from its scope.
type node struct {
	id      string
	name    string
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func newNode(sc *scope.Scope, kind string, o options) node {
	n := node{name: o.name}
	ctx := context.Background()
	n.logger = slog.Default()
	if sc != nil {
		n.id = sc.NextID()
		n.logger = sc.Logger()
		ctx = sc.Context()
	}

	attrs := []any{"node", n.id, "kind", kind}
	if n.name != "" {
		attrs = append(attrs, "name", n.name)
	}
	n.logger = n.logger.With(attrs...)
	n.metrics = metricsFrom(ctx)
	n.tracer = tracerFrom(ctx)
	return n
}

// label identifies the node in metrics and errors. Unnamed nodes share
// one label to keep metric cardinality bounded.
func (n node) label() string {
	if n.name != "" {
		return n.name
	}
	return "anonymous"
}

func (n node) describe() string {
	if n.name != "" {
		return n.name
	}
	if n.id != "" {
		return n.id
	}
	return "node"
}

type tracerKey struct{}

// ContextWithTracer returns a context carrying t. Async nodes created in
// scopes derived from it open their spans on t instead of the global
// provider's "ripple" tracer.
func ContextWithTracer(ctx context.Context, t trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, t)
}

func tracerFrom(ctx context.Context) trace.Tracer {
	if t, ok := ctx.Value(tracerKey{}).(trace.Tracer); ok && t != nil {
		return t
	}
	return otel.Tracer(defaultTracerName)
}
