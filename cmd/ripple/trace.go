package main

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/ripple/pkg/reactive"
)

// withSpanExporter returns a context whose async nodes export a span per
// computation to exp. The returned func flushes and stops the provider.
func withSpanExporter(ctx context.Context, exp sdktrace.SpanExporter) (context.Context, func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return reactive.ContextWithTracer(ctx, tp.Tracer("github.com/vango-dev/ripple")), tp.Shutdown
}

func stdoutExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
}
