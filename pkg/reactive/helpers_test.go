package reactive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/ripple/internal/idgen"
	"github.com/vango-dev/ripple/pkg/scope"
)

func newTestScope(t *testing.T) *scope.Scope {
	t.Helper()
	return newTestScopeCtx(t, context.Background())
}

func newTestScopeCtx(t *testing.T, ctx context.Context) *scope.Scope {
	t.Helper()
	sc := scope.New(ctx,
		scope.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		scope.WithIDGenerator(idgen.NewSequence("t")),
	)
	t.Cleanup(func() { sc.Close() })
	return sc
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf(format, args...)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for value")
	}
	panic("unreachable")
}

func awaitState[T any](t *testing.T, a *AsyncDerived[T]) AsyncState[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := a.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	return st
}

// recorder collects values delivered to a subscription.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder[T]) get() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}
