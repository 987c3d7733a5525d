package reactive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/ripple/pkg/scope"
)

// Phase classifies an AsyncState.
type Phase int

const (
	// PhaseLoading is the first computation, with no prior result.
	PhaseLoading Phase = iota
	// PhaseReloading is a computation in flight with a prior result kept.
	PhaseReloading
	// PhaseResolved holds a value.
	PhaseResolved
	// PhaseFailed holds an error.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReloading:
		return "reloading"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// AsyncState is the value held by an AsyncDerived.
//
// While a computation runs, Loading is set and the previous Value and Err
// are kept, so a consumer can keep showing stale data.
type AsyncState[T any] struct {
	Loading  bool
	Value    T
	HasValue bool
	Err      error
}

// Phase returns the state's phase.
func (s AsyncState[T]) Phase() Phase {
	switch {
	case s.Loading && (s.HasValue || s.Err != nil):
		return PhaseReloading
	case s.Loading:
		return PhaseLoading
	case s.Err != nil:
		return PhaseFailed
	default:
		return PhaseResolved
	}
}

// MarshalJSON writes the state with its phase and the error message.
func (s AsyncState[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Phase    string `json:"phase"`
		Loading  bool   `json:"loading"`
		Value    T      `json:"value"`
		HasValue bool   `json:"hasValue"`
		Error    string `json:"error,omitempty"`
	}{
		Phase:    s.Phase().String(),
		Loading:  s.Loading,
		Value:    s.Value,
		HasValue: s.HasValue,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// Settled reports whether no computation is in flight.
func (s AsyncState[T]) Settled() bool { return !s.Loading }

func stateEqual[T any](eq EqualFunc[T]) EqualFunc[AsyncState[T]] {
	return func(a, b AsyncState[T]) bool {
		if a.Loading != b.Loading || a.HasValue != b.HasValue || !sameError(a.Err, b.Err) {
			return false
		}
		return !a.HasValue || eq(a.Value, b.Value)
	}
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Error() == b.Error()
}

// AsyncDerived runs an asynchronous computation whenever its dependencies
// change and exposes the outcome as an AsyncState.
//
// Computations run as tasks of a scope owned by the node; closing the
// scope the node was created in cancels them. What happens when a change
// arrives while a computation is in flight depends on the Strategy.
// Every computation gets a generation number and only the newest one may
// write the state, so a cancelled computation that finishes late is
// discarded.
type AsyncDerived[T any] struct {
	node
	strategy Strategy
	debounce time.Duration

	inner    *scope.Scope
	state    *Signal[AsyncState[T]]
	triggers *mailbox[request[T]]
	resample func()

	// gen is only touched by the supervisor goroutine.
	gen       uint64
	requested atomic.Uint64

	mu      sync.Mutex
	settled uint64
	changed chan struct{}
	closed  bool
}

// request is one trigger: the values sampled at that moment, bound into
// a run func.
type request[T any] struct {
	id  uint64
	run func(ctx context.Context) (T, error)
}

type outcome[T any] struct {
	gen     uint64
	req     uint64
	value   T
	err     error
	elapsed time.Duration
}

type attempt struct {
	gen    uint64
	cancel context.CancelFunc
}

// Async creates a node running f(ctx, a) on every change of a.
func Async[A, T any](sc *scope.Scope, a Readable[A], f func(context.Context, A) (T, error), opts ...Option) (*AsyncDerived[T], error) {
	return newAsync(sc, func(*scope.Scope) (Readable[A], error) {
		return a, nil
	}, f, opts)
}

// Async2 creates a node running f(ctx, a, b) on every joint change of a
// and b.
func Async2[A, B, T any](sc *scope.Scope, a Readable[A], b Readable[B], f func(context.Context, A, B) (T, error), opts ...Option) (*AsyncDerived[T], error) {
	return newAsync(sc, func(inner *scope.Scope) (Readable[pair[A, B]], error) {
		return snapshot2(inner, a, b)
	}, func(ctx context.Context, p pair[A, B]) (T, error) {
		return f(ctx, p.a, p.b)
	}, opts)
}

// Async3 is Async2 for three dependencies.
func Async3[A, B, C, T any](sc *scope.Scope, a Readable[A], b Readable[B], c Readable[C], f func(context.Context, A, B, C) (T, error), opts ...Option) (*AsyncDerived[T], error) {
	return newAsync(sc, func(inner *scope.Scope) (Readable[triple[A, B, C]], error) {
		return snapshot3(inner, a, b, c)
	}, func(ctx context.Context, t triple[A, B, C]) (T, error) {
		return f(ctx, t.a, t.b, t.c)
	}, opts)
}

// AsyncAll creates a node running f over the values of deps.
func AsyncAll[A, T any](sc *scope.Scope, deps []Readable[A], f func(context.Context, []A) (T, error), opts ...Option) (*AsyncDerived[T], error) {
	return newAsync(sc, func(inner *scope.Scope) (Readable[[]A], error) {
		d, err := Combine(inner, deps...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}, f, opts)
}

func newAsync[S, T any](sc *scope.Scope, source func(*scope.Scope) (Readable[S], error), compute func(context.Context, S) (T, error), opts []Option) (*AsyncDerived[T], error) {
	if sc == nil {
		return nil, ErrNoScope
	}
	o := buildOptions(opts)
	inner := sc.Child(scope.WithName(o.name))

	a := &AsyncDerived[T]{
		node:     newNode(sc, "async", o),
		strategy: o.strategy,
		debounce: o.debounce,
		inner:    inner,
		triggers: newMailbox[request[T]](),
		changed:  make(chan struct{}),
	}
	a.state = NewSignal(inner, AsyncState[T]{Loading: true}, withEqualFunc[AsyncState[T]](stateEqual(equalFor[T](o))))

	src, err := source(inner)
	if err != nil {
		inner.Close()
		return nil, err
	}

	bind := func(s S) request[T] {
		return request[T]{
			id: a.requested.Add(1),
			run: func(ctx context.Context) (T, error) {
				return compute(ctx, s)
			},
		}
	}
	a.resample = func() { a.triggers.put(bind(src.Get())) }

	// Watch queues the initial computation and every later change.
	inner.OnClose(src.Watch(func(s S) { a.triggers.put(bind(s)) }))

	if err := inner.Go(a.supervise); err != nil {
		inner.Close()
		return nil, err
	}
	return a, nil
}

// ID returns the node's identifier.
func (a *AsyncDerived[T]) ID() string { return a.id }

// Get returns the current state.
func (a *AsyncDerived[T]) Get() AsyncState[T] { return a.state.Get() }

// Subscribe calls fn with every later state.
func (a *AsyncDerived[T]) Subscribe(fn func(AsyncState[T])) func() {
	return a.state.Subscribe(fn)
}

// Watch calls fn with the current state and every later state.
func (a *AsyncDerived[T]) Watch(fn func(AsyncState[T])) func() {
	return a.state.Watch(fn)
}

func (a *AsyncDerived[T]) vertex() upstream { return a.state }

// Strategy returns the node's concurrency strategy.
func (a *AsyncDerived[T]) Strategy() Strategy { return a.strategy }

// Refresh starts a new computation with the current dependency values.
// It is how callers retry after a failure.
func (a *AsyncDerived[T]) Refresh() {
	a.resample()
}

// Await waits for the first settled state produced by a computation
// triggered at or after the call, skipping loading transitions. It
// returns scope.ErrClosed if the node is torn down first.
func (a *AsyncDerived[T]) Await(ctx context.Context) (AsyncState[T], error) {
	want := a.requested.Load()
	for {
		a.mu.Lock()
		st := a.state.Get()
		ready := a.settled >= want && !st.Loading
		closed := a.closed
		changed := a.changed
		a.mu.Unlock()

		if ready {
			return st, nil
		}
		if closed {
			return st, scope.ErrClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (a *AsyncDerived[T]) supervise(ctx context.Context) error {
	defer a.finish()

	results := make(chan outcome[T])
	var (
		current  *attempt
		queued   []request[T]
		pending  *request[T]
		timer    *time.Timer
		timerC   <-chan time.Time
		launched bool
	)
	start := func(req request[T]) {
		if current != nil {
			current.cancel()
		}
		current = a.launch(ctx, req, results)
		launched = true
	}

	for {
		select {
		case <-ctx.Done():
			if current != nil {
				current.cancel()
			}
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-a.triggers.ready:
			reqs := a.triggers.takeAll()
			if len(reqs) == 0 {
				continue
			}
			last := reqs[len(reqs)-1]
			switch a.strategy {
			case Abort:
				start(last)
			case Debounce:
				if !launched {
					start(last)
					continue
				}
				pending = &last
				if timer == nil {
					timer = time.NewTimer(a.debounce)
				} else {
					timer.Reset(a.debounce)
				}
				timerC = timer.C
			default:
				queued = append(queued, reqs...)
				if current == nil {
					start(queued[0])
					queued = queued[1:]
				}
			}

		case <-timerC:
			timerC = nil
			if pending != nil {
				start(*pending)
				pending = nil
			}

		case out := <-results:
			if ctx.Err() != nil {
				return nil
			}
			if current == nil || out.gen != current.gen {
				a.metrics.asyncRun(a.label(), "superseded", out.elapsed)
				a.logger.Debug("discarded superseded computation", "generation", out.gen)
				continue
			}
			current.cancel()
			current = nil
			a.settle(out)
			if len(queued) > 0 {
				start(queued[0])
				queued = queued[1:]
			}
		}
	}
}

func (a *AsyncDerived[T]) launch(ctx context.Context, req request[T], results chan<- outcome[T]) *attempt {
	a.gen++
	gen := a.gen
	cctx, cancel := context.WithCancel(ctx)

	a.state.Update(func(s AsyncState[T]) AsyncState[T] {
		s.Loading = true
		return s
	})

	err := a.inner.Go(func(taskCtx context.Context) error {
		started := time.Now()
		v, err := a.compute(cctx, gen, req)
		select {
		case results <- outcome[T]{gen: gen, req: req.id, value: v, err: err, elapsed: time.Since(started)}:
		case <-taskCtx.Done():
		}
		return nil
	})
	if err != nil {
		// The scope is closing; the supervisor sees ctx.Done next.
		cancel()
	}
	return &attempt{gen: gen, cancel: cancel}
}

func (a *AsyncDerived[T]) compute(ctx context.Context, gen uint64, req request[T]) (v T, err error) {
	ctx, span := a.tracer.Start(ctx, "ripple.async.compute", trace.WithAttributes(
		attribute.String("ripple.node", a.describe()),
		attribute.Int64("ripple.generation", int64(gen)),
		attribute.String("ripple.strategy", a.strategy.String()),
	))
	defer func() {
		if r := recover(); r != nil {
			err = newComputeError(a.describe(), r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return req.run(ctx)
}

func (a *AsyncDerived[T]) settle(out outcome[T]) {
	if out.err != nil {
		a.metrics.asyncRun(a.label(), "failed", out.elapsed)
		a.logger.Warn("async computation failed", "generation", out.gen, "error", out.err)
		a.state.Update(func(s AsyncState[T]) AsyncState[T] {
			return AsyncState[T]{Value: s.Value, HasValue: s.HasValue, Err: out.err}
		})
	} else {
		a.metrics.asyncRun(a.label(), "resolved", out.elapsed)
		a.state.Set(AsyncState[T]{Value: out.value, HasValue: true})
	}

	a.mu.Lock()
	a.settled = out.req
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
}

func (a *AsyncDerived[T]) finish() {
	a.mu.Lock()
	a.closed = true
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
}

type pair[A, B any] struct {
	a A
	b B
}

type triple[A, B, C any] struct {
	a A
	b B
	c C
}

func snapshot2[A, B any](sc *scope.Scope, a Readable[A], b Readable[B]) (Readable[pair[A, B]], error) {
	d, err := Derive2(sc, a, b, func(x A, y B) pair[A, B] {
		return pair[A, B]{a: x, b: y}
	}, withEqualFunc[pair[A, B]](never[pair[A, B]]))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func snapshot3[A, B, C any](sc *scope.Scope, a Readable[A], b Readable[B], c Readable[C]) (Readable[triple[A, B, C]], error) {
	d, err := Derive3(sc, a, b, c, func(x A, y B, z C) triple[A, B, C] {
		return triple[A, B, C]{a: x, b: y, c: z}
	}, withEqualFunc[triple[A, B, C]](never[triple[A, B, C]]))
	if err != nil {
		return nil, err
	}
	return d, nil
}
