package reactive

import (
	"context"
	"sync"

	"github.com/vango-dev/ripple/pkg/scope"
)

// Reaction runs an effect on the current values of its dependencies and
// again on every later joint change, in order.
//
// The first run happens inside the constructor. Later runs happen on a
// task of a scope owned by the reaction, so an effect may block without
// holding up the writer. A failing later run ends the reaction and is
// reported to the scope's supervision policy.
type Reaction struct {
	node
	inner *scope.Scope
	done  chan struct{}

	mu  sync.Mutex
	err error
}

// React runs effect with a's value now and on every change of a.
func React[A any](sc *scope.Scope, a Readable[A], effect func(context.Context, A) error, opts ...Option) (*Reaction, error) {
	return newReaction(sc, func(*scope.Scope) (Readable[A], error) {
		return a, nil
	}, effect, opts)
}

// React2 runs effect with the values of a and b now and on every joint
// change.
func React2[A, B any](sc *scope.Scope, a Readable[A], b Readable[B], effect func(context.Context, A, B) error, opts ...Option) (*Reaction, error) {
	return newReaction(sc, func(inner *scope.Scope) (Readable[pair[A, B]], error) {
		return snapshot2(inner, a, b)
	}, func(ctx context.Context, p pair[A, B]) error {
		return effect(ctx, p.a, p.b)
	}, opts)
}

// React3 is React2 for three dependencies.
func React3[A, B, C any](sc *scope.Scope, a Readable[A], b Readable[B], c Readable[C], effect func(context.Context, A, B, C) error, opts ...Option) (*Reaction, error) {
	return newReaction(sc, func(inner *scope.Scope) (Readable[triple[A, B, C]], error) {
		return snapshot3(inner, a, b, c)
	}, func(ctx context.Context, t triple[A, B, C]) error {
		return effect(ctx, t.a, t.b, t.c)
	}, opts)
}

// ReactAll runs effect with the values of deps now and on every joint
// change.
func ReactAll[A any](sc *scope.Scope, deps []Readable[A], effect func(context.Context, []A) error, opts ...Option) (*Reaction, error) {
	return newReaction(sc, func(inner *scope.Scope) (Readable[[]A], error) {
		d, err := Combine(inner, deps...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}, effect, opts)
}

func newReaction[S any](sc *scope.Scope, source func(*scope.Scope) (Readable[S], error), effect func(context.Context, S) error, opts []Option) (*Reaction, error) {
	if sc == nil {
		return nil, ErrNoScope
	}
	o := buildOptions(opts)
	inner := sc.Child(scope.WithName(o.name))
	r := &Reaction{
		node:  newNode(sc, "reaction", o),
		inner: inner,
		done:  make(chan struct{}),
	}

	src, err := source(inner)
	if err != nil {
		inner.Close()
		return nil, err
	}

	// Watch delivers the current snapshot synchronously, so the first
	// run can happen here, and queues every later one.
	mb := newMailbox[S]()
	inner.OnClose(src.Watch(mb.put))

	first, _ := mb.tryTake()
	if err := invoke(inner.Context(), r, effect, first); err != nil {
		inner.Close()
		r.stop(err)
		return nil, err
	}

	if err := inner.Go(func(ctx context.Context) error {
		defer r.stop(nil)
		for {
			s, ok := mb.take(ctx)
			if !ok {
				return nil
			}
			if err := invoke(ctx, r, effect, s); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.stop(err)
				return err
			}
		}
	}); err != nil {
		inner.Close()
		r.stop(nil)
		return nil, err
	}
	return r, nil
}

// invoke runs one effect call, turning a panic into a ComputeError.
func invoke[S any](ctx context.Context, r *Reaction, effect func(context.Context, S) error, v S) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newComputeError(r.describe(), p)
		}
		if err != nil {
			r.metrics.reactionRun(r.label(), "error")
			r.logger.Error("reaction failed", "error", err)
			return
		}
		r.metrics.reactionRun(r.label(), "ok")
	}()
	return effect(ctx, v)
}

// stop records why the reaction ended. Only the first call counts.
func (r *Reaction) stop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}
	r.err = err
	close(r.done)
}

// ID returns the reaction's identifier.
func (r *Reaction) ID() string { return r.id }

// Stop ends the reaction and waits for a running effect to return.
// It must not be called from the effect itself.
func (r *Reaction) Stop() error {
	return r.inner.Close()
}

// Done is closed when the reaction has ended, by Stop, by its scope
// closing, or by a failed effect.
func (r *Reaction) Done() <-chan struct{} { return r.done }

// Err returns the failure that ended the reaction, or nil.
func (r *Reaction) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
