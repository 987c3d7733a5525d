package reactive

import (
	"sync"
	"sync/atomic"

	"github.com/vango-dev/ripple/pkg/scope"
)

// maxResample bounds how often one refresh retries when dependencies keep
// moving under it.
const maxResample = 64

// Derived is a cached synchronous computation over other readables.
//
// A change upstream only marks the node dirty. The value is recomputed
// lazily, at most once per upstream change, when something reads it. All
// dependency values used by one computation come from the same instant,
// so a Derived never observes half of an update (no glitches).
//
// A result equal to the cached value is dropped: the cache, its version
// and every subscriber stay untouched.
//
// If compute panics after construction, the node keeps its last good
// value and reports the failure through Err until a later computation
// succeeds.
type Derived[T any] struct {
	node
	equal   EqualFunc[T]
	deps    []upstream
	detach  []func()
	compute func() T
	rnk     int

	out   edges
	dirty atomic.Bool

	// mu guards the cache and serialises recomputation.
	mu       sync.Mutex
	value    T
	ver      uint64
	seen     []uint64
	scratch  []uint64
	computed bool
	err      error
}

// Derive creates a node computing f(a).
func Derive[A, T any](sc *scope.Scope, a Readable[A], f func(A) T, opts ...Option) (*Derived[T], error) {
	return newDerived(sc, []upstream{a.vertex()}, func() T {
		return f(a.Get())
	}, opts)
}

// Derive2 creates a node computing f(a, b).
func Derive2[A, B, T any](sc *scope.Scope, a Readable[A], b Readable[B], f func(A, B) T, opts ...Option) (*Derived[T], error) {
	return newDerived(sc, []upstream{a.vertex(), b.vertex()}, func() T {
		return f(a.Get(), b.Get())
	}, opts)
}

// Derive3 creates a node computing f(a, b, c).
func Derive3[A, B, C, T any](sc *scope.Scope, a Readable[A], b Readable[B], c Readable[C], f func(A, B, C) T, opts ...Option) (*Derived[T], error) {
	return newDerived(sc, []upstream{a.vertex(), b.vertex(), c.vertex()}, func() T {
		return f(a.Get(), b.Get(), c.Get())
	}, opts)
}

// DeriveAll creates a node computing f over the values of deps, in order.
func DeriveAll[A, T any](sc *scope.Scope, deps []Readable[A], f func([]A) T, opts ...Option) (*Derived[T], error) {
	if len(deps) == 0 {
		return nil, ErrNoDependencies
	}
	deps = append([]Readable[A](nil), deps...)
	vertices := make([]upstream, len(deps))
	for i, d := range deps {
		vertices[i] = d.vertex()
	}
	return newDerived(sc, vertices, func() T {
		return f(sampleAll(deps))
	}, opts)
}

// Combine returns a node holding the values of deps as one slice. A new
// slice is produced for every upstream change, sampled as a consistent
// snapshot of all dependencies.
func Combine[A any](sc *scope.Scope, deps ...Readable[A]) (*Derived[[]A], error) {
	return DeriveAll(sc, deps, func(vs []A) []A { return vs }, withEqualFunc[[]A](never[[]A]))
}

func sampleAll[A any](deps []Readable[A]) []A {
	vs := make([]A, len(deps))
	for i, d := range deps {
		vs[i] = d.Get()
	}
	return vs
}

func withEqualFunc[T any](fn EqualFunc[T]) Option {
	return func(o *options) {
		o.equal = fn
	}
}

func newDerived[T any](sc *scope.Scope, deps []upstream, compute func() T, opts []Option) (*Derived[T], error) {
	if len(deps) == 0 {
		return nil, ErrNoDependencies
	}
	o := buildOptions(opts)
	d := &Derived[T]{
		node:    newNode(sc, "derived", o),
		equal:   equalFor[T](o),
		deps:    deps,
		compute: compute,
		rnk:     maxRank(deps) + 1,
	}

	// Attach before the first computation so no upstream change can fall
	// between it and the subscription.
	d.detach = make([]func(), len(deps))
	for i, dep := range deps {
		d.detach[i] = dep.attach(d)
	}

	d.mu.Lock()
	err := d.refreshLocked()
	d.mu.Unlock()
	if err != nil {
		d.detachAll()
		return nil, err
	}

	if sc != nil {
		sc.OnClose(d.detachAll)
	}
	return d, nil
}

// ID returns the node's identifier.
func (d *Derived[T]) ID() string { return d.id }

// Rank is the node's depth in the graph: 1 + the highest rank among its
// dependencies, signals being 0. Ranks are a topological order.
func (d *Derived[T]) Rank() int { return d.rnk }

// Get returns the current value, recomputing first if an upstream value
// changed since the last computation.
func (d *Derived[T]) Get() T {
	v, _ := d.snapshot()
	return v
}

// Err reports the failure of the latest computation, or nil.
func (d *Derived[T]) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
	return d.err
}

func (d *Derived[T]) snapshot() (T, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
	return d.value, d.ver
}

// Subscribe calls fn with every later value.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	return d.subscribe(fn, true)
}

// Watch calls fn with the current value and every later value.
func (d *Derived[T]) Watch(fn func(T)) func() {
	return d.subscribe(fn, false)
}

func (d *Derived[T]) subscribe(fn func(T), skipFirst bool) func() {
	f := newPullFeed(fn, d.snapshot, skipFirst)
	detach := d.out.add(f)
	d.metrics.subscribed(1)

	// The first pull sets the baseline (or delivers the current value for
	// Watch) and clears a stale dirty flag, so later invalidations reach
	// the new feed.
	p := newPropagation()
	f.invalidate(p)
	p.flush()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.close()
			detach()
			d.metrics.subscribed(-1)
		})
	}
}

func (d *Derived[T]) invalidate(p *propagation) {
	if d.dirty.CompareAndSwap(false, true) {
		d.out.invalidate(p)
	}
}

// refreshLocked recomputes if any dependency version moved since the last
// computation. It must be called with d.mu held.
func (d *Derived[T]) refreshLocked() error {
	d.dirty.Store(false)

	for attempt := 0; ; attempt++ {
		before := stampAll(d.deps, d.scratch)
		if d.computed && sameStamps(before, d.seen) {
			return nil
		}
		before = append([]uint64(nil), before...)

		next, err := d.run()

		after := stampAll(d.deps, d.scratch)
		d.scratch = after
		if !sameStamps(before, after) && attempt < maxResample {
			// A dependency changed while computing: the inputs may mix two
			// states. Sample again.
			continue
		}
		if !sameStamps(before, after) {
			// Still moving. Commit, but keep the old stamps so the next
			// read computes again; a newer invalidation is already queued.
			d.logger.Warn("dependencies kept changing during recompute", "attempts", attempt+1)
			d.seen = nil
		} else {
			d.seen = before
		}

		if err != nil {
			d.err = err
			d.metrics.recompute(d.label(), "error")
			d.logger.Error("recompute failed", "error", err)
			return err
		}
		d.err = nil

		if !d.computed {
			d.value = next
			d.ver = 1
			d.computed = true
			return nil
		}
		if d.equal(d.value, next) {
			d.metrics.recompute(d.label(), "unchanged")
			return nil
		}
		d.value = next
		d.ver++
		d.metrics.recompute(d.label(), "changed")
		return nil
	}
}

func (d *Derived[T]) run() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newComputeError(d.describe(), r)
		}
	}()
	return d.compute(), nil
}

func (d *Derived[T]) detachAll() {
	for _, detach := range d.detach {
		detach()
	}
	d.out.close()
}

func (d *Derived[T]) vertex() upstream { return d }

func (d *Derived[T]) stamp() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
	return d.ver
}

func (d *Derived[T]) attach(o observer) func() {
	return d.out.add(o)
}

func (d *Derived[T]) rank() int { return d.rnk }
