package reactive

import (
	"context"
	"sync"
)

// Readable is an observable value.
//
// Every call to Subscribe or Watch creates an independent subscription:
// two readers never share a cursor and never steal values from each
// other. Callbacks of one subscription run one at a time and in order.
// They run on the goroutine that caused the change, so they should not
// block; use Changes or Values to consume from another goroutine.
//
// Readable is implemented only by this package's node types and by the
// wrappers returned from Map and Make.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe calls fn with every later value. The value current at
	// the time of the call is not delivered.
	Subscribe(fn func(T)) (cancel func())

	// Watch calls fn with the current value, then with every later
	// value. No change can fall between the two.
	Watch(fn func(T)) (cancel func())

	vertex() upstream
}

// Changes returns a channel of every value r takes after the call.
// The channel buffers without bound and is closed when ctx is done.
func Changes[T any](ctx context.Context, r Readable[T]) <-chan T {
	return pipe(ctx, r.Subscribe)
}

// Values is like Changes but first delivers the current value.
func Values[T any](ctx context.Context, r Readable[T]) <-chan T {
	return pipe(ctx, r.Watch)
}

func pipe[T any](ctx context.Context, subscribe func(func(T)) func()) <-chan T {
	out := make(chan T)
	mb := newMailbox[T]()
	cancel := subscribe(mb.put)

	go func() {
		defer close(out)
		defer cancel()
		for {
			v, ok := mb.take(ctx)
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Map returns a Readable applying f to every value of r.
//
// The result has no cache: Get calls f each time, and every subscription
// wraps a subscription to r. Map(Map(r, f), g) behaves as
// Map(r, func(v) { return g(f(v)) }).
func Map[S, T any](r Readable[S], f func(S) T) Readable[T] {
	return &mapped[S, T]{src: r, f: f}
}

type mapped[S, T any] struct {
	src Readable[S]
	f   func(S) T
}

func (m *mapped[S, T]) Get() T {
	return m.f(m.src.Get())
}

func (m *mapped[S, T]) Subscribe(fn func(T)) func() {
	return m.src.Subscribe(func(v S) { fn(m.f(v)) })
}

func (m *mapped[S, T]) Watch(fn func(T)) func() {
	return m.src.Watch(func(v S) { fn(m.f(v)) })
}

func (m *mapped[S, T]) vertex() upstream {
	return m.src.vertex()
}

// Make adapts an external source into a Readable.
//
// get returns the current value. stream starts delivering changes through
// emit and returns a func that stops it. stream is started when the first
// subscription or dependent node attaches, and stopped when the last one
// detaches; it may be started again later.
func Make[T any](get func() T, stream func(emit func(T)) (stop func())) Readable[T] {
	return &external[T]{get: get, stream: stream}
}

type external[T any] struct {
	get    func() T
	stream func(emit func(T)) (stop func())

	out edges

	mu    sync.Mutex
	ver   uint64
	feeds []*feed[T]

	// life serialises starting and stopping the stream.
	life sync.Mutex
	refs int
	stop func()
}

func (e *external[T]) Get() T {
	return e.get()
}

func (e *external[T]) emit(v T) {
	e.mu.Lock()
	e.ver++
	feeds := make([]*feed[T], len(e.feeds))
	copy(feeds, e.feeds)
	for _, f := range feeds {
		f.push(v)
	}
	e.mu.Unlock()

	p := newPropagation()
	for _, f := range feeds {
		p.schedule(f)
	}
	e.out.invalidate(p)
	p.flush()
}

func (e *external[T]) acquire() {
	e.life.Lock()
	defer e.life.Unlock()

	e.refs++
	if e.refs == 1 {
		e.stop = e.stream(e.emit)
	}
}

func (e *external[T]) release() {
	e.life.Lock()
	defer e.life.Unlock()

	e.refs--
	if e.refs == 0 && e.stop != nil {
		e.stop()
		e.stop = nil
	}
}

func (e *external[T]) subscribe(fn func(T), withCurrent bool) func() {
	f := newFeed(fn)
	e.mu.Lock()
	e.feeds = append(e.feeds, f)
	if withCurrent {
		f.push(e.get())
	}
	e.mu.Unlock()
	e.acquire()
	f.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.close()
			e.mu.Lock()
			for i, existing := range e.feeds {
				if existing == f {
					e.feeds = append(e.feeds[:i], e.feeds[i+1:]...)
					break
				}
			}
			e.mu.Unlock()
			e.release()
		})
	}
}

func (e *external[T]) Subscribe(fn func(T)) func() {
	return e.subscribe(fn, false)
}

func (e *external[T]) Watch(fn func(T)) func() {
	return e.subscribe(fn, true)
}

func (e *external[T]) vertex() upstream {
	return e
}

func (e *external[T]) stamp() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ver
}

func (e *external[T]) attach(o observer) func() {
	detach := e.out.add(o)
	e.acquire()

	var once sync.Once
	return func() {
		once.Do(func() {
			detach()
			e.release()
		})
	}
}

func (e *external[T]) rank() int {
	return 0
}
