package reactive

import (
	"sync"

	"github.com/vango-dev/ripple/pkg/scope"
)

// Signal is a writable observable value.
//
// Writes to one signal are serialised; subscribers see values in the
// order they were written. Writing a value equal to the current one does
// nothing.
//
// When the owning scope closes, all subscriptions and dependents are
// detached. The signal itself stays readable and writable.
type Signal[T any] struct {
	node
	equal EqualFunc[T]

	out edges

	mu     sync.Mutex
	value  T
	ver    uint64
	feeds  []*feed[T]
	closed bool
}

// NewSignal creates a signal holding initial.
// sc may be nil for a signal that is never torn down.
func NewSignal[T any](sc *scope.Scope, initial T, opts ...Option) *Signal[T] {
	o := buildOptions(opts)
	s := &Signal[T]{
		node:  newNode(sc, "signal", o),
		equal: equalFor[T](o),
		value: initial,
		ver:   1,
	}
	if sc != nil {
		sc.OnClose(s.detachAll)
	}
	return s
}

// ID returns the signal's identifier.
func (s *Signal[T]) ID() string { return s.id }

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v and reports whether it differed from the current value.
func (s *Signal[T]) Set(v T) bool {
	p := newPropagation()
	changed := s.write(p, func(T) T { return v })
	p.flush()
	return changed
}

// Update replaces the value with f(current). f runs under the signal's
// lock, so concurrent Updates never lose a write. f must not access the
// signal.
func (s *Signal[T]) Update(f func(T) T) bool {
	p := newPropagation()
	changed := s.write(p, f)
	p.flush()
	return changed
}

// SetTx is Set as part of a batch. With a nil or finished tx it behaves
// like Set.
func (s *Signal[T]) SetTx(tx *Tx, v T) bool {
	return s.UpdateTx(tx, func(T) T { return v })
}

// UpdateTx is Update as part of a batch.
func (s *Signal[T]) UpdateTx(tx *Tx, f func(T) T) bool {
	if !tx.active() {
		return s.Update(f)
	}
	return s.write(tx.p, f)
}

func (s *Signal[T]) write(p *propagation, f func(T) T) bool {
	s.mu.Lock()
	next := f(s.value)
	if s.equal(s.value, next) {
		s.mu.Unlock()
		return false
	}
	s.value = next
	s.ver++

	// Values are queued under the lock so every subscriber sees writes
	// in the order they were applied.
	feeds := make([]*feed[T], len(s.feeds))
	copy(feeds, s.feeds)
	for _, f := range feeds {
		f.push(next)
	}
	s.mu.Unlock()

	s.metrics.signalWrite(s.label())
	for _, f := range feeds {
		p.schedule(f)
	}
	s.out.invalidate(p)
	return true
}

// Subscribe calls fn with every later value.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	return s.subscribe(fn, false)
}

// Watch calls fn with the current value and every later value.
func (s *Signal[T]) Watch(fn func(T)) func() {
	return s.subscribe(fn, true)
}

func (s *Signal[T]) subscribe(fn func(T), withCurrent bool) func() {
	f := newFeed(fn)
	s.mu.Lock()
	if s.closed {
		if withCurrent {
			f.push(s.value)
		}
		s.mu.Unlock()
		f.drain()
		return func() {}
	}
	s.feeds = append(s.feeds, f)
	if withCurrent {
		f.push(s.value)
	}
	s.mu.Unlock()
	s.metrics.subscribed(1)

	f.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.close()
			if s.removeFeed(f) {
				s.metrics.subscribed(-1)
			}
		})
	}
}

func (s *Signal[T]) removeFeed(f *feed[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.feeds {
		if existing == f {
			s.feeds = append(s.feeds[:i], s.feeds[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribers returns the number of live subscriptions and dependents.
func (s *Signal[T]) Subscribers() int {
	s.mu.Lock()
	n := len(s.feeds)
	s.mu.Unlock()
	return n + s.out.len()
}

func (s *Signal[T]) detachAll() {
	s.mu.Lock()
	feeds := s.feeds
	s.feeds = nil
	s.closed = true
	s.mu.Unlock()

	for _, f := range feeds {
		f.close()
	}
	s.metrics.subscribed(-float64(len(feeds)))
	s.out.close()
}

func (s *Signal[T]) vertex() upstream { return s }

func (s *Signal[T]) stamp() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ver
}

func (s *Signal[T]) attach(o observer) func() {
	return s.out.add(o)
}

func (s *Signal[T]) rank() int { return 0 }
