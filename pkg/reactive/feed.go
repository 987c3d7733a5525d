package reactive

import (
	"context"
	"sync"
)

// feed is one subscription. Values reach it either pushed (a signal hands
// over each new value) or pulled (a derived node marks it pending and the
// feed reads the node when draining).
//
// Callbacks for one feed never run concurrently and never out of order. A
// callback that writes to a signal it depends on is safe: the nested
// drain sees the feed busy and leaves the new value to the running loop.
type feed[T any] struct {
	fn func(T)

	mu       sync.Mutex
	queue    []T
	pending  bool
	draining bool
	closed   bool

	// pull reads the current value and version of a derived node.
	pull func() (T, uint64)
	// skip makes the first pull set the baseline without delivering it.
	skip    bool
	lastVer uint64
	hasLast bool
}

func newFeed[T any](fn func(T)) *feed[T] {
	return &feed[T]{fn: fn}
}

func newPullFeed[T any](fn func(T), pull func() (T, uint64), skipFirst bool) *feed[T] {
	return &feed[T]{fn: fn, pull: pull, skip: skipFirst}
}

// push queues v. The caller schedules the drain.
func (f *feed[T]) push(v T) {
	f.mu.Lock()
	if !f.closed {
		f.queue = append(f.queue, v)
	}
	f.mu.Unlock()
}

// invalidate implements observer for pull feeds.
func (f *feed[T]) invalidate(p *propagation) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.pending = true
	f.mu.Unlock()
	p.schedule(f)
}

func (f *feed[T]) close() {
	f.mu.Lock()
	f.closed = true
	f.queue = nil
	f.pending = false
	f.mu.Unlock()
}

func (f *feed[T]) drain() {
	f.mu.Lock()
	if f.draining || f.closed {
		f.mu.Unlock()
		return
	}
	f.draining = true
	f.mu.Unlock()

	idle := false
	defer func() {
		// Only reached with draining still set when fn panicked.
		if !idle {
			f.mu.Lock()
			f.draining = false
			f.mu.Unlock()
		}
	}()

	for {
		v, ok := f.next()
		if !ok {
			idle = true
			return
		}
		f.fn(v)
	}
}

// next returns the next value to deliver. When there is none it clears
// draining under the same lock, so a concurrent push is never stranded.
func (f *feed[T]) next() (T, bool) {
	var zero T
	for {
		f.mu.Lock()
		if f.closed {
			f.draining = false
			f.mu.Unlock()
			return zero, false
		}
		if len(f.queue) > 0 {
			v := f.queue[0]
			f.queue[0] = zero
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return v, true
		}
		if !f.pending {
			f.draining = false
			f.mu.Unlock()
			return zero, false
		}
		f.pending = false
		f.mu.Unlock()

		v, ver := f.pull()

		f.mu.Lock()
		if f.skip {
			f.skip = false
			f.lastVer, f.hasLast = ver, true
			f.mu.Unlock()
			continue
		}
		if f.hasLast && ver == f.lastVer {
			// Marked dirty but the value did not change.
			f.mu.Unlock()
			continue
		}
		f.lastVer, f.hasLast = ver, true
		f.mu.Unlock()
		return v, true
	}
}

// mailbox is an unbounded FIFO with a wakeup channel, used to hand values
// from propagation (which must not block) to a goroutine.
type mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) tryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

func (m *mailbox[T]) takeAll() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

// take blocks until a value is available or ctx is done.
func (m *mailbox[T]) take(ctx context.Context) (T, bool) {
	for {
		if v, ok := m.tryTake(); ok {
			return v, true
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}
