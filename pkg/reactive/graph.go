package reactive

import "sync"

// upstream is a vertex other vertices can depend on.
type upstream interface {
	// stamp brings the vertex up to date and returns its version. The
	// version changes whenever the value visible through Get may have
	// changed, and never otherwise.
	stamp() uint64

	// attach registers o for invalidation and returns a func that
	// detaches it. Observers are invalidated in attach order.
	attach(o observer) (detach func())

	// rank is 0 for roots and 1 + the highest dependency rank otherwise.
	rank() int
}

// observer is notified when an upstream vertex may have changed.
type observer interface {
	invalidate(p *propagation)
}

// drainer delivers pending values once the marking phase is over.
type drainer interface {
	drain()
}

// propagation is one update pass through the graph.
//
// The marking phase walks observers and only flips dirty flags; user
// callbacks are queued. flush runs them afterwards, so every callback
// pulls from a graph whose invalidation is already complete.
type propagation struct {
	seen  map[drainer]struct{}
	queue []drainer
}

func newPropagation() *propagation {
	return &propagation{}
}

func (p *propagation) schedule(d drainer) {
	if p.seen == nil {
		p.seen = make(map[drainer]struct{})
	}
	if _, ok := p.seen[d]; ok {
		return
	}
	p.seen[d] = struct{}{}
	p.queue = append(p.queue, d)
}

func (p *propagation) flush() {
	// Drains may schedule more work on this pass, so re-check the length.
	for i := 0; i < len(p.queue); i++ {
		p.queue[i].drain()
	}
	p.queue = nil
	p.seen = nil
}

// edges is an ordered list of observers.
type edges struct {
	mu     sync.Mutex
	list   []*edge
	closed bool
}

type edge struct {
	o observer
}

func (e *edges) add(o observer) func() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return func() {}
	}
	ed := &edge{o: o}
	e.list = append(e.list, ed)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(ed) })
	}
}

func (e *edges) remove(ed *edge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.list {
		if existing == ed {
			// Keep order: observers are notified in attach order.
			e.list = append(e.list[:i], e.list[i+1:]...)
			return
		}
	}
}

// invalidate forwards an invalidation to every observer. The list is
// copied first so observers can detach during the walk.
func (e *edges) invalidate(p *propagation) {
	e.mu.Lock()
	if len(e.list) == 0 {
		e.mu.Unlock()
		return
	}
	list := make([]*edge, len(e.list))
	copy(list, e.list)
	e.mu.Unlock()

	for _, ed := range list {
		ed.o.invalidate(p)
	}
}

func (e *edges) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

func (e *edges) close() {
	e.mu.Lock()
	e.closed = true
	e.list = nil
	e.mu.Unlock()
}

func stampAll(deps []upstream, into []uint64) []uint64 {
	into = into[:0]
	for _, d := range deps {
		into = append(into, d.stamp())
	}
	return into
}

func sameStamps(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func maxRank(deps []upstream) int {
	r := 0
	for _, d := range deps {
		if dr := d.rank(); dr > r {
			r = dr
		}
	}
	return r
}
