package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/ripple/internal/idgen"
)

// Finalizer releases a resource when its scope closes.
// The context passed to a finalizer is the scope's own context and is
// already cancelled; it only carries values.
type Finalizer func(ctx context.Context) error

// Scope is a hierarchical lifetime container.
//
// Resources register finalizers on a scope; when the scope closes, its
// cascading children close first (last created first), its tasks are
// cancelled and awaited, and then the finalizers run in reverse
// registration order.
//
// Scopes form a tree mirroring the ownership of reactive nodes: a Derived
// or Reaction created in a scope stops receiving updates when that scope
// closes.
type Scope struct {
	id     string
	name   string
	parent *Scope

	ctx    context.Context
	cancel context.CancelCauseFunc

	logger *slog.Logger
	base   *slog.Logger
	ids    idgen.Generator
	nodes  idgen.Generator
	policy Policy

	// detached scopes are not closed by their parent.
	detached bool

	children   []*Scope
	childrenMu sync.Mutex

	finalizers   []Finalizer
	finalizersMu sync.Mutex

	tasks   errgroup.Group
	tasksMu sync.RWMutex

	failures   []error
	failuresMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeDone chan struct{}
	closeErr  error
}

// New creates a root scope whose context derives from ctx.
// Cancelling ctx cancels the scope's tasks but does not run its
// finalizers; call Close for that.
func New(ctx context.Context, opts ...Option) *Scope {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.ids == nil && cfg.nodes == nil:
		cfg.ids = idgen.NewSequence("scope")
		cfg.nodes = idgen.NewSequence("node")
	case cfg.ids == nil:
		cfg.ids = idgen.NewSequence("scope")
	case cfg.nodes == nil:
		cfg.nodes = cfg.ids
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return newScope(ctx, nil, cfg, false)
}

func newScope(ctx context.Context, parent *Scope, cfg options, detached bool) *Scope {
	s := &Scope{
		id:        cfg.ids.Next(),
		name:      cfg.name,
		parent:    parent,
		base:      cfg.logger,
		ids:       cfg.ids,
		nodes:     cfg.nodes,
		policy:    cfg.policy,
		detached:  detached,
		closeDone: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancelCause(ctx)

	attrs := []any{"scope", s.id}
	if s.name != "" {
		attrs = append(attrs, "scope_name", s.name)
	}
	s.logger = cfg.logger.With(attrs...)
	return s
}

// Child creates a scope that closes when s closes.
// Options override the inherited logger, policy or name.
func (s *Scope) Child(opts ...Option) *Scope {
	return s.spawn(s.ctx, false, opts)
}

// Detach creates a scope that outlives s.
// Its context keeps s's values but not s's cancellation, and closing s
// does not close it.
func (s *Scope) Detach(opts ...Option) *Scope {
	return s.spawn(context.WithoutCancel(s.ctx), true, opts)
}

func (s *Scope) spawn(ctx context.Context, detached bool, opts []Option) *Scope {
	cfg := options{
		logger: s.base,
		ids:    s.ids,
		nodes:  s.nodes,
		policy: s.policy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	child := newScope(ctx, s, cfg, detached)

	if detached {
		return child
	}
	if s.closed.Load() {
		// A child of a closed scope is born closed.
		child.Close()
		return child
	}
	s.childrenMu.Lock()
	s.children = append(s.children, child)
	s.childrenMu.Unlock()
	return child
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// ID returns the scope's identifier.
func (s *Scope) ID() string { return s.id }

// Name returns the optional human-readable name.
func (s *Scope) Name() string { return s.name }

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Logger returns the scope's logger.
func (s *Scope) Logger() *slog.Logger { return s.logger }

// NextID draws a node identifier from the scope tree's node generator.
func (s *Scope) NextID() string { return s.nodes.Next() }

// Context returns a context cancelled when the scope starts closing.
func (s *Scope) Context() context.Context { return s.ctx }

// Done is closed when the scope starts closing.
func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool { return s.closed.Load() }

// Err returns the error Close returned, or nil while the scope is open.
func (s *Scope) Err() error {
	select {
	case <-s.closeDone:
		return s.closeErr
	default:
		return nil
	}
}

// AddFinalizer registers f to run when the scope closes.
// If the scope is already closed, f runs immediately and its failure is
// logged.
func (s *Scope) AddFinalizer(f Finalizer) {
	if f == nil {
		return
	}
	s.finalizersMu.Lock()
	if !s.closed.Load() {
		s.finalizers = append(s.finalizers, f)
		s.finalizersMu.Unlock()
		return
	}
	s.finalizersMu.Unlock()

	if err := runFinalizer(s.ctx, f); err != nil {
		s.logger.Warn("finalizer failed on closed scope", "error", err)
	}
}

// OnClose registers a cleanup that cannot fail.
func (s *Scope) OnClose(fn func()) {
	if fn == nil {
		return
	}
	s.AddFinalizer(func(context.Context) error {
		fn()
		return nil
	})
}

// Go runs fn as a task owned by the scope.
// The task's context is cancelled when the scope closes, and Close waits
// for it to return. A non-nil error or a panic is handed to the scope's
// supervision policy.
func (s *Scope) Go(fn func(ctx context.Context) error) error {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	s.tasks.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
				s.fail(err)
			}
		}()
		return fn(s.ctx)
	})
	return nil
}

// fail applies the supervision policy to a task failure.
func (s *Scope) fail(err error) {
	s.failuresMu.Lock()
	s.failures = append(s.failures, err)
	s.failuresMu.Unlock()

	switch s.policy {
	case Escalate:
		s.logger.Error("task failed, closing scope", "error", err)
		s.cancel(err)
		go s.Close()
		if s.parent != nil && !s.detached {
			s.parent.fail(fmt.Errorf("child scope %s: %w", s.id, err))
		}
	default:
		s.logger.Error("task failed", "error", err)
	}
}

// Close closes the scope. It is safe to call more than once and from
// several goroutines; every caller gets the same result once closing has
// finished.
//
// Close must not be called from a task owned by the scope itself, since
// it waits for those tasks to return.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
		close(s.closeDone)
	})
	<-s.closeDone
	return s.closeErr
}

func (s *Scope) close() error {
	// Holding tasksMu orders this against Go, so no task is added while
	// Wait runs below.
	s.tasksMu.Lock()
	s.closed.Store(true)
	s.tasksMu.Unlock()
	s.cancel(ErrClosed)

	if s.parent != nil && !s.detached {
		s.parent.removeChild(s)
	}

	var errs []error

	s.childrenMu.Lock()
	children := s.children
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// Failures were recorded by fail; Wait only synchronises.
	_ = s.tasks.Wait()

	s.failuresMu.Lock()
	errs = append(errs, s.failures...)
	s.failuresMu.Unlock()

	s.finalizersMu.Lock()
	finalizers := s.finalizers
	s.finalizers = nil
	s.finalizersMu.Unlock()

	for i := len(finalizers) - 1; i >= 0; i-- {
		if err := runFinalizer(s.ctx, finalizers[i]); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Debug("scope closed with errors", "error", err)
	} else {
		s.logger.Debug("scope closed")
	}
	return err
}

func runFinalizer(ctx context.Context, f Finalizer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return f(ctx)
}
