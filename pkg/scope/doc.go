// Package scope provides hierarchical lifetime containers.
//
// A Scope owns finalizers and background tasks. Closing a scope cancels its
// context, closes its cascading children in reverse creation order, waits
// for its tasks, and runs its finalizers in reverse registration order:
//
//	root := scope.New(ctx)
//	defer root.Close()
//
//	child := root.Child(scope.WithName("editor"))
//	child.OnClose(func() { fmt.Println("editor closed") })
//	child.Go(func(ctx context.Context) error {
//	    <-ctx.Done()
//	    return nil
//	})
//
// Finalizer failures never stop the remaining finalizers; every failure is
// joined into the error returned by Close.
//
// # Supervision
//
// A task that returns an error (or panics) is handled by the scope's
// Policy. Isolate, the default, logs and records the failure. Escalate
// closes the scope and reports the failure to its parent.
package scope
