package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vango-dev/ripple/pkg/inspect"
	"github.com/vango-dev/ripple/pkg/persist"
	"github.com/vango-dev/ripple/pkg/reactive"
	"github.com/vango-dev/ripple/pkg/scope"
)

// demoGraph is the graph served by the inspect command.
type demoGraph struct {
	ticks   *reactive.Signal[int]
	total   *reactive.Signal[int]
	parity  *reactive.Derived[string]
	summary *reactive.Derived[string]
	report  *reactive.AsyncDerived[string]
	clock   reactive.Readable[string]
}

func buildGraph(sc *scope.Scope, store persist.Store, tick time.Duration, asyncOpts ...reactive.Option) (*demoGraph, error) {
	g := &demoGraph{
		ticks: reactive.NewSignal(sc, 0, reactive.WithName("ticks")),
		total: reactive.NewSignal(sc, 0, reactive.WithName("total")),
	}

	// total survives restarts; ticks counts this run only.
	if _, err := persist.Bind(sc, g.total, store, "total"); err != nil {
		return nil, err
	}

	var err error
	g.parity, err = reactive.Derive(sc, g.ticks, func(n int) string {
		if n%2 == 0 {
			return "even"
		}
		return "odd"
	}, reactive.WithName("parity"))
	if err != nil {
		return nil, err
	}

	g.summary, err = reactive.Derive2(sc, g.ticks, g.total, func(run, total int) string {
		return fmt.Sprintf("%d ticks this run, %d overall", run, total)
	}, reactive.WithName("summary"))
	if err != nil {
		return nil, err
	}

	opts := append([]reactive.Option{reactive.WithName("report")}, asyncOpts...)
	g.report, err = reactive.Async(sc, g.summary, func(ctx context.Context, s string) (string, error) {
		select {
		case <-time.After(tick / 3):
			return "report: " + s, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, opts...)
	if err != nil {
		return nil, err
	}

	g.clock = reactive.Make(
		func() string { return time.Now().UTC().Format(time.RFC3339) },
		func(emit func(string)) func() {
			t := time.NewTicker(tick)
			done := make(chan struct{})
			go func() {
				for {
					select {
					case now := <-t.C:
						emit(now.UTC().Format(time.RFC3339))
					case <-done:
						return
					}
				}
			}()
			return func() {
				t.Stop()
				close(done)
			}
		},
	)

	if err := sc.Go(func(ctx context.Context) error {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				reactive.Batch(func(tx *reactive.Tx) {
					g.ticks.UpdateTx(tx, func(n int) int { return n + 1 })
					g.total.UpdateTx(tx, func(n int) int { return n + 1 })
				})
			case <-ctx.Done():
				return nil
			}
		}
	}); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *demoGraph) register(reg *inspect.Registry) error {
	for _, err := range []error{
		inspect.Register[int](reg, "ticks", g.ticks),
		inspect.Register[int](reg, "total", g.total),
		inspect.Register[string](reg, "parity", g.parity),
		inspect.Register[string](reg, "summary", g.summary),
		inspect.Register[reactive.AsyncState[string]](reg, "report", g.report),
		inspect.Register(reg, "clock", g.clock),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
