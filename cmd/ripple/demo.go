package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ripple/internal/config"
	"github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/internal/idgen"
	"github.com/vango-dev/ripple/pkg/reactive"
	"github.com/vango-dev/ripple/pkg/scope"
)

func demoCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a demonstration graph",
		Long: `Run a small reactive graph and print what its subscribers see.

Examples:
  ripple demo glitch
  ripple demo async --strategy=abort --triggers=10
  ripple demo async --strategy=debounce --delay=200ms
  ripple demo async --trace`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New(errors.CodeCLIUnknownDemo).
					WithDetail("no demo named %q", args[0]).
					WithSuggestion("Available demos: glitch, async")
			}
			return cmd.Help()
		},
	}
	cmd.AddCommand(glitchCmd(), asyncCmd(load))
	return cmd
}

func glitchCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "glitch",
		Short: "Show that a diamond dependency never emits a mixed value",
		Long: `Builds x, double = x*2 and sum = x + double, then sets x repeatedly.
Every value of sum is a multiple of three; a mixed read would break that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.New(errors.CodeCLIInvalidFlag).WithDetail("--steps must be at least 1, got %d", steps)
			}
			glitches, err := runGlitch(cmd.Context(), cmd.OutOrStdout(), steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "glitches: %d\n", glitches)
			return nil
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 5, "Number of writes to x")

	return cmd
}

func runGlitch(ctx context.Context, w io.Writer, steps int) (int, error) {
	sc := scope.New(ctx, scope.WithName("demo-glitch"), scope.WithIDGenerator(idgen.NewSequence("n")))
	defer sc.Close()

	x := reactive.NewSignal(sc, 1, reactive.WithName("x"))
	double, err := reactive.Derive(sc, x, func(v int) int { return v * 2 }, reactive.WithName("double"))
	if err != nil {
		return 0, err
	}
	sum, err := reactive.Derive2(sc, x, double, func(a, b int) int { return a + b }, reactive.WithName("sum"))
	if err != nil {
		return 0, err
	}

	var glitches atomic.Int32
	cancel := sum.Watch(func(v int) {
		mark := ""
		if v%3 != 0 {
			glitches.Add(1)
			mark = "  <- glitch"
		}
		fmt.Fprintf(w, "sum = %d%s\n", v, mark)
	})
	defer cancel()

	for i := 2; i <= steps+1; i++ {
		x.Set(i)
	}
	return int(glitches.Load()), nil
}

type asyncDemo struct {
	strategy reactive.Strategy
	debounce time.Duration
	delay    time.Duration
	interval time.Duration
	triggers int
}

func asyncCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		strategy string
		traced   bool
		demo     asyncDemo
	)

	cmd := &cobra.Command{
		Use:   "async",
		Short: "Trigger an async derived value faster than it computes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			demo.debounce = cfg.Async.DebounceDuration()
			if !cmd.Flags().Changed("strategy") {
				strategy = cfg.Async.Strategy
			}
			demo.strategy, err = reactive.ParseStrategy(strategy)
			if err != nil {
				return errors.New(errors.CodeCLIInvalidFlag).Wrap(err)
			}
			if demo.triggers < 1 {
				return errors.New(errors.CodeCLIInvalidFlag).WithDetail("--triggers must be at least 1, got %d", demo.triggers)
			}

			ctx := cmd.Context()
			if traced {
				exp, err := stdoutExporter(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				var shutdown func(context.Context) error
				ctx, shutdown = withSpanExporter(ctx, exp)
				defer shutdown(context.Background())
			}

			st, runs, err := runAsync(ctx, cmd.OutOrStdout(), demo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settled on %s after %d computations\n", st.Value, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "queue", "Concurrency strategy: queue, abort or debounce")
	cmd.Flags().DurationVar(&demo.delay, "delay", 100*time.Millisecond, "Duration of each computation")
	cmd.Flags().DurationVar(&demo.interval, "interval", 10*time.Millisecond, "Pause between triggers")
	cmd.Flags().IntVar(&demo.triggers, "triggers", 5, "Number of dependency changes")
	cmd.Flags().BoolVar(&traced, "trace", false, "Print a span per computation to stderr")

	return cmd
}

// lockedWriter serializes writes from subscriber callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runAsync(ctx context.Context, w io.Writer, demo asyncDemo) (reactive.AsyncState[string], int, error) {
	out := &lockedWriter{w: w}
	sc := scope.New(ctx, scope.WithName("demo-async"), scope.WithIDGenerator(idgen.NewSequence("n")))
	defer sc.Close()

	query := reactive.NewSignal(sc, 0, reactive.WithName("query"))

	var runs atomic.Int32
	search, err := reactive.Async(sc, query, func(ctx context.Context, q int) (string, error) {
		runs.Add(1)
		select {
		case <-time.After(demo.delay):
			return fmt.Sprintf("result(%d)", q), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	},
		reactive.WithName("search"),
		reactive.WithStrategy(demo.strategy),
		reactive.WithDebounce(demo.debounce),
	)
	if err != nil {
		return reactive.AsyncState[string]{}, 0, err
	}

	start := time.Now()
	cancel := search.Watch(func(st reactive.AsyncState[string]) {
		fmt.Fprintf(out, "%8s  %-9s %s\n", time.Since(start).Round(time.Millisecond), st.Phase(), st.Value)
	})
	defer cancel()

	for i := 1; i <= demo.triggers; i++ {
		query.Set(i)
		time.Sleep(demo.interval)
	}

	st, err := search.Await(ctx)
	if stderrors.Is(err, scope.ErrClosed) {
		return st, 0, errors.New(errors.CodeScopeClosed).Wrap(err)
	}
	if err != nil {
		return st, 0, err
	}
	if st.Err != nil {
		return st, int(runs.Load()), errors.New(errors.CodeComputeFailed).WithDetail("search").Wrap(st.Err)
	}
	return st, int(runs.Load()), nil
}
