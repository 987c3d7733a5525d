package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/vango-dev/ripple/internal/config"
	"github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/internal/idgen"
	"github.com/vango-dev/ripple/pkg/inspect"
	"github.com/vango-dev/ripple/pkg/persist"
	"github.com/vango-dev/ripple/pkg/reactive"
	"github.com/vango-dev/ripple/pkg/scope"
)

func inspectCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr string
		tick time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve a live demo graph behind the inspector",
		Long: `Run a ticking demo graph and expose it over HTTP until interrupted.

Endpoints:
  GET /readables               all values
  GET /readables/{name}        one value
  GET /readables/{name}/watch  websocket stream of one value
  GET /metrics                 Prometheus metrics
  GET /healthz                 liveness

Examples:
  ripple inspect
  ripple inspect --addr=:7070
  ripple inspect --config=ripple.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Inspect.Addr = addr
				cfg.Inspect.Enabled = true
			}
			if !cfg.Inspect.Enabled {
				return errors.New(errors.CodeConfigInvalid).
					WithDetail("the inspector is disabled").
					WithSuggestion("Set inspect.enabled in ripple.json or pass --addr")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runInspect(ctx, cfg, tick, func(addr string) {
				printBanner()
				success("Inspector listening on http://%s", addr)
				info("Watch a value: ws://%s/readables/ticks/watch", addr)
				info("Press Ctrl+C to stop")
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from ripple.json)")
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "Interval between demo ticks")

	return cmd
}

func runInspect(ctx context.Context, cfg *config.Config, tick time.Duration, ready func(addr string)) error {
	logger := cfg.Logger(os.Stderr)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := reactive.NewMetrics(
		reactive.WithNamespace(cfg.Metrics.Namespace),
		reactive.WithRegistry(promReg),
	)

	sc := scope.New(reactive.ContextWithMetrics(ctx, metrics),
		scope.WithName("inspect"),
		scope.WithLogger(logger),
		scope.WithIDGenerator(idgen.NewULID()),
	)
	defer sc.Close()

	store, err := openStore(cfg.Persist)
	if err != nil {
		return err
	}
	graph, err := buildGraph(sc, store, tick, cfg.AsyncOptions()...)
	if err != nil {
		return err
	}

	reg := inspect.NewRegistry()
	if err := graph.register(reg); err != nil {
		return err
	}

	srv, err := inspect.Listen(cfg.Inspect.Addr, inspect.Handler(reg,
		inspect.WithGatherer(promReg),
		inspect.WithLogger(logger),
	))
	if err != nil {
		return err
	}
	if ready != nil {
		ready(srv.Addr())
	}
	logger.Info("inspector started", "addr", srv.Addr(), "persist", cfg.Persist.Backend)
	return srv.Serve(ctx)
}

func openStore(cfg config.PersistConfig) (persist.Store, error) {
	switch cfg.Backend {
	case "disk":
		return persist.NewDiskStore(cfg.Dir)
	case "s3":
		client := s3.New(s3.Options{
			Region:      os.Getenv("AWS_REGION"),
			Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
		})
		store := persist.NewS3Store(client, cfg.Bucket, cfg.Prefix)
		return persist.NewBreaker(store, gobreaker.Settings{Name: "s3:" + cfg.Bucket}), nil
	default:
		return persist.NewMemoryStore(), nil
	}
}

func envCredentials(ctx context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "EnvironmentVariables",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 backend")
	}
	return creds, nil
}
