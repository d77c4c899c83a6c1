package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/config"
	"github.com/dmitrymomot/tubeworker/pkg/handlers"
	"github.com/dmitrymomot/tubeworker/pkg/httpserver"
	"github.com/dmitrymomot/tubeworker/pkg/logger"
	"github.com/dmitrymomot/tubeworker/pkg/metrics"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the workers and serve health and metrics endpoints",
		Long: `Start every worker of the fleet file and block until SIGINT or SIGTERM.

The status server answers /livez, /healthz (ready once every worker runs its
loop) and /metrics. An empty --http-addr disables it. On a signal the workers
finish their in-flight jobs within the shutdown timeout.`,
		Example: `  tubeworker run -c /etc/tubeworker.yaml
  LOG_LEVEL=debug tubeworker run --http-addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(s, cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, s, log)
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", "", "status server address, empty to disable (env HTTP_ADDR)")
	flags.Duration("reserve-timeout", 0, "how long a reserve waits for a job (env RESERVE_TIMEOUT)")
	flags.Duration("shutdown-timeout", 0, "time allowed for in-flight jobs on shutdown (env SHUTDOWN_TIMEOUT)")
	return cmd
}

// run starts the fleet described by s.ConfigPath and blocks until ctx is done.
func run(ctx context.Context, s settings, log *slog.Logger) error {
	cfg, err := loadFleet(s)
	if err != nil {
		logger.Emergency(ctx, log, "invalid fleet configuration", logger.Error(err), slog.String("path", s.ConfigPath))
		return errors.Join(errReported, err)
	}

	registry := queue.NewRegistry()
	if err := handlers.RegisterAll(registry); err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New("tubeworker")
	if err := m.Register(promRegistry); err != nil {
		return err
	}

	runner, err := queue.NewRunner(cfg, registry,
		queue.WithRunnerClientFactory(beanstalk.NewFactory()),
		queue.WithRunnerReserveTimeout(s.ReserveTimeout),
		queue.WithShutdownTimeout(s.ShutdownTimeout),
		queue.WithRunnerLogger(log),
		queue.WithRunnerObserver(m.Observe),
	)
	if err != nil {
		logger.Emergency(ctx, log, "invalid fleet configuration", logger.Error(err))
		return errors.Join(errReported, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(runner.Run(gctx))
	if s.HTTP.Addr != "" {
		srv := httpserver.NewFromConfig(s.HTTP, httpserver.WithLogger(log.With(logger.Component("http"))))
		router := httpserver.NewStatusRouter(log, promRegistry, runner.Healthcheck)
		g.Go(func() error { return srv.Run(gctx, router) })
	}

	err = g.Wait()
	switch {
	case err == nil:
		log.InfoContext(ctx, "shutdown complete")
		return nil
	case errors.Is(err, queue.ErrStartFailed):
		logger.Emergency(ctx, log, "runner could not start", logger.Error(err))
		return errors.Join(errReported, err)
	default:
		log.ErrorContext(ctx, "shutdown with errors", logger.Error(err))
		return errors.Join(errReported, err)
	}
}

// loadFleet reads the fleet file. Beanstalk settings from the environment
// fill in a top-level connection the file leaves empty.
func loadFleet(s settings) (queue.Config, error) {
	var cfg queue.Config
	if err := config.LoadFile(s.ConfigPath, &cfg); err != nil {
		return queue.Config{}, fmt.Errorf("load %s: %w", s.ConfigPath, err)
	}
	if cfg.Connection.Host == "" {
		cfg.Connection.Host = s.BeanstalkHost
	}
	if cfg.Connection.Port == 0 {
		cfg.Connection.Port = s.BeanstalkPort
	}
	return queue.Normalize(cfg)
}
