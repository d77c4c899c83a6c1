package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/logger"
)

// Runner starts and stops one Worker per configured worker block.
type Runner struct {
	cfg      Config
	registry *Registry
	opts     *runnerOptions
	logger   *slog.Logger

	mu      sync.Mutex
	workers []*Worker
}

// NewRunner normalizes cfg and returns a runner for it.
func NewRunner(cfg Config, registry *Registry, opts ...RunnerOption) (*Runner, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}

	normalized, err := Normalize(cfg)
	if err != nil {
		return nil, err
	}

	options := &runnerOptions{
		clientFactory:   beanstalk.NewFactory(),
		reserveTimeout:  DefaultReserveTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
		observer:        func(Event) {},
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Runner{
		cfg:      normalized,
		registry: registry,
		opts:     options,
		logger:   options.logger.With(logger.Component("runner")),
	}, nil
}

// Config returns the normalized configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Workers returns the workers of the current run.
func (r *Runner) Workers() []*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Worker(nil), r.workers...)
}

// Start starts every worker concurrently. If any worker fails to start, the
// workers that did start are stopped again and the first failure is returned.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.workers != nil {
		return ErrAlreadyStarted
	}

	r.emit(Event{Name: EventStarting})
	r.logger.InfoContext(ctx, "runner starting", slog.Int("workers", len(r.cfg.Workers)))

	workers := make([]*Worker, len(r.cfg.Workers))
	for i, wc := range r.cfg.Workers {
		w, err := NewWorker(wc, r.registry,
			WithClientFactory(r.opts.clientFactory),
			WithReserveTimeout(r.opts.reserveTimeout),
			WithDefaultConnection(r.cfg.Connection),
			WithWorkerLogger(r.opts.logger.With(slog.Int("worker_index", i))),
			WithObserver(r.opts.observer),
		)
		if err != nil {
			return err
		}
		workers[i] = w
	}

	started := make([]bool, len(workers))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range workers {
		g.Go(func() error {
			if err := w.Start(gctx); err != nil {
				return err
			}
			started[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var running []*Worker
		for i, w := range workers {
			if started[i] {
				running = append(running, w)
			}
		}
		if stopErr := stopAll(context.WithoutCancel(ctx), running); stopErr != nil {
			r.logger.WarnContext(ctx, "failed to stop workers after start error", logger.Error(stopErr))
		}

		r.emit(Event{Name: EventStartError, Err: err})
		r.logger.ErrorContext(ctx, "runner failed to start", logger.Error(err))
		return err
	}

	r.workers = workers
	r.emit(Event{Name: EventStarted})
	r.logger.InfoContext(ctx, "runner started")
	return nil
}

// Stop stops every worker concurrently. Each worker is stopped regardless of
// the others' failures; all failures are joined.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.workers == nil {
		return nil
	}

	r.emit(Event{Name: EventStopping})
	r.logger.InfoContext(ctx, "runner stopping")

	err := stopAll(ctx, r.workers)
	r.workers = nil

	r.emit(Event{Name: EventStopped, Err: err})
	if err != nil {
		r.logger.ErrorContext(ctx, "runner stopped with errors", logger.Error(err))
		return err
	}
	r.logger.InfoContext(ctx, "runner stopped")
	return nil
}

// Run starts the runner and returns a function suitable for errgroup. The
// runner is stopped when ctx is done, within the shutdown timeout.
func (r *Runner) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.shutdownTimeout)
		defer cancel()
		return r.Stop(stopCtx)
	}
}

// Healthcheck reports ErrNotReady unless the runner is started and every
// worker with handlers is running its loop with its last reserve not failed.
func (r *Runner) Healthcheck(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.workers == nil {
		return ErrNotReady
	}
	for _, w := range r.workers {
		if st := w.State(); !st.Running() && st != StateCreated {
			return fmt.Errorf("%w: worker %s is %s", ErrNotReady, w.ID(), st)
		}
		if err := w.ReserveError(); err != nil {
			return fmt.Errorf("%w: worker %s cannot reserve: %w", ErrNotReady, w.ID(), err)
		}
	}
	return nil
}

func stopAll(ctx context.Context, workers []*Worker) error {
	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Stop(ctx); err != nil {
				errs[i] = fmt.Errorf("worker %s: %w", w.ID(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (r *Runner) emit(e Event) {
	e.Source = SourceRunner
	e.Time = time.Now()
	r.opts.observer(e)
}
