package queue

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
)

// RunnerOption is a functional option for configuring a runner
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	clientFactory   beanstalk.Factory
	reserveTimeout  time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	observer        Observer
}

// WithRunnerClientFactory sets the factory creating one queue client per worker
func WithRunnerClientFactory(f beanstalk.Factory) RunnerOption {
	return func(o *runnerOptions) {
		if f != nil {
			o.clientFactory = f
		}
	}
}

// WithRunnerReserveTimeout sets the reserve timeout of every worker
func WithRunnerReserveTimeout(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.reserveTimeout = d
		}
	}
}

// WithShutdownTimeout bounds the stop performed by Run
func WithShutdownTimeout(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithRunnerLogger sets the logger for the runner and its workers
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunnerObserver registers a callback receiving runner and worker events.
// It is called concurrently from different workers.
func WithRunnerObserver(obs Observer) RunnerOption {
	return func(o *runnerOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}
