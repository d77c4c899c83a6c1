package queue

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
)

// DefaultReserveTimeout bounds each reserve call of the worker loop.
const DefaultReserveTimeout = 10 * time.Second

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	id             string
	client         beanstalk.Client
	clientFactory  beanstalk.Factory
	reserveTimeout time.Duration
	connection     Connection
	logger         *slog.Logger
	observer       Observer
}

// WithWorkerID sets the worker identifier used in logs and events
func WithWorkerID(id string) WorkerOption {
	return func(o *workerOptions) {
		if id != "" {
			o.id = id
		}
	}
}

// WithClient sets the queue client the worker uses
func WithClient(c beanstalk.Client) WorkerOption {
	return func(o *workerOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// WithClientFactory sets the factory used to create the worker's queue client.
// WithClient takes precedence.
func WithClientFactory(f beanstalk.Factory) WorkerOption {
	return func(o *workerOptions) {
		if f != nil {
			o.clientFactory = f
		}
	}
}

// WithReserveTimeout sets how long each reserve waits for a job
func WithReserveTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.reserveTimeout = d
		}
	}
}

// WithDefaultConnection sets the connection the worker inherits missing
// host and port from. It defaults to DefaultConnection.
func WithDefaultConnection(c Connection) WorkerOption {
	return func(o *workerOptions) {
		o.connection = c.inherit(DefaultConnection())
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers a callback receiving the worker's events
func WithObserver(obs Observer) WorkerOption {
	return func(o *workerOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}
