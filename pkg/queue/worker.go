package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/logger"
)

// DefaultShutdownTimeout bounds Stop when a worker or runner is driven by Run.
const DefaultShutdownTimeout = 30 * time.Second

// Worker owns one queue connection, one set of watched tubes and the
// handlers of one worker block. It reserves and processes one job at a time.
type Worker struct {
	id             string
	cfg            WorkerConfig
	registry       *Registry
	client         beanstalk.Client
	reserveTimeout time.Duration
	logger         *slog.Logger
	observer       Observer

	state      atomic.Int32
	reserveErr atomic.Pointer[error]

	// mu serializes Start and Stop.
	mu       sync.Mutex
	handlers map[string]Handler
	built    []Handler
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a worker for cfg. Missing connection fields inherit
// from WithDefaultConnection. Handlers are resolved through registry when
// the worker starts.
func NewWorker(cfg WorkerConfig, registry *Registry, opts ...WorkerOption) (*Worker, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}

	options := &workerOptions{
		id:             uuid.NewString(),
		clientFactory:  beanstalk.NewFactory(),
		reserveTimeout: DefaultReserveTimeout,
		connection:     DefaultConnection(),
		logger:         slog.Default(),
		observer:       func(Event) {},
	}
	for _, opt := range opts {
		opt(options)
	}

	client := options.client
	if client == nil {
		client = options.clientFactory()
	}

	return &Worker{
		id:             options.id,
		cfg:            normalizeWorker(cfg, options.connection),
		registry:       registry,
		client:         client,
		reserveTimeout: options.reserveTimeout,
		logger:         options.logger.With(logger.Component("worker"), logger.WorkerID(options.id)),
		observer:       options.observer,
	}, nil
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// ReserveError returns the error of the last failed reserve. It is cleared
// when a reserve returns a job or times out.
func (w *Worker) ReserveError() error {
	if err := w.reserveErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Config returns the worker configuration with inherited connection fields.
func (w *Worker) Config() WorkerConfig {
	return w.cfg
}

// Start builds the handlers, connects, watches the configured tubes and
// launches the processing loop. A worker without handlers starts as a no-op.
// ctx bounds the start sequence only; the loop runs until Stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != StateCreated {
		return ErrAlreadyStarted
	}
	if len(w.cfg.Handlers) == 0 {
		w.logger.DebugContext(ctx, "worker has no handlers, not starting")
		return nil
	}

	if err := w.buildHandlers(ctx); err != nil {
		return w.startFailed(ctx, PhaseInitialize, err, false)
	}

	addr := w.cfg.Connection.Address()
	w.setState(StateConnecting)
	w.emit(Event{Name: EventConnecting, Address: addr.String()})
	if err := w.client.Connect(ctx, addr); err != nil {
		return w.startFailed(ctx, PhaseConnect, err, false)
	}
	w.setState(StateConnected)
	w.emit(Event{Name: EventConnected, Address: addr.String()})

	w.setState(StateWatching)
	for _, tube := range w.cfg.Tubes {
		if err := w.client.Watch(ctx, tube); err != nil {
			return w.startFailed(ctx, PhaseWatch, fmt.Errorf("tube %q: %w", tube, err), true)
		}
		w.emit(Event{Name: EventWatching, Tube: tube})
	}
	if !slices.Contains(w.cfg.Tubes, beanstalk.DefaultTube) {
		if err := w.client.Ignore(ctx, beanstalk.DefaultTube); err != nil {
			return w.startFailed(ctx, PhaseIgnore, err, true)
		}
		w.emit(Event{Name: EventIgnoring, Tube: beanstalk.DefaultTube})
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.done = make(chan struct{})

	w.setState(StateReady)
	w.emit(Event{Name: EventReady})
	w.logger.InfoContext(ctx, "worker ready",
		slog.String("address", addr.String()),
		logger.Tubes(w.cfg.Tubes),
		slog.Int("handlers", len(w.handlers)))

	go w.run(loopCtx)
	return nil
}

// Stop ends the loop after the in-flight job, closes the handlers and
// disconnects. Cleanup failures are logged and returned wrapped in
// ErrStopFailed.
//
// Stop returns when ctx is done even if a job is still being processed. The
// job is not aborted: it keeps its handler and connection, and the handlers
// are closed and the client disconnected once it finishes.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.State().Running() {
		return nil
	}

	w.setState(StateStopping)
	w.emit(Event{Name: EventStopping})
	w.logger.InfoContext(ctx, "worker stopping, waiting for in-flight job")

	w.cancel()

	var stopErr error
	select {
	case <-w.done:
		if err := w.release(ctx); err != nil {
			stopErr = fmt.Errorf("%w: %w", ErrStopFailed, err)
		}
	case <-ctx.Done():
		stopErr = fmt.Errorf("%w: waiting for in-flight job: %w", ErrStopFailed, ctx.Err())
		w.logger.WarnContext(ctx, "stop timed out, cleanup deferred until the in-flight job finishes")
		go w.releaseAfterLoop(context.WithoutCancel(ctx), w.done)
	}

	w.setState(StateStopped)
	w.emit(Event{Name: EventStopped, Err: stopErr})
	w.logger.InfoContext(ctx, "worker stopped")
	return stopErr
}

// releaseAfterLoop waits for the loop to exit, then releases its resources.
func (w *Worker) releaseAfterLoop(ctx context.Context, done <-chan struct{}) {
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.release(ctx); err != nil {
		w.logger.ErrorContext(ctx, "deferred worker cleanup failed", logger.Error(err))
		return
	}
	w.logger.InfoContext(ctx, "deferred worker cleanup finished")
}

// release closes the handlers and disconnects. The loop must have exited.
func (w *Worker) release(ctx context.Context) error {
	var errs []error
	if err := w.closeHandlers(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := w.client.Disconnect(ctx); err != nil {
		w.logger.ErrorContext(ctx, "failed to disconnect", logger.Error(err))
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}
	return errors.Join(errs...)
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
		defer cancel()
		return w.Stop(stopCtx)
	}
}

func (w *Worker) buildHandlers(ctx context.Context) error {
	w.setState(StateInitializing)
	w.emit(Event{Name: EventInitializing})

	built := make([]Handler, len(w.cfg.Handlers))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range w.cfg.Handlers {
		g.Go(func() error {
			h, err := w.buildHandler(gctx, spec)
			if err != nil {
				return fmt.Errorf("handler %d (%s): %w", i, spec.Path, err)
			}
			built[i] = h
			return nil
		})
	}
	err := g.Wait()

	for _, h := range built {
		if h != nil {
			w.built = append(w.built, h)
		}
	}
	if err != nil {
		return err
	}

	handlers := make(map[string]Handler, len(built))
	for i, h := range built {
		if _, exists := handlers[h.Type()]; exists {
			w.logger.WarnContext(ctx, "duplicate handler type, later entry wins",
				logger.JobType(h.Type()),
				slog.String("path", w.cfg.Handlers[i].Path))
		}
		handlers[h.Type()] = h
	}
	w.handlers = handlers

	w.setState(StateInitialized)
	w.emit(Event{Name: EventInitialized})
	return nil
}

func (w *Worker) buildHandler(ctx context.Context, spec HandlerSpec) (Handler, error) {
	factory, err := w.registry.Lookup(spec.Path)
	if err != nil {
		return nil, err
	}

	h, err := factory(maps.Clone(spec.Options), w.logger.With(slog.String("path", spec.Path)))
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	if init, ok := h.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}
	return h, nil
}

func (w *Worker) closeHandlers(ctx context.Context) error {
	var errs []error
	for _, h := range w.built {
		c, ok := h.(Closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			w.logger.ErrorContext(ctx, "failed to close handler", logger.JobType(h.Type()), logger.Error(err))
			errs = append(errs, fmt.Errorf("close handler %s: %w", h.Type(), err))
		}
	}
	w.built = nil
	return errors.Join(errs...)
}

func (w *Worker) startFailed(ctx context.Context, phase string, err error, connected bool) error {
	startErr := &StartError{WorkerID: w.id, Phase: phase, Err: err}
	cleanupCtx := context.WithoutCancel(ctx)

	_ = w.closeHandlers(cleanupCtx)
	if connected {
		if derr := w.client.Disconnect(cleanupCtx); derr != nil {
			w.logger.WarnContext(ctx, "failed to disconnect after start error", logger.Error(derr))
		}
	}

	w.setState(StateStartError)
	w.emit(Event{Name: EventStartError, Err: startErr})
	w.logger.ErrorContext(ctx, "worker failed to start", slog.String("phase", phase), logger.Error(err))
	return startErr
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for ctx.Err() == nil {
		w.next(ctx)
	}
}

// next reserves and processes at most one job.
func (w *Worker) next(ctx context.Context) {
	if !w.advance(StateReserving) {
		return
	}
	w.emit(Event{Name: EventJobReserving})

	job, err := w.client.ReserveWithTimeout(ctx, w.reserveTimeout)
	if err != nil {
		switch {
		case errors.Is(err, beanstalk.ErrTimedOut):
			w.reserveErr.Store(nil)
		case ctx.Err() != nil:
		default:
			w.reserveErr.Store(&err)
			w.logger.ErrorContext(ctx, "failed to reserve job", logger.Error(err))
			w.emit(Event{Name: EventJobFailed, Err: err})
		}
		return
	}

	w.reserveErr.Store(nil)
	w.advance(StateProcessing)
	w.emit(Event{Name: EventJobReserved, JobID: job.ID})

	// The job in flight is finished even when Stop is called meanwhile.
	w.handle(context.WithoutCancel(ctx), job)
}

func (w *Worker) handle(ctx context.Context, job *beanstalk.Job) {
	start := time.Now()
	ctx = logger.WithAttrs(ctx, logger.JobID(job.ID))

	jobType, payload, err := decodeJob(job.Body)
	if err != nil {
		w.logger.WarnContext(ctx, "rejecting job", logger.Error(err))
		w.apply(ctx, job.ID, "", Bury())
		return
	}

	h := w.handlerFor(jobType)
	if h == nil {
		w.logger.WarnContext(ctx, "rejecting job", logger.JobType(jobType), logger.Error(ErrHandlerNotFound))
		w.apply(ctx, job.ID, jobType, Bury())
		return
	}
	ctx = logger.WithAttrs(ctx, logger.JobType(jobType))

	if s := h.PayloadSchema(); s != nil {
		w.emit(Event{Name: EventJobValidating, JobID: job.ID, JobType: jobType})
		if res := s.Validate(payload); !res.Valid {
			err := fmt.Errorf("%w: %w", ErrInvalidPayload, res.Err())
			w.emit(Event{Name: EventJobInvalid, JobID: job.ID, JobType: jobType, Err: err})
			w.logger.WarnContext(ctx, "job payload is invalid", logger.Error(err))
			w.apply(ctx, job.ID, jobType, Bury())
			return
		}
		w.emit(Event{Name: EventJobValid, JobID: job.ID, JobType: jobType})
	}

	w.emit(Event{Name: EventJobHandling, JobID: job.ID, JobType: jobType})
	verdict, err := w.process(ctx, h, payload, job.ID, jobType)
	elapsed := time.Since(start)
	w.emit(Event{Name: EventJobHandled, JobID: job.ID, JobType: jobType, Err: err, Duration: elapsed})

	if err != nil {
		w.logger.ErrorContext(ctx, "job processing failed", logger.Duration(elapsed), logger.Error(err))
		w.emit(Event{Name: EventJobFailed, JobID: job.ID, JobType: jobType, Err: err})
		return
	}

	w.apply(ctx, job.ID, jobType, ResolveVerdict(verdict))
}

// handlerFor returns the exact handler for jobType, then the wildcard handler.
func (w *Worker) handlerFor(jobType string) Handler {
	if h, ok := w.handlers[jobType]; ok {
		return h
	}
	return w.handlers[WildcardType]
}

func (w *Worker) process(ctx context.Context, h Handler, payload any, id uint64, jobType string) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	v, err = h.Process(ctx, payload, id, jobType)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}
	return v, nil
}

// apply performs exactly one queue operation for the verdict.
func (w *Worker) apply(ctx context.Context, id uint64, jobType string, v Verdict) {
	var (
		err        error
		start, end EventName
	)

	w.logger.DebugContext(ctx, "applying verdict", slog.String("verdict", v.String()))

	switch v.Action {
	case ActionDelete:
		start, end = EventJobDeleting, EventJobDeleted
		w.emit(Event{Name: start, JobID: id, JobType: jobType})
		err = w.client.Delete(ctx, id)
	case ActionRelease:
		start, end = EventJobReleasing, EventJobReleased
		w.emit(Event{Name: start, JobID: id, JobType: jobType})
		err = w.client.Release(ctx, id, beanstalk.ReleaseOptions{
			Priority: v.Release.Priority,
			Delay:    v.Release.Delay,
		})
	default:
		start, end = EventJobBurying, EventJobBuried
		w.emit(Event{Name: start, JobID: id, JobType: jobType})
		err = w.client.Bury(ctx, id)
	}

	if err != nil {
		err = fmt.Errorf("%s job: %w", v, err)
		w.logger.ErrorContext(ctx, "failed to apply verdict", logger.Error(err))
		w.emit(Event{Name: EventJobFailed, JobID: id, JobType: jobType, Err: err})
		return
	}
	w.emit(Event{Name: end, JobID: id, JobType: jobType})
}

func (w *Worker) emit(e Event) {
	e.Source = SourceWorker
	e.WorkerID = w.id
	e.Time = time.Now()
	w.observer(e)
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// advance moves a running worker to s. It reports false once the worker is stopping.
func (w *Worker) advance(s WorkerState) bool {
	for {
		cur := w.state.Load()
		if !WorkerState(cur).Running() {
			return false
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}
