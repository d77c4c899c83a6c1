package queue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/logger"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
	"github.com/dmitrymomot/tubeworker/pkg/schema"
)

// MockClient is a mock implementation of beanstalk.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Connect(ctx context.Context, addr beanstalk.Address) error {
	return m.Called(ctx, addr).Error(0)
}

func (m *MockClient) Watch(ctx context.Context, tube string) error {
	return m.Called(ctx, tube).Error(0)
}

func (m *MockClient) Ignore(ctx context.Context, tube string) error {
	return m.Called(ctx, tube).Error(0)
}

func (m *MockClient) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*beanstalk.Job, error) {
	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*beanstalk.Job), args.Error(1)
}

func (m *MockClient) Delete(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) Release(ctx context.Context, id uint64, opts beanstalk.ReleaseOptions) error {
	return m.Called(ctx, id, opts).Error(0)
}

func (m *MockClient) Bury(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// expectIdle makes every further reserve block until the worker stops.
func (m *MockClient) expectIdle() *mock.Call {
	return m.On("ReserveWithTimeout", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logger.New(
		logger.WithOutput(buf),
		logger.WithJSONFormatter(),
		logger.WithLevel(logger.LevelDebug),
	), buf
}

// countLevel counts log lines at the given level name.
func countLevel(logs, level string) int {
	return strings.Count(logs, `"level":"`+level+`"`)
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) observe(e queue.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) names(source string) []queue.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queue.EventName
	for _, e := range r.events {
		if source == "" || e.Source == source {
			out = append(out, e.Name)
		}
	}
	return out
}

// lifecycle returns worker events that are not job phases.
func (r *recorder) lifecycle() []queue.EventName {
	var out []queue.EventName
	for _, n := range r.names(queue.SourceWorker) {
		if !strings.HasPrefix(string(n), "job.") {
			out = append(out, n)
		}
	}
	return out
}

// jobNames returns job phase events except the reserving ones.
func (r *recorder) jobNames() []queue.EventName {
	var out []queue.EventName
	for _, n := range r.names(queue.SourceWorker) {
		if strings.HasPrefix(string(n), "job.") && n != queue.EventJobReserving {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) find(name queue.EventName) (queue.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Name == name {
			return e, true
		}
	}
	return queue.Event{}, false
}

// staticFactory returns a factory always producing h.
func staticFactory(h queue.Handler) queue.Factory {
	return func(queue.Options, *slog.Logger) (queue.Handler, error) {
		return h, nil
	}
}

func registryWith(t *testing.T, factories map[string]queue.Factory) *queue.Registry {
	t.Helper()
	reg := queue.NewRegistry()
	for path, f := range factories {
		require.NoError(t, reg.Register(path, f))
	}
	return reg
}

// countingHandler records every job it processes.
type countingHandler struct {
	typ     string
	schema  *schema.Schema
	verdict queue.Verdict
	err     error
	panics  bool
	block   chan struct{}

	mu    sync.Mutex
	calls []processed
}

type processed struct {
	ID      uint64
	Type    string
	Payload any
}

func (h *countingHandler) Type() string {
	return h.typ
}

func (h *countingHandler) PayloadSchema() *schema.Schema {
	return h.schema
}

func (h *countingHandler) Process(_ context.Context, payload any, id uint64, jobType string) (queue.Verdict, error) {
	if h.block != nil {
		<-h.block
	}

	h.mu.Lock()
	h.calls = append(h.calls, processed{ID: id, Type: jobType, Payload: payload})
	h.mu.Unlock()

	if h.panics {
		panic("boom")
	}
	return h.verdict, h.err
}

func (h *countingHandler) processed() []processed {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]processed(nil), h.calls...)
}

// closingHandler tracks Initialize and Close calls.
type closingHandler struct {
	countingHandler
	initErr  error
	closeErr error

	mu          sync.Mutex
	initialized bool
	closed      bool
}

func (h *closingHandler) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initialized = true
	return h.initErr
}

func (h *closingHandler) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return h.closeErr
}

func (h *closingHandler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// inFlightHandler blocks in Process until release is closed and records
// whether Close was called while a job was still being processed.
type inFlightHandler struct {
	release chan struct{}

	active      atomic.Bool
	closed      atomic.Bool
	closedEarly atomic.Bool
}

func (h *inFlightHandler) Type() string {
	return queue.WildcardType
}

func (h *inFlightHandler) PayloadSchema() *schema.Schema {
	return nil
}

func (h *inFlightHandler) Process(context.Context, any, uint64, string) (queue.Verdict, error) {
	h.active.Store(true)
	defer h.active.Store(false)
	<-h.release
	return queue.Delete(), nil
}

func (h *inFlightHandler) Close(context.Context) error {
	if h.active.Load() {
		h.closedEarly.Store(true)
	}
	h.closed.Store(true)
	return nil
}

// jobBody encodes a job envelope.
func jobBody(t *testing.T, jobType string, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"type": jobType, "payload": payload})
	require.NoError(t, err)
	return body
}

// startMemoryWorker starts a worker for cfg against server and stops it on cleanup.
func startMemoryWorker(t *testing.T, server *beanstalk.MemoryServer, cfg queue.WorkerConfig, reg *queue.Registry, opts ...queue.WorkerOption) *queue.Worker {
	t.Helper()
	opts = append([]queue.WorkerOption{
		queue.WithClient(server.Client()),
		queue.WithReserveTimeout(20 * time.Millisecond),
	}, opts...)
	w, err := queue.NewWorker(cfg, reg, opts...)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w
}

// waitState waits until job id reaches state, or until it is deleted when state is empty.
func waitState(t *testing.T, server *beanstalk.MemoryServer, id uint64, state beanstalk.JobState) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, ok := server.Job(id)
		if state == "" {
			return !ok
		}
		return ok && info.State == state
	}, 3*time.Second, 5*time.Millisecond)
}
