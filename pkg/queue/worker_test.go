package queue_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
	"github.com/dmitrymomot/tubeworker/pkg/schema"
)

func singleWorker(tubes ...string) queue.WorkerConfig {
	return queue.WorkerConfig{
		Tubes:    tubes,
		Handlers: []queue.HandlerSpec{{Path: "test"}},
	}
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil registry", func(t *testing.T) {
		t.Parallel()
		_, err := queue.NewWorker(singleWorker("a"), nil)
		assert.ErrorIs(t, err, queue.ErrRegistryNil)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(singleWorker("a"), queue.NewRegistry())
		require.NoError(t, err)
		assert.NotEmpty(t, w.ID())
		assert.Equal(t, queue.StateCreated, w.State())
		assert.Equal(t, queue.DefaultConnection(), w.Config().Connection)
	})

	t.Run("inherits default connection", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(
			queue.WorkerConfig{Connection: queue.Connection{Port: 11400}},
			queue.NewRegistry(),
			queue.WithDefaultConnection(queue.Connection{Host: "queue.internal"}),
			queue.WithWorkerID("w-1"),
		)
		require.NoError(t, err)
		assert.Equal(t, "w-1", w.ID())
		assert.Equal(t, queue.Connection{Host: "queue.internal", Port: 11400}, w.Config().Connection)
	})
}

func TestWorker_Start(t *testing.T) {
	t.Parallel()

	t.Run("no handlers is a no-op", func(t *testing.T) {
		t.Parallel()

		client := new(MockClient)
		w, err := queue.NewWorker(queue.WorkerConfig{Tubes: []string{"a"}}, queue.NewRegistry(), queue.WithClient(client))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		assert.Equal(t, queue.StateCreated, w.State())
		require.NoError(t, w.Stop(context.Background()))
		client.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("watches tubes in order then ignores default", func(t *testing.T) {
		t.Parallel()

		client := new(MockClient)
		mock.InOrder(
			client.On("Connect", mock.Anything, beanstalk.Address{Host: "127.0.0.1", Port: 11300}).Return(nil).Once(),
			client.On("Watch", mock.Anything, "a").Return(nil).Once(),
			client.On("Watch", mock.Anything, "b").Return(nil).Once(),
			client.On("Ignore", mock.Anything, "default").Return(nil).Once(),
		)
		client.expectIdle()
		client.On("Disconnect", mock.Anything).Return(nil).Once()

		rec := &recorder{}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		w, err := queue.NewWorker(singleWorker("a", "b"), reg, queue.WithClient(client), queue.WithObserver(rec.observe))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		assert.True(t, w.State().Running())
		require.NoError(t, w.Stop(context.Background()))
		assert.Equal(t, queue.StateStopped, w.State())

		client.AssertExpectations(t)
		assert.Equal(t, []queue.EventName{
			queue.EventInitializing,
			queue.EventInitialized,
			queue.EventConnecting,
			queue.EventConnected,
			queue.EventWatching,
			queue.EventWatching,
			queue.EventIgnoring,
			queue.EventReady,
		}, rec.lifecycle()[:8])

		names := rec.lifecycle()
		assert.Equal(t, []queue.EventName{queue.EventStopping, queue.EventStopped}, names[len(names)-2:])
	})

	t.Run("does not ignore a configured default tube", func(t *testing.T) {
		t.Parallel()

		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(nil)
		client.On("Watch", mock.Anything, "a").Return(nil)
		client.On("Watch", mock.Anything, "default").Return(nil)
		client.expectIdle()
		client.On("Disconnect", mock.Anything).Return(nil)

		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		w, err := queue.NewWorker(singleWorker("a", "default"), reg, queue.WithClient(client))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		require.NoError(t, w.Stop(context.Background()))
		client.AssertNotCalled(t, "Ignore", mock.Anything, mock.Anything)
	})

	t.Run("connect failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection refused")
		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(boom)

		h := &closingHandler{countingHandler: countingHandler{typ: "*"}}
		rec := &recorder{}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(client), queue.WithObserver(rec.observe), queue.WithWorkerID("w-9"))
		require.NoError(t, err)

		err = w.Start(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, queue.ErrStartFailed)
		assert.ErrorIs(t, err, boom)

		var startErr *queue.StartError
		require.ErrorAs(t, err, &startErr)
		assert.Equal(t, queue.PhaseConnect, startErr.Phase)
		assert.Equal(t, "w-9", startErr.WorkerID)

		assert.Equal(t, queue.StateStartError, w.State())
		assert.True(t, h.isClosed(), "built handlers are closed")
		_, ok := rec.find(queue.EventStartError)
		assert.True(t, ok)

		assert.NoError(t, w.Stop(context.Background()))
		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrAlreadyStarted)
		client.AssertNotCalled(t, "Disconnect", mock.Anything)
	})

	t.Run("watch failure disconnects", func(t *testing.T) {
		t.Parallel()

		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(nil)
		client.On("Watch", mock.Anything, "a").Return(beanstalk.ErrInvalidTubeName)
		client.On("Disconnect", mock.Anything).Return(nil).Once()

		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(client))
		require.NoError(t, err)

		err = w.Start(context.Background())
		var startErr *queue.StartError
		require.ErrorAs(t, err, &startErr)
		assert.Equal(t, queue.PhaseWatch, startErr.Phase)
		client.AssertExpectations(t)
	})

	t.Run("unknown handler path", func(t *testing.T) {
		t.Parallel()

		client := new(MockClient)
		w, err := queue.NewWorker(singleWorker("a"), queue.NewRegistry(), queue.WithClient(client))
		require.NoError(t, err)

		err = w.Start(context.Background())
		assert.ErrorIs(t, err, queue.ErrStartFailed)
		assert.ErrorIs(t, err, queue.ErrUnknownHandlerPath)
		client.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("initialize failure closes the other handlers", func(t *testing.T) {
		t.Parallel()

		good := &closingHandler{countingHandler: countingHandler{typ: "good"}}
		bad := &closingHandler{countingHandler: countingHandler{typ: "bad"}, initErr: errors.New("no database")}
		reg := registryWith(t, map[string]queue.Factory{
			"good": staticFactory(good),
			"bad":  staticFactory(bad),
		})

		client := new(MockClient)
		cfg := queue.WorkerConfig{Tubes: []string{"a"}, Handlers: []queue.HandlerSpec{{Path: "good"}, {Path: "bad"}}}
		w, err := queue.NewWorker(cfg, reg, queue.WithClient(client))
		require.NoError(t, err)

		err = w.Start(context.Background())
		var startErr *queue.StartError
		require.ErrorAs(t, err, &startErr)
		assert.Equal(t, queue.PhaseInitialize, startErr.Phase)
		assert.True(t, good.isClosed())
		client.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("factory error", func(t *testing.T) {
		t.Parallel()

		reg := registryWith(t, map[string]queue.Factory{
			"test": func(opts queue.Options, _ *slog.Logger) (queue.Handler, error) {
				_, err := queue.NewBase("x", opts, greetConfigSchema, nil, nil)
				return nil, err
			},
		})
		w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(new(MockClient)))
		require.NoError(t, err)

		err = w.Start(context.Background())
		assert.ErrorIs(t, err, queue.ErrStartFailed)
		assert.ErrorIs(t, err, queue.ErrConfigurationInvalid)
	})

	t.Run("duplicate type keeps the later handler", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		first := &countingHandler{typ: "*", verdict: queue.Delete()}
		second := &countingHandler{typ: "*", verdict: queue.Delete()}
		reg := registryWith(t, map[string]queue.Factory{
			"first":  staticFactory(first),
			"second": staticFactory(second),
		})
		log, logs := newTestLogger()

		cfg := queue.WorkerConfig{Tubes: []string{"a"}, Handlers: []queue.HandlerSpec{{Path: "first"}, {Path: "second"}}}
		startMemoryWorker(t, server, cfg, reg, queue.WithWorkerLogger(log))

		id := server.Put("a", jobBody(t, "anything", nil), beanstalk.DefaultPutOptions())
		waitState(t, server, id, "")

		assert.Empty(t, first.processed())
		assert.Len(t, second.processed(), 1)
		assert.Contains(t, logs.String(), "duplicate handler type, later entry wins")
	})
}

func TestWorker_Jobs(t *testing.T) {
	t.Parallel()

	t.Run("rejected bodies are buried", func(t *testing.T) {
		t.Parallel()

		bodies := map[string][]byte{
			"not json":        []byte("{oops"),
			"not an object":   []byte(`[1, 2]`),
			"null":            []byte(`null`),
			"missing type":    []byte(`{"payload": {}}`),
			"non string type": []byte(`{"type": 5}`),
			"no handler":      []byte(`{"type": "unknown"}`),
		}
		for name, body := range bodies {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				server := beanstalk.NewMemoryServer()
				h := &countingHandler{typ: "known", verdict: queue.Delete()}
				reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
				log, logs := newTestLogger()
				startMemoryWorker(t, server, singleWorker("a"), reg, queue.WithWorkerLogger(log))

				id := server.Put("a", body, beanstalk.DefaultPutOptions())
				waitState(t, server, id, beanstalk.StateBuried)

				assert.Empty(t, h.processed())
				assert.Positive(t, countLevel(logs.String(), "warning"))
				assert.Zero(t, countLevel(logs.String(), "error"))
			})
		}
	})

	t.Run("exact type beats wildcard", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		exact := &countingHandler{typ: "email", verdict: queue.Delete()}
		wildcard := &countingHandler{typ: "*", verdict: queue.Delete()}
		reg := registryWith(t, map[string]queue.Factory{
			"wild":  staticFactory(wildcard),
			"exact": staticFactory(exact),
		})
		cfg := queue.WorkerConfig{Tubes: []string{"a"}, Handlers: []queue.HandlerSpec{{Path: "wild"}, {Path: "exact"}}}
		startMemoryWorker(t, server, cfg, reg)

		emailID := server.Put("a", jobBody(t, "email", map[string]any{"to": "x"}), beanstalk.DefaultPutOptions())
		otherID := server.Put("a", jobBody(t, "sms", nil), beanstalk.DefaultPutOptions())
		waitState(t, server, emailID, "")
		waitState(t, server, otherID, "")

		require.Len(t, exact.processed(), 1)
		assert.Equal(t, processed{ID: emailID, Type: "email", Payload: map[string]any{"to": "x"}}, exact.processed()[0])
		require.Len(t, wildcard.processed(), 1)
		assert.Equal(t, processed{ID: otherID, Type: "sms"}, wildcard.processed()[0])
	})

	t.Run("invalid payload is buried without processing", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{
			typ:     "email",
			verdict: queue.Delete(),
			schema:  schema.MustCompile(`{"type": "object", "required": ["to"]}`),
		}
		rec := &recorder{}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		startMemoryWorker(t, server, singleWorker("a"), reg, queue.WithObserver(rec.observe))

		invalid := server.Put("a", jobBody(t, "email", map[string]any{"cc": "x"}), beanstalk.DefaultPutOptions())
		waitState(t, server, invalid, beanstalk.StateBuried)
		assert.Empty(t, h.processed())

		valid := server.Put("a", jobBody(t, "email", map[string]any{"to": "x"}), beanstalk.DefaultPutOptions())
		waitState(t, server, valid, "")
		assert.Len(t, h.processed(), 1)

		assert.Equal(t, []queue.EventName{
			queue.EventJobReserved, queue.EventJobValidating, queue.EventJobInvalid,
			queue.EventJobBurying, queue.EventJobBuried,
			queue.EventJobReserved, queue.EventJobValidating, queue.EventJobValid,
			queue.EventJobHandling, queue.EventJobHandled,
			queue.EventJobDeleting, queue.EventJobDeleted,
		}, rec.jobNames())

		e, ok := rec.find(queue.EventJobInvalid)
		require.True(t, ok)
		assert.ErrorIs(t, e.Err, queue.ErrInvalidPayload)
		assert.ErrorIs(t, e.Err, schema.ErrInvalidDocument)
	})

	t.Run("missing payload is nil", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "ping", verdict: queue.Delete()}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		startMemoryWorker(t, server, singleWorker("a"), reg)

		id := server.Put("a", []byte(`{"type": "ping"}`), beanstalk.DefaultPutOptions())
		waitState(t, server, id, "")
		require.Len(t, h.processed(), 1)
		assert.Nil(t, h.processed()[0].Payload)
	})

	t.Run("release verdict requeues with options", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "*", verdict: queue.ReleaseWithPriority(3, time.Hour)}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		startMemoryWorker(t, server, singleWorker("a"), reg)

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.DefaultPutOptions())
		waitState(t, server, id, beanstalk.StateDelayed)

		info, _ := server.Job(id)
		assert.Equal(t, uint32(3), info.Priority)
		assert.Equal(t, 1, info.Releases)
	})

	t.Run("zero verdict buries", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "*"}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		startMemoryWorker(t, server, singleWorker("a"), reg)

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.DefaultPutOptions())
		waitState(t, server, id, beanstalk.StateBuried)
	})

	t.Run("processing error leaves the job reserved", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "*", verdict: queue.Delete(), err: errors.New("smtp down")}
		rec := &recorder{}
		log, logs := newTestLogger()
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		startMemoryWorker(t, server, singleWorker("a"), reg, queue.WithObserver(rec.observe), queue.WithWorkerLogger(log))

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.PutOptions{Priority: 1, TTR: time.Hour})
		require.Eventually(t, func() bool { return len(h.processed()) == 1 }, 3*time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			_, ok := rec.find(queue.EventJobFailed)
			return ok
		}, 3*time.Second, 5*time.Millisecond)

		info, ok := server.Job(id)
		require.True(t, ok)
		assert.Equal(t, beanstalk.StateReserved, info.State)
		assert.Zero(t, info.Buries)
		assert.Zero(t, info.Releases)

		e, _ := rec.find(queue.EventJobFailed)
		assert.ErrorIs(t, e.Err, queue.ErrProcessingFailed)
		assert.Contains(t, logs.String(), "job processing failed")
		assert.Equal(t, 1, countLevel(logs.String(), "error"))
	})

	t.Run("panic is recovered and the loop continues", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "boom", panics: true}
		ok := &countingHandler{typ: "ok", verdict: queue.Delete()}
		rec := &recorder{}
		reg := registryWith(t, map[string]queue.Factory{
			"boom": staticFactory(h),
			"ok":   staticFactory(ok),
		})
		cfg := queue.WorkerConfig{Tubes: []string{"a"}, Handlers: []queue.HandlerSpec{{Path: "boom"}, {Path: "ok"}}}
		startMemoryWorker(t, server, cfg, reg, queue.WithObserver(rec.observe))

		server.Put("a", jobBody(t, "boom", nil), beanstalk.PutOptions{Priority: 1, TTR: time.Hour})
		next := server.Put("a", jobBody(t, "ok", nil), beanstalk.PutOptions{Priority: 2, TTR: time.Hour})
		waitState(t, server, next, "")

		e, found := rec.find(queue.EventJobFailed)
		require.True(t, found)
		assert.ErrorIs(t, e.Err, queue.ErrHandlerPanic)
	})

	t.Run("handler logs carry the job id", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		log, logs := newTestLogger()
		reg := registryWith(t, map[string]queue.Factory{
			"test": func(_ queue.Options, l *slog.Logger) (queue.Handler, error) {
				return queue.NewHandlerFunc("*", nil, func(ctx context.Context, _ any, _ uint64, _ string) (queue.Verdict, error) {
					l.InfoContext(ctx, "handled by test")
					return queue.Delete(), nil
				}), nil
			},
		})
		startMemoryWorker(t, server, singleWorker("a"), reg, queue.WithWorkerLogger(log))

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.DefaultPutOptions())
		waitState(t, server, id, "")

		var line string
		for _, l := range strings.Split(logs.String(), "\n") {
			if strings.Contains(l, "handled by test") {
				line = l
			}
		}
		assert.Contains(t, line, `"job_id":`)
		assert.Contains(t, line, `"job_type":"x"`)
		assert.Contains(t, line, `"path":"test"`)
	})
}

func TestWorker_Verdicts(t *testing.T) {
	t.Parallel()

	pri := uint32(9)
	tests := []struct {
		name    string
		verdict queue.Verdict
		expect  func(c *MockClient)
		called  string
	}{
		{
			name:    "delete",
			verdict: queue.Delete(),
			expect:  func(c *MockClient) { c.On("Delete", mock.Anything, uint64(7)).Return(nil).Once() },
			called:  "Delete",
		},
		{
			name:    "release",
			verdict: queue.ReleaseWithPriority(9, 5*time.Second),
			expect: func(c *MockClient) {
				c.On("Release", mock.Anything, uint64(7), beanstalk.ReleaseOptions{Priority: &pri, Delay: 5 * time.Second}).Return(nil).Once()
			},
			called: "Release",
		},
		{
			name:    "bury",
			verdict: queue.Bury(),
			expect:  func(c *MockClient) { c.On("Bury", mock.Anything, uint64(7)).Return(nil).Once() },
			called:  "Bury",
		},
		{
			name:    "unknown action",
			verdict: queue.Verdict{Action: queue.Action(42)},
			expect:  func(c *MockClient) { c.On("Bury", mock.Anything, uint64(7)).Return(nil).Once() },
			called:  "Bury",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := new(MockClient)
			client.On("Connect", mock.Anything, mock.Anything).Return(nil)
			client.On("Watch", mock.Anything, mock.Anything).Return(nil)
			client.On("Ignore", mock.Anything, mock.Anything).Return(nil)
			client.On("ReserveWithTimeout", mock.Anything, queue.DefaultReserveTimeout).
				Return(&beanstalk.Job{ID: 7, Body: jobBody(t, "x", nil)}, nil).Once()
			client.expectIdle()
			client.On("Disconnect", mock.Anything).Return(nil)

			var done atomic.Bool
			tt.expect(client)
			for _, c := range client.ExpectedCalls {
				if c.Method == tt.called {
					c.Run(func(mock.Arguments) { done.Store(true) })
				}
			}

			reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*", verdict: tt.verdict})})
			w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(client))
			require.NoError(t, err)
			require.NoError(t, w.Start(context.Background()))

			require.Eventually(t, done.Load, 3*time.Second, 5*time.Millisecond)
			require.NoError(t, w.Stop(context.Background()))

			client.AssertExpectations(t)
			for _, m := range []string{"Delete", "Release", "Bury"} {
				if m != tt.called {
					client.AssertNumberOfCalls(t, m, 0)
				}
			}
		})
	}
}

func TestWorker_Reserve(t *testing.T) {
	t.Parallel()

	t.Run("idle timeout is not an error", func(t *testing.T) {
		t.Parallel()

		var reserves atomic.Int32
		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(nil)
		client.On("Watch", mock.Anything, mock.Anything).Return(nil)
		client.On("Ignore", mock.Anything, mock.Anything).Return(nil)
		client.On("ReserveWithTimeout", mock.Anything, 5*time.Millisecond).
			Run(func(mock.Arguments) {
				reserves.Add(1)
				time.Sleep(time.Millisecond)
			}).
			Return(nil, beanstalk.ErrTimedOut)
		client.On("Disconnect", mock.Anything).Return(nil)

		log, logs := newTestLogger()
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		w, err := queue.NewWorker(singleWorker("a"), reg,
			queue.WithClient(client),
			queue.WithReserveTimeout(5*time.Millisecond),
			queue.WithWorkerLogger(log))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		require.Eventually(t, func() bool { return reserves.Load() >= 3 }, 3*time.Second, time.Millisecond)
		require.NoError(t, w.Stop(context.Background()))

		assert.Zero(t, countLevel(logs.String(), "error"))
	})

	t.Run("other reserve errors are logged", func(t *testing.T) {
		t.Parallel()

		var reserves atomic.Int32
		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(nil)
		client.On("Watch", mock.Anything, mock.Anything).Return(nil)
		client.On("Ignore", mock.Anything, mock.Anything).Return(nil)
		client.On("ReserveWithTimeout", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { reserves.Add(1) }).
			Return(nil, errors.New("broken pipe")).Once()
		client.expectIdle()
		client.On("Disconnect", mock.Anything).Return(nil)

		log, logs := newTestLogger()
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(client), queue.WithWorkerLogger(log))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		require.Eventually(t, func() bool { return strings.Contains(logs.String(), "failed to reserve job") }, 3*time.Second, time.Millisecond)
		assert.ErrorContains(t, w.ReserveError(), "broken pipe")
		require.NoError(t, w.Stop(context.Background()))

		assert.Equal(t, 1, countLevel(logs.String(), "error"))
	})
}

func TestWorker_Stop(t *testing.T) {
	t.Parallel()

	t.Run("in-flight job completes with its verdict", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &countingHandler{typ: "*", verdict: queue.Delete(), block: make(chan struct{})}
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		w, err := queue.NewWorker(singleWorker("a"), reg,
			queue.WithClient(server.Client()),
			queue.WithReserveTimeout(20*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.PutOptions{TTR: time.Hour})
		waitState(t, server, id, beanstalk.StateReserved)

		stopped := make(chan error, 1)
		go func() { stopped <- w.Stop(context.Background()) }()

		require.Eventually(t, func() bool { return w.State() == queue.StateStopping }, 3*time.Second, time.Millisecond)
		close(h.block)

		select {
		case err := <-stopped:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("stop did not return")
		}
		_, ok := server.Job(id)
		assert.False(t, ok, "job deleted after stop was requested")
		assert.Equal(t, queue.StateStopped, w.State())
	})

	t.Run("disconnect failure is reported", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("close failed")
		client := new(MockClient)
		client.On("Connect", mock.Anything, mock.Anything).Return(nil)
		client.On("Watch", mock.Anything, mock.Anything).Return(nil)
		client.On("Ignore", mock.Anything, mock.Anything).Return(nil)
		client.expectIdle()
		client.On("Disconnect", mock.Anything).Return(boom)

		h := &closingHandler{countingHandler: countingHandler{typ: "*"}}
		rec := &recorder{}
		log, logs := newTestLogger()
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		w, err := queue.NewWorker(singleWorker("a"), reg,
			queue.WithClient(client),
			queue.WithObserver(rec.observe),
			queue.WithWorkerLogger(log))
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))

		err = w.Stop(context.Background())
		assert.ErrorIs(t, err, queue.ErrStopFailed)
		assert.ErrorIs(t, err, boom)
		assert.True(t, h.isClosed())
		assert.Equal(t, queue.StateStopped, w.State())
		assert.Contains(t, logs.String(), "failed to disconnect")

		e, ok := rec.find(queue.EventStopped)
		require.True(t, ok)
		assert.ErrorIs(t, e.Err, boom)

		assert.NoError(t, w.Stop(context.Background()), "second stop is a no-op")
	})

	t.Run("returns at the caller deadline and defers cleanup", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		h := &inFlightHandler{release: make(chan struct{})}
		release := sync.OnceFunc(func() { close(h.release) })
		t.Cleanup(release)

		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(h)})
		w, err := queue.NewWorker(singleWorker("a"), reg,
			queue.WithClient(server.Client()),
			queue.WithReserveTimeout(20*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))

		id := server.Put("a", jobBody(t, "x", nil), beanstalk.PutOptions{TTR: time.Hour})
		waitState(t, server, id, beanstalk.StateReserved)
		require.Eventually(t, h.active.Load, 3*time.Second, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		start := time.Now()
		err = w.Stop(ctx)
		elapsed := time.Since(start)

		assert.ErrorIs(t, err, queue.ErrStopFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, elapsed, time.Second, "stop waited past its deadline")
		assert.Equal(t, queue.StateStopped, w.State())
		assert.False(t, h.closed.Load(), "handler closed while its job was running")

		release()

		waitState(t, server, id, "")
		require.Eventually(t, h.closed.Load, 3*time.Second, time.Millisecond)
		assert.False(t, h.closedEarly.Load())
	})

	t.Run("run stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		server := beanstalk.NewMemoryServer()
		reg := registryWith(t, map[string]queue.Factory{"test": staticFactory(&countingHandler{typ: "*"})})
		client := server.Client()
		w, err := queue.NewWorker(singleWorker("a"), reg, queue.WithClient(client), queue.WithReserveTimeout(10*time.Millisecond))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx)() }()

		require.Eventually(t, func() bool { return w.State().Running() }, 3*time.Second, time.Millisecond)
		assert.Equal(t, []string{"a"}, client.Watched())
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("run did not return")
		}
		assert.Equal(t, queue.StateStopped, w.State())
	})
}

func TestWorkerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", queue.StateReady.String())
	assert.Equal(t, "start_error", queue.StateStartError.String())
	assert.Equal(t, "unknown", queue.WorkerState(99).String())
	assert.True(t, queue.StateProcessing.Running())
	assert.False(t, queue.StateStopping.Running())
}
