package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/tubeworker/pkg/logger"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

// Record is what storage handlers persist for every job.
type Record struct {
	JobID      uint64    `json:"job_id"`
	JobType    string    `json:"job_type"`
	Payload    any       `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// JSON encodes the record.
func (r Record) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Sink stores job records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// OpenFunc opens a sink. It is called once from the handler's Initialize.
type OpenFunc func(ctx context.Context) (Sink, error)

// SinkHandler writes every job it receives to a Sink and deletes it.
// A failed write is returned as an error, leaving the job reserved until
// its time-to-run expires, unless on_failure names a verdict.
type SinkHandler struct {
	*queue.Base

	open      OpenFunc
	onFailure *queue.Verdict
	now       func() time.Time

	mu   sync.RWMutex
	sink Sink
}

// NewSinkHandler builds a handler around open. base carries the type and
// payload schema; onFailure may be nil.
func NewSinkHandler(base *queue.Base, open OpenFunc, onFailure *queue.Verdict) *SinkHandler {
	return &SinkHandler{
		Base:      base,
		open:      open,
		onFailure: onFailure,
		now:       time.Now,
	}
}

// Initialize opens the sink.
func (h *SinkHandler) Initialize(ctx context.Context) error {
	sink, err := h.open(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.sink = sink
	h.mu.Unlock()
	return nil
}

// Close closes the sink opened by Initialize. Calling it twice is a no-op.
func (h *SinkHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	sink := h.sink
	h.sink = nil
	h.mu.Unlock()

	if sink == nil {
		return nil
	}
	return sink.Close(ctx)
}

func (h *SinkHandler) Process(ctx context.Context, payload any, id uint64, jobType string) (queue.Verdict, error) {
	h.mu.RLock()
	sink := h.sink
	h.mu.RUnlock()
	if sink == nil {
		return queue.Verdict{}, ErrSinkNotOpen
	}

	rec := Record{JobID: id, JobType: jobType, Payload: payload, ReceivedAt: h.now().UTC()}
	if err := sink.Write(ctx, rec); err != nil {
		err = errors.Join(ErrWriteFailed, err)
		if h.onFailure == nil {
			return queue.Verdict{}, err
		}
		h.Logger().WarnContext(ctx, "job write failed",
			logger.Error(err),
			slog.String("verdict", h.onFailure.Action.String()),
		)
		return *h.onFailure, nil
	}

	h.Logger().DebugContext(ctx, "job stored")
	return queue.Delete(), nil
}
