package logger

import (
	"context"
	"log/slog"
)

// SplitHandler routes records below a threshold to one handler and records at
// or above it to another. The default logger uses it to send debug and info
// to stdout and everything from notice up to stderr.
type SplitHandler struct {
	low       slog.Handler
	high      slog.Handler
	threshold slog.Level
}

// NewSplitHandler creates a handler that sends records with level < threshold
// to low and the rest to high.
func NewSplitHandler(low, high slog.Handler, threshold slog.Level) *SplitHandler {
	return &SplitHandler{low: low, high: high, threshold: threshold}
}

func (h *SplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.threshold {
		return h.low.Enabled(ctx, level)
	}
	return h.high.Enabled(ctx, level)
}

func (h *SplitHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level < h.threshold {
		return h.low.Handle(ctx, rec)
	}
	return h.high.Handle(ctx, rec)
}

func (h *SplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SplitHandler{
		low:       h.low.WithAttrs(attrs),
		high:      h.high.WithAttrs(attrs),
		threshold: h.threshold,
	}
}

func (h *SplitHandler) WithGroup(name string) slog.Handler {
	return &SplitHandler{
		low:       h.low.WithGroup(name),
		high:      h.high.WithGroup(name),
		threshold: h.threshold,
	}
}

// Discard returns a logger that writes nothing.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
