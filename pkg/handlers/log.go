package handlers

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/tubeworker/pkg/logger"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

var logSchema = configSchema(map[string]any{
	"level": map[string]any{
		"type": "string",
		"enum": []any{"debug", "info", "notice", "warn", "warning", "error", "critical", "alert", "emergency"},
	},
	"message": map[string]any{"type": "string", "minLength": 1},
})

type logHandler struct {
	*queue.Base
	level   slog.Level
	message string
}

// Log writes every payload to the worker log and deletes the job.
// Options: "level" (info by default) and "message".
func Log(opts queue.Options, log *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, logSchema, log)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(opts.String("level", "info"))
	if err != nil {
		return nil, optionError("level", "enum", err.Error())
	}
	return &logHandler{
		Base:    base,
		level:   level,
		message: opts.String("message", "job received"),
	}, nil
}

func (h *logHandler) Process(ctx context.Context, payload any, _ uint64, _ string) (queue.Verdict, error) {
	h.Logger().Log(ctx, h.level, h.message, slog.Any("payload", payload))
	return queue.Delete(), nil
}
