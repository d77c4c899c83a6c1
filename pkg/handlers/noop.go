package handlers

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

var noopSchema = configSchema(map[string]any{
	"verdict": map[string]any{"type": []any{"string", "array"}},
})

type noopHandler struct {
	*queue.Base
	verdict queue.Verdict
}

// Noop acknowledges jobs without doing any work. The "verdict" option
// picks the answer (delete by default) in any form ResolveVerdict accepts:
//
//	verdict: release
//	verdict: [release, {priority: 10, delay: 30s}]
func Noop(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, noopSchema, logger)
	if err != nil {
		return nil, err
	}

	verdict := queue.Delete()
	if raw, ok := opts["verdict"]; ok {
		verdict = queue.ResolveVerdict(raw)
	}
	return &noopHandler{Base: base, verdict: verdict}, nil
}

func (h *noopHandler) Process(ctx context.Context, payload any, _ uint64, _ string) (queue.Verdict, error) {
	h.Logger().DebugContext(ctx, "job received",
		slog.Any("payload", payload),
		slog.String("verdict", h.verdict.Action.String()),
	)
	return h.verdict, nil
}
