// Package httpserver runs the small status server of a worker process.
//
// Server wraps net/http with a context-driven lifecycle: Run listens,
// serves until the context is done and then shuts down gracefully within
// the configured timeout. NewStatusRouter builds a chi router with health
// endpoints and the Prometheus metrics handler.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error {
//	    return srv.Run(ctx, httpserver.NewStatusRouter(log, registry, runner.Healthcheck))
//	})
package httpserver
