// Package queue runs fleets of beanstalkd workers that route jobs to typed
// handlers.
//
// The package is organised around four components:
//
//   - Handler: turns a job payload into a Verdict (delete, release or bury)
//   - Normalize: validates a fleet Config and applies connection defaults
//   - Worker: owns one connection and runs the reserve and dispatch loop
//   - Runner: starts and stops one Worker per configured worker block
//
// Handlers are resolved through a Registry that maps the path used in the
// configuration to a Factory. A handler declares the job type it serves, or
// WildcardType to receive every job without an exact handler.
//
// # Job format
//
// A job body is a JSON object with a string "type" and an optional
// "payload":
//
//	{"type": "send_email", "payload": {"to": "user@example.com"}}
//
// Bodies that are not JSON objects, lack a type or have no matching handler
// are buried, as are payloads that fail the handler's PayloadSchema. A
// handler error or panic is logged and the job is left to its time-to-run;
// no verdict is applied.
//
// # Usage
//
//	reg := queue.NewRegistry()
//	reg.MustRegister("send_email", newSendEmailHandler)
//
//	cfg, err := queue.LoadConfig("tubeworker.yaml")
//	if err != nil {
//	    return err
//	}
//
//	runner, err := queue.NewRunner(cfg, reg, queue.WithRunnerLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(runner.Run(ctx))
//	return g.Wait()
//
// A configuration file looks like:
//
//	connection:
//	  host: 127.0.0.1
//	  port: 11300
//	workers:
//	  - tubes: [emails, emails_priority]
//	    handlers:
//	      - send_email
//	      - path: noop
//	        verdict: delete
//
// # Error Handling
//
// Package-level sentinel errors (ErrConfigurationInvalid, ErrStartFailed,
// ErrStopFailed, ...) can be checked with errors.Is. *ConfigurationError and
// *StartError carry the details.
//
// # Events
//
// Workers and the runner report lifecycle and job phase events to an
// Observer. pkg/metrics builds Prometheus metrics from them.
package queue
