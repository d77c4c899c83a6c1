// Package logger builds *slog.Logger instances for tubeworker processes.
//
// A single factory, New, creates a logger configured by Option functions:
//
//   - output format (text or json)
//   - minimum level on an eight-level scale: debug, info, notice, warning,
//     error, critical, alert, emergency
//   - static attributes and environment presets
//   - attributes attached to a context with WithAttrs
//
// By default records below notice are written to stdout and records at
// notice or above to stderr (see SplitHandler). WithOutput collapses both
// streams into one writer.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "tubeworker"),
//	    logger.WithLevel(logger.LevelNotice),
//	)
//
//	ctx = logger.WithAttrs(ctx, logger.JobID(42))
//	log.InfoContext(ctx, "job handled")
//	logger.Emergency(ctx, log, "runner could not start", logger.Error(err))
//
// Helper constructors in attr.go (Error, JobID, Tube, WorkerID, ...) keep
// attribute names consistent across packages. Error returns an empty
// attribute for a nil error, so no nil check is needed at call sites.
package logger
