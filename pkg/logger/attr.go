package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// WorkerID records the worker identifier under the key "worker_id".
func WorkerID(id string) slog.Attr {
	return slog.String("worker_id", id)
}

// JobID records the queue job identifier under the key "job_id".
func JobID(id uint64) slog.Attr {
	return slog.Uint64("job_id", id)
}

// JobType records the job type under the key "job_type".
func JobType(t string) slog.Attr {
	return slog.String("job_type", t)
}

// Tube records a tube name under the key "tube".
func Tube(name string) slog.Attr {
	return slog.String("tube", name)
}

// Tubes records a list of tube names under the key "tubes".
func Tubes(names []string) slog.Attr {
	return slog.Any("tubes", names)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Handler records the handler name under the key "handler".
func Handler(name string) slog.Attr {
	return slog.String("handler", name)
}
