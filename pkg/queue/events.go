package queue

import "time"

// EventName identifies a lifecycle or job phase event.
type EventName string

// Worker and runner lifecycle events.
const (
	EventStarting     EventName = "starting"
	EventStarted      EventName = "started"
	EventInitializing EventName = "initializing"
	EventInitialized  EventName = "initialized"
	EventConnecting   EventName = "connecting"
	EventConnected    EventName = "connected"
	EventWatching     EventName = "watching"
	EventIgnoring     EventName = "ignoring"
	EventReady        EventName = "ready"
	EventStartError   EventName = "start_error"
	EventStopping     EventName = "stopping"
	EventStopped      EventName = "stopped"
)

// Job phase events, emitted in order for every reserved job.
const (
	EventJobReserving  EventName = "job.reserving"
	EventJobReserved   EventName = "job.reserved"
	EventJobValidating EventName = "job.validating"
	EventJobValid      EventName = "job.valid"
	EventJobInvalid    EventName = "job.invalid"
	EventJobHandling   EventName = "job.handling"
	EventJobHandled    EventName = "job.handled"
	EventJobDeleting   EventName = "job.deleting"
	EventJobDeleted    EventName = "job.deleted"
	EventJobReleasing  EventName = "job.releasing"
	EventJobReleased   EventName = "job.released"
	EventJobBurying    EventName = "job.burying"
	EventJobBuried     EventName = "job.buried"
	EventJobFailed     EventName = "job.failed"
)

// Event sources.
const (
	SourceWorker = "worker"
	SourceRunner = "runner"
)

// Event describes something that happened in a worker or the runner.
// Fields that do not apply to an event are zero.
type Event struct {
	Name     EventName
	Source   string
	WorkerID string
	JobID    uint64
	JobType  string
	Tube     string
	Address  string
	Err      error
	Duration time.Duration
	Time     time.Time
}

// Observer receives events. Job events of one worker are delivered
// synchronously on that worker's goroutine, in order. An Observer shared by
// several workers must be safe for concurrent use.
type Observer func(Event)

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	list := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return func(e Event) {
		for _, o := range list {
			o(e)
		}
	}
}
