package queue

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	StateCreated WorkerState = iota
	StateInitializing
	StateInitialized
	StateConnecting
	StateConnected
	StateWatching
	StateReady
	StateReserving
	StateProcessing
	StateStopping
	StateStopped
	StateStartError
)

var stateNames = [...]string{
	StateCreated:      "created",
	StateInitializing: "initializing",
	StateInitialized:  "initialized",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateWatching:     "watching",
	StateReady:        "ready",
	StateReserving:    "reserving",
	StateProcessing:   "processing",
	StateStopping:     "stopping",
	StateStopped:      "stopped",
	StateStartError:   "start_error",
}

func (s WorkerState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Running reports whether the worker loop is active.
func (s WorkerState) Running() bool {
	return s == StateReady || s == StateReserving || s == StateProcessing
}
