package beanstalk

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultHost is the loopback address beanstalkd listens on out of the box.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the standard beanstalkd port.
	DefaultPort = 11300

	// DefaultTube is watched automatically by every new connection.
	DefaultTube = "default"

	// DefaultPriority is used when a job is put without an explicit priority.
	DefaultPriority uint32 = 1024

	// DefaultTTR is the time-to-run given to jobs put without an explicit TTR.
	DefaultTTR = time.Minute
)

// Address identifies a beanstalkd server.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Job is a reserved job as returned by the queue.
type Job struct {
	ID   uint64
	Body []byte
}

// ReleaseOptions controls how a reserved job is put back into its tube.
type ReleaseOptions struct {
	// Priority overrides the job's priority. Nil keeps the current one.
	Priority *uint32
	// Delay postpones the job before it becomes ready again.
	Delay time.Duration
}

// Client is the narrow queue transport a worker consumes.
// A Client serves a single worker; implementations need not support
// concurrent reservations, but Disconnect may be called from another
// goroutine to interrupt a pending reservation.
type Client interface {
	// Connect opens the connection to the server.
	Connect(ctx context.Context, addr Address) error

	// Watch adds a tube to the watch list.
	Watch(ctx context.Context, tube string) error

	// Ignore removes a tube from the watch list.
	Ignore(ctx context.Context, tube string) error

	// ReserveWithTimeout waits up to timeout for a job from any watched tube.
	// It returns ErrTimedOut when no job became available.
	ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*Job, error)

	// Delete removes a job permanently.
	Delete(ctx context.Context, id uint64) error

	// Release puts a reserved job back into the ready (or delayed) queue.
	Release(ctx context.Context, id uint64, opts ReleaseOptions) error

	// Bury moves a reserved job to the buried list for manual inspection.
	Bury(ctx context.Context, id uint64) error

	// Disconnect closes the connection.
	Disconnect(ctx context.Context) error
}

// Producer puts jobs into a tube.
type Producer interface {
	Put(ctx context.Context, tube string, body []byte, opts PutOptions) (uint64, error)
}

// PutOptions controls how a new job is enqueued.
type PutOptions struct {
	Priority uint32
	Delay    time.Duration
	TTR      time.Duration
}

// DefaultPutOptions returns the options beanstalkd clients conventionally use.
func DefaultPutOptions() PutOptions {
	return PutOptions{Priority: DefaultPriority, TTR: DefaultTTR}
}

// Factory creates an unconnected Client. Each worker gets its own.
type Factory func() Client
