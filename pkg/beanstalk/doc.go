// Package beanstalk provides the queue transport used by tubeworker workers.
//
// Client is the narrow interface a worker consumes: connect, watch and
// ignore tubes, reserve with a timeout, then delete, release or bury the
// reserved job. Two implementations ship with the package:
//
//   - Conn talks to a beanstalkd server over TCP using
//     github.com/beanstalkd/go-beanstalk.
//   - MemoryServer and MemoryClient keep jobs in process. They are meant
//     for tests and local development.
//
// # Usage
//
//	c := beanstalk.NewConn(beanstalk.WithDialTimeout(3 * time.Second))
//	if err := c.Connect(ctx, beanstalk.Address{Host: "127.0.0.1", Port: 11300}); err != nil {
//	    return err
//	}
//	defer c.Disconnect(ctx)
//
//	_ = c.Watch(ctx, "emails")
//	_ = c.Ignore(ctx, beanstalk.DefaultTube)
//
//	job, err := c.ReserveWithTimeout(ctx, 10*time.Second)
//	if errors.Is(err, beanstalk.ErrTimedOut) {
//	    // nothing to do
//	}
//
// ReserveWithTimeout returns ErrTimedOut when no job became available. An
// idle reserve is the normal state of a quiet queue and is not a failure.
package beanstalk
