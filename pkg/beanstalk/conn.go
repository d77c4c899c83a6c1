package beanstalk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	gobeanstalk "github.com/beanstalkd/go-beanstalk"
)

// Conn is a Client backed by a TCP connection to a beanstalkd server.
//
// Connect checks that the peer speaks the protocol. Watch and Ignore are sent
// to the server immediately, so a rejected tube fails the call instead of the
// next reserve. They must not run concurrently with other commands.
type Conn struct {
	dialTimeout time.Duration

	mu   sync.Mutex
	nc   net.Conn
	conn *gobeanstalk.Conn
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithDialTimeout bounds the TCP dial and each start-up command. Zero means
// no timeout beyond the context.
func WithDialTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d >= 0 {
			c.dialTimeout = d
		}
	}
}

// NewConn creates an unconnected network client.
func NewConn(opts ...ConnOption) *Conn {
	c := &Conn{dialTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFactory returns a Factory producing network clients with the given options.
func NewFactory(opts ...ConnOption) Factory {
	return func() Client {
		return NewConn(opts...)
	}
}

func (c *Conn) Connect(ctx context.Context, addr Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	conn := gobeanstalk.NewConn(nc)

	c.setDeadline(ctx, nc)
	_, err = conn.ListTubes()
	_ = nc.SetDeadline(time.Time{})
	if err != nil {
		_ = conn.Close()
		return errors.Join(ErrConnectFailed, fmt.Errorf("%s does not answer as beanstalkd: %w", addr, err))
	}

	c.nc, c.conn = nc, conn
	return nil
}

func (c *Conn) Watch(ctx context.Context, tube string) error {
	if tube == "" {
		return ErrInvalidTubeName
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.exchange(ctx, "watch "+tube, "WATCHING "); err != nil {
		return err
	}
	c.conn.TubeSet.Name[tube] = true
	return nil
}

func (c *Conn) Ignore(ctx context.Context, tube string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	names := c.conn.TubeSet.Name
	if !names[tube] {
		return nil
	}
	if len(names) == 1 {
		return ErrNotIgnored
	}
	if err := c.exchange(ctx, "ignore "+tube, "WATCHING "); err != nil {
		return err
	}
	delete(names, tube)
	return nil
}

// ReserveWithTimeout blocks in the reserve command. The server counts the
// timeout in seconds, so a positive timeout is rounded up to whole seconds.
// Cancelling ctx closes the connection so the call returns promptly; the
// client must be reconnected afterwards.
func (c *Conn) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*Job, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		c.drop(conn)
	})
	id, body, err := conn.TubeSet.Reserve(wholeSeconds(timeout))
	if !stop() {
		return nil, ctx.Err()
	}
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimedOut
		}
		return nil, fmt.Errorf("reserve: %w", err)
	}
	return &Job{ID: id, Body: body}, nil
}

func (c *Conn) Delete(_ context.Context, id uint64) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	return commandError("delete", conn.Delete(id))
}

func (c *Conn) Release(_ context.Context, id uint64, opts ReleaseOptions) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	pri, err := c.priority(conn, id, opts.Priority)
	if err != nil {
		return err
	}
	return commandError("release", conn.Release(id, pri, opts.Delay))
}

func (c *Conn) Bury(_ context.Context, id uint64) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	pri, err := c.priority(conn, id, nil)
	if err != nil {
		return err
	}
	return commandError("bury", conn.Bury(id, pri))
}

// Put enqueues body into tube. It implements Producer.
func (c *Conn) Put(_ context.Context, tube string, body []byte, opts PutOptions) (uint64, error) {
	if tube == "" {
		return 0, ErrInvalidTubeName
	}
	conn, err := c.current()
	if err != nil {
		return 0, err
	}
	t := gobeanstalk.NewTube(conn, tube)
	id, err := t.Put(body, opts.Priority, opts.Delay, opts.TTR)
	if err != nil {
		return 0, commandError("put", err)
	}
	return id, nil
}

// Disconnect closes the connection. Calling it on a closed client is a no-op.
func (c *Conn) Disconnect(_ context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.nc, c.conn = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (c *Conn) current() (*gobeanstalk.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// drop closes conn if it is still the active connection.
func (c *Conn) drop(conn *gobeanstalk.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.nc, c.conn = nil, nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// priority returns override when set, otherwise the job's current priority.
func (c *Conn) priority(conn *gobeanstalk.Conn, id uint64, override *uint32) (uint32, error) {
	if override != nil {
		return *override, nil
	}
	stats, err := conn.StatsJob(id)
	if err != nil {
		return 0, commandError("stats-job", err)
	}
	pri, err := strconv.ParseUint(stats["pri"], 10, 32)
	if err != nil {
		return DefaultPriority, nil
	}
	return uint32(pri), nil
}

// exchange sends one command on the raw connection and checks the reply
// prefix. go-beanstalk would hold watch list changes back until the next
// reserve; the watch and ignore commands it repeats then are idempotent.
func (c *Conn) exchange(ctx context.Context, line, want string) error {
	c.setDeadline(ctx, c.nc)
	defer func() { _ = c.nc.SetDeadline(time.Time{}) }()

	if _, err := io.WriteString(c.nc, line+"\r\n"); err != nil {
		return fmt.Errorf("%s: %w: %w", line, ErrCommandFailed, err)
	}
	reply, err := readLine(c.nc)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", line, ErrCommandFailed, err)
	}
	switch {
	case strings.HasPrefix(reply, want):
		return nil
	case reply == "NOT_IGNORED":
		return ErrNotIgnored
	}
	return fmt.Errorf("%s: %w: server replied %q", line, ErrCommandFailed, reply)
}

// setDeadline bounds the next start-up command by the dial timeout and ctx.
func (c *Conn) setDeadline(ctx context.Context, nc net.Conn) {
	var deadline time.Time
	if c.dialTimeout > 0 {
		deadline = time.Now().Add(c.dialTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = nc.SetDeadline(deadline)
}

const maxReplyLine = 224

// readLine reads one reply line a byte at a time, so nothing after it is
// taken from the stream go-beanstalk reads next.
func readLine(r io.Reader) (string, error) {
	var (
		line []byte
		b    [1]byte
	)
	for len(line) < maxReplyLine {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		line = append(line, b[0])
	}
	return "", errors.New("reply line too long")
}

// wholeSeconds rounds a positive duration up to whole seconds.
func wholeSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

func isTimeout(err error) bool {
	if errors.Is(err, gobeanstalk.ErrTimeout) {
		return true
	}
	var ce gobeanstalk.ConnError
	return errors.As(err, &ce) && errors.Is(ce.Err, gobeanstalk.ErrTimeout)
}

func commandError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce gobeanstalk.ConnError
	if errors.As(err, &ce) && errors.Is(ce.Err, gobeanstalk.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCommandFailed, err)
}
