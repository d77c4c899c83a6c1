package beanstalk

import (
	"context"
	"slices"
	"sync"
	"time"
)

// JobState is the lifecycle state of a job held by a MemoryServer.
type JobState string

const (
	StateReady    JobState = "ready"
	StateDelayed  JobState = "delayed"
	StateReserved JobState = "reserved"
	StateBuried   JobState = "buried"
)

// JobInfo is a snapshot of a job held by a MemoryServer.
type JobInfo struct {
	ID       uint64
	Tube     string
	Body     []byte
	Priority uint32
	State    JobState
	Releases int
	Buries   int
}

type memoryJob struct {
	id       uint64
	tube     string
	body     []byte
	priority uint32
	ttr      time.Duration
	buried   bool
	readyAt  time.Time
	owner    *MemoryClient
	deadline time.Time
	releases int
	buries   int
}

func (j *memoryJob) state(now time.Time) JobState {
	switch {
	case j.buried:
		return StateBuried
	case j.owner != nil && j.deadline.After(now):
		return StateReserved
	case j.readyAt.After(now):
		return StateDelayed
	default:
		return StateReady
	}
}

func (j *memoryJob) info(now time.Time) JobInfo {
	return JobInfo{
		ID:       j.id,
		Tube:     j.tube,
		Body:     slices.Clone(j.body),
		Priority: j.priority,
		State:    j.state(now),
		Releases: j.releases,
		Buries:   j.buries,
	}
}

// MemoryServer is an in-process beanstalkd stand-in for tests and local runs.
// It keeps the queue semantics workers rely on: per-tube ready queues ordered
// by priority then id, delayed jobs, time-to-run expiry of reservations and
// the buried list. Jobs reserved by a client return to ready when it
// disconnects.
type MemoryServer struct {
	mu     sync.Mutex
	nextID uint64
	jobs   map[uint64]*memoryJob
	// changed is closed and replaced on every state change to wake reservers.
	changed chan struct{}

	connectErr error
}

// NewMemoryServer creates an empty server.
func NewMemoryServer() *MemoryServer {
	return &MemoryServer{
		jobs:    make(map[uint64]*memoryJob),
		changed: make(chan struct{}),
	}
}

// Client returns a new unconnected client of this server.
func (s *MemoryServer) Client() *MemoryClient {
	return &MemoryClient{server: s}
}

// Factory returns a Factory producing clients of this server.
func (s *MemoryServer) Factory() Factory {
	return func() Client {
		return s.Client()
	}
}

// RefuseConnections makes subsequent Connect calls fail with err. Nil accepts them again.
func (s *MemoryServer) RefuseConnections(err error) {
	s.mu.Lock()
	s.connectErr = err
	s.mu.Unlock()
}

// Put enqueues body into tube and returns the new job id.
func (s *MemoryServer) Put(tube string, body []byte, opts PutOptions) uint64 {
	if opts.TTR <= 0 {
		opts.TTR = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.jobs[s.nextID] = &memoryJob{
		id:       s.nextID,
		tube:     tube,
		body:     slices.Clone(body),
		priority: opts.Priority,
		ttr:      opts.TTR,
		readyAt:  time.Now().Add(opts.Delay),
	}
	s.notifyLocked()
	return s.nextID
}

// Job returns a snapshot of the job with the given id. Deleted jobs are not found.
func (s *MemoryServer) Job(id uint64) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return j.info(time.Now()), true
}

// Jobs returns snapshots of every job in the given state, ordered by id.
func (s *MemoryServer) Jobs(state JobState) []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []JobInfo
	for _, j := range s.jobs {
		if j.state(now) == state {
			out = append(out, j.info(now))
		}
	}
	slices.SortFunc(out, func(a, b JobInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of jobs that have not been deleted.
func (s *MemoryServer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Kick moves up to n buried jobs of tube back to ready and returns how many moved.
func (s *MemoryServer) Kick(tube string, n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kicked := 0
	for _, j := range s.jobs {
		if kicked >= n {
			break
		}
		if j.tube == tube && j.buried {
			j.buried = false
			j.readyAt = time.Time{}
			kicked++
		}
	}
	if kicked > 0 {
		s.notifyLocked()
	}
	return kicked
}

func (s *MemoryServer) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// claimLocked reserves the best ready job in tubes for c. When nothing is
// ready it returns the earliest time a job may become ready, or zero.
func (s *MemoryServer) claimLocked(c *MemoryClient, tubes []string, now time.Time) (*memoryJob, time.Time) {
	var best *memoryJob
	var wake time.Time

	for _, j := range s.jobs {
		if j.buried || !slices.Contains(tubes, j.tube) {
			continue
		}
		if j.owner != nil {
			if j.deadline.After(now) {
				wake = earliest(wake, j.deadline)
				continue
			}
			j.owner = nil
		}
		if j.readyAt.After(now) {
			wake = earliest(wake, j.readyAt)
			continue
		}
		if best == nil || j.priority < best.priority ||
			(j.priority == best.priority && j.id < best.id) {
			best = j
		}
	}

	if best == nil {
		return nil, wake
	}
	best.owner = c
	best.deadline = now.Add(best.ttr)
	return best, time.Time{}
}

// ownedLocked returns the job reserved by c with the given id.
func (s *MemoryServer) ownedLocked(c *MemoryClient, id uint64) (*memoryJob, bool) {
	j, ok := s.jobs[id]
	if !ok || j.buried || j.owner != c || !j.deadline.After(time.Now()) {
		return nil, false
	}
	return j, true
}

// releaseAllLocked returns the jobs reserved by c to ready and wakes pending
// reservations so they observe the disconnect.
func (s *MemoryServer) releaseAllLocked(c *MemoryClient) {
	for _, j := range s.jobs {
		if j.owner == c {
			j.owner = nil
		}
	}
	s.notifyLocked()
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || b.Before(a) {
		return b
	}
	return a
}

// MemoryClient is a Client connected to a MemoryServer.
type MemoryClient struct {
	server *MemoryServer

	mu        sync.Mutex
	connected bool
	addr      Address
	watched   []string
}

var _ Client = (*MemoryClient)(nil)

func (c *MemoryClient) Connect(ctx context.Context, addr Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.server.mu.Lock()
	refuse := c.server.connectErr
	c.server.mu.Unlock()
	if refuse != nil {
		return refuse
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return ErrAlreadyConnected
	}
	c.connected = true
	c.addr = addr
	c.watched = []string{DefaultTube}
	return nil
}

// Address returns the address passed to Connect.
func (c *MemoryClient) Address() Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Watched returns the watch list in the order tubes were added.
func (c *MemoryClient) Watched() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.watched)
}

func (c *MemoryClient) Watch(_ context.Context, tube string) error {
	if tube == "" {
		return ErrInvalidTubeName
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if !slices.Contains(c.watched, tube) {
		c.watched = append(c.watched, tube)
	}
	return nil
}

func (c *MemoryClient) Ignore(_ context.Context, tube string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	i := slices.Index(c.watched, tube)
	if i < 0 {
		return nil
	}
	if len(c.watched) == 1 {
		return ErrNotIgnored
	}
	c.watched = slices.Delete(c.watched, i, i+1)
	return nil
}

func (c *MemoryClient) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*Job, error) {
	deadline := time.Now().Add(timeout)
	s := c.server

	for {
		tubes, err := c.tubes()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		s.mu.Lock()
		job, wake := s.claimLocked(c, tubes, now)
		changed := s.changed
		s.mu.Unlock()

		if job != nil {
			return &Job{ID: job.id, Body: slices.Clone(job.body)}, nil
		}
		if !now.Before(deadline) {
			return nil, ErrTimedOut
		}

		wait := deadline.Sub(now)
		if !wake.IsZero() && wake.Sub(now) < wait {
			wait = wake.Sub(now)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-changed:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (c *MemoryClient) Delete(_ context.Context, id uint64) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || (j.owner != nil && j.owner != c && j.deadline.After(time.Now())) {
		return ErrNotFound
	}
	delete(s.jobs, id)
	s.notifyLocked()
	return nil
}

func (c *MemoryClient) Release(_ context.Context, id uint64, opts ReleaseOptions) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.ownedLocked(c, id)
	if !ok {
		return ErrNotFound
	}
	if opts.Priority != nil {
		j.priority = *opts.Priority
	}
	j.owner = nil
	j.readyAt = time.Now().Add(opts.Delay)
	j.releases++
	s.notifyLocked()
	return nil
}

func (c *MemoryClient) Bury(_ context.Context, id uint64) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.ownedLocked(c, id)
	if !ok {
		return ErrNotFound
	}
	j.owner = nil
	j.buried = true
	j.buries++
	s.notifyLocked()
	return nil
}

// Put enqueues body into tube. It implements Producer.
func (c *MemoryClient) Put(_ context.Context, tube string, body []byte, opts PutOptions) (uint64, error) {
	if tube == "" {
		return 0, ErrInvalidTubeName
	}
	if err := c.ensureConnected(); err != nil {
		return 0, err
	}
	return c.server.Put(tube, body, opts), nil
}

// Disconnect closes the client and returns its reserved jobs to ready.
func (c *MemoryClient) Disconnect(_ context.Context) error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.watched = nil
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}
	c.server.mu.Lock()
	c.server.releaseAllLocked(c)
	c.server.mu.Unlock()
	return nil
}

func (c *MemoryClient) tubes() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	return slices.Clone(c.watched), nil
}

func (c *MemoryClient) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}
