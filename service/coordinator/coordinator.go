// Package coordinator splits the candidates into chunks, hands them out to
// workers and collects their partial results.
//
// Workers pull jobs: they call GetJob until it says there is nothing left.
// A job is leased to the worker that got it; if the lease expires before a
// result arrives the job is handed to the next worker asking. Results are
// keyed by chunk, a chunk reported twice is recorded once.
package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sumprime/sumprime/pkg/logflags"
	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/service/api"
)

var (
	// ErrUnknownChunk is returned for a result whose chunk is not in the plan.
	ErrUnknownChunk = errors.New("unknown chunk")
	// ErrRangeMismatch is returned for a result whose range does not match
	// the range of its chunk.
	ErrRangeMismatch = errors.New("result range does not match chunk")
)

const (
	// DefaultChunks is the default number of chunks.
	DefaultChunks = 100
	// DefaultLease is the default job lease.
	DefaultLease = 5 * time.Minute
	// DefaultRetry is how long workers are told to wait when every
	// remaining chunk is leased.
	DefaultRetry = time.Second
)

// Config describes the plan of a Coordinator.
type Config struct {
	Limit     int64
	Chunks    int
	Lease     time.Duration
	Retry     time.Duration
	StorePath string

	// now is used instead of time.Now if set.
	now func() time.Time
}

type lease struct {
	worker  string
	expires time.Time
}

// Coordinator hands out jobs and records results. It is safe for
// concurrent use.
type Coordinator struct {
	mu sync.Mutex

	config  Config
	plan    []api.Job
	pending []int
	leases  map[int]lease
	workers map[string]bool
	store   *Store

	started, finished time.Time
	done              chan struct{}
	doneOnce          sync.Once

	log logflags.Logger
}

// New creates a coordinator for cfg. Chunks already present in the store
// are not handed out again.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Chunks <= 0 {
		cfg.Chunks = DefaultChunks
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Limit > prime.MaxLimit {
		return nil, fmt.Errorf("limit %d larger than %d", cfg.Limit, prime.MaxLimit)
	}

	ranges := prime.Split(2, cfg.Limit, cfg.Chunks)
	store, err := OpenStore(cfg.StorePath, cfg.Limit, ranges)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		config:  cfg,
		plan:    make([]api.Job, len(ranges)),
		leases:  make(map[int]lease),
		workers: make(map[string]bool),
		store:   store,
		done:    make(chan struct{}),
		log:     logflags.CoordinatorLogger(),
	}
	for i, r := range ranges {
		c.plan[i] = api.Job{ChunkID: i, Lo: r.Lo, Hi: r.Hi}
		if _, ok := store.Get(i); !ok {
			c.pending = append(c.pending, i)
		}
	}
	if logflags.Coordinator() {
		c.log.Debugf("plan: %d chunks below %d, %d pending", len(c.plan), cfg.Limit, len(c.pending))
	}
	c.checkDone(cfg.now())
	return c, nil
}

// Hello registers a worker.
func (c *Coordinator) Hello(workerID string) (limit int64, chunks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[workerID] = true
	if logflags.Coordinator() {
		c.log.Debugf("hello from %s", workerID)
	}
	return c.config.Limit, len(c.plan)
}

// GetJob returns the next job for workerID: a chunk that was never handed
// out, or one whose lease expired.
func (c *Coordinator) GetJob(workerID string) api.JobReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.config.now()

	for len(c.pending) > 0 {
		id := c.pending[0]
		c.pending = c.pending[1:]
		if _, ok := c.store.Get(id); ok {
			continue
		}
		return c.assign(id, workerID, now)
	}

	for id, l := range c.leases {
		if now.After(l.expires) {
			c.log.Warnf("lease of chunk %d by %s expired, reassigning", id, l.worker)
			return c.assign(id, workerID, now)
		}
	}

	if len(c.leases) > 0 {
		return api.JobReply{Wait: true, RetryNanos: int64(c.config.Retry)}
	}
	return api.JobReply{NoJob: true}
}

func (c *Coordinator) assign(id int, workerID string, now time.Time) api.JobReply {
	if c.started.IsZero() {
		c.started = now
	}
	c.leases[id] = lease{worker: workerID, expires: now.Add(c.config.Lease)}
	job := c.plan[id]
	if logflags.Coordinator() {
		c.log.Debugf("chunk %d [%d, %d) leased to %s", id, job.Lo, job.Hi, workerID)
	}
	return api.JobReply{Job: &job}
}

// SubmitResult records the result of a job.
func (c *Coordinator) SubmitResult(r api.PartialResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.ChunkID < 0 || r.ChunkID >= len(c.plan) {
		return fmt.Errorf("%w %d", ErrUnknownChunk, r.ChunkID)
	}
	job := c.plan[r.ChunkID]
	if r.Lo != job.Lo || r.Hi != job.Hi {
		return fmt.Errorf("%w %d: got [%d, %d), want [%d, %d)", ErrRangeMismatch, r.ChunkID, r.Lo, r.Hi, job.Lo, job.Hi)
	}
	now := c.config.now()
	if _, ok := c.store.Get(r.ChunkID); ok {
		delete(c.leases, r.ChunkID)
		if logflags.Coordinator() {
			c.log.Debugf("duplicate result for chunk %d from %s", r.ChunkID, r.WorkerID)
		}
		c.checkDone(now)
		return nil
	}

	r.InsertedAt = now
	if err := c.store.Upsert(r); err != nil {
		// The chunk stays unsolved, hand it out again.
		if _, leased := c.leases[r.ChunkID]; leased {
			delete(c.leases, r.ChunkID)
			c.pending = append(c.pending, r.ChunkID)
		}
		c.log.Errorf("could not record chunk %d from %s: %v", r.ChunkID, r.WorkerID, err)
		return err
	}
	delete(c.leases, r.ChunkID)
	c.checkDone(now)
	return nil
}

// checkDone closes done once every chunk of the plan has a result.
// Must be called with mu held.
func (c *Coordinator) checkDone(now time.Time) {
	for i := range c.plan {
		if _, ok := c.store.Get(i); !ok {
			return
		}
	}
	c.doneOnce.Do(func() {
		c.finished = now
		if logflags.Coordinator() {
			c.log.Debugf("all %d chunks done", len(c.plan))
		}
		close(c.done)
	})
}

// Bye unregisters a worker, its outstanding leases are returned to the
// queue. It returns the number of jobs released.
func (c *Coordinator) Bye(workerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.workers, workerID)
	n := 0
	for id, l := range c.leases {
		if l.worker == workerID {
			delete(c.leases, id)
			c.pending = append(c.pending, id)
			n++
		}
	}
	if logflags.Coordinator() {
		c.log.Debugf("bye from %s, %d jobs released", workerID, n)
	}
	return n
}

// Progress returns the progress counters.
func (c *Coordinator) Progress() api.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return api.Progress{
		Done:    c.store.Len(),
		Total:   len(c.plan),
		Leased:  len(c.leases),
		Workers: len(c.workers),
	}
}

// Aggregate returns the combination of every result recorded so far.
func (c *Coordinator) Aggregate() api.Aggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.store.Aggregate()
	if !c.started.IsZero() && !c.finished.IsZero() {
		a.ElapsedNanos = int64(c.finished.Sub(c.started))
	}
	return a
}

// Results returns every recorded result, sorted by chunk.
func (c *Coordinator) Results() []api.PartialResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Results()
}

// Done returns a channel that is closed once every chunk has a result.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
