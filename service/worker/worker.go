// Package worker implements the worker side of the distributed summation:
// it asks a coordinator for jobs, sums the primes of each job and reports
// the partial results back.
package worker

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sumprime/sumprime/pkg/logflags"
	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/api"
)

const (
	// DefaultCacheSize is the number of computed ranges a worker remembers.
	DefaultCacheSize = 64
	// DefaultRetry is how long a worker waits for a job when the
	// coordinator does not say.
	DefaultRetry = time.Second
)

// Stats summarizes the work done by a worker.
type Stats struct {
	// Jobs is the number of results submitted.
	Jobs int
	// Cached is how many of those were answered from the cache.
	Cached int
	// Sum is the sum of the submitted partial sums.
	Sum int64
}

// Worker pulls jobs from a coordinator until there are none left.
type Worker struct {
	client service.Client
	id     string
	cache  *lru.Cache
	log    logflags.Logger
}

// New returns a worker identified by id talking to client. Up to cacheSize
// computed ranges are remembered, so that a job handed out again after
// its lease expired is not computed twice.
func New(client service.Client, id string, cacheSize int) (*Worker, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Worker{
		client: client,
		id:     id,
		cache:  cache,
		log:    logflags.WorkerLogger().WithField("worker", id),
	}, nil
}

// Run processes jobs until the coordinator has none left or ctx is done.
// The coordinator is always told goodbye before Run returns.
func (w *Worker) Run(ctx context.Context) (stats Stats, err error) {
	limit, chunks, err := w.client.Hello(w.id)
	if err != nil {
		return stats, fmt.Errorf("hello: %w", err)
	}
	if logflags.Worker() {
		w.log.Debugf("joined plan: %d chunks below %d", chunks, limit)
	}

	defer func() {
		if byeErr := w.client.Bye(w.id); byeErr != nil {
			w.log.Errorf("bye: %v", byeErr)
			if err == nil {
				err = fmt.Errorf("bye: %w", byeErr)
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		reply, err := w.client.GetJob(w.id)
		if err != nil {
			return stats, fmt.Errorf("get job: %w", err)
		}
		switch {
		case reply.NoJob:
			if logflags.Worker() {
				w.log.Debugf("no jobs left after %d jobs", stats.Jobs)
			}
			return stats, nil
		case reply.Wait || reply.Job == nil:
			retry := reply.Retry()
			if retry <= 0 {
				retry = DefaultRetry
			}
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(retry):
			}
			continue
		}

		result, cached := w.process(*reply.Job)
		if err := w.client.SubmitResult(result); err != nil {
			return stats, fmt.Errorf("submit result for chunk %d: %w", result.ChunkID, err)
		}
		stats.Jobs++
		stats.Sum += result.Sum
		if cached {
			stats.Cached++
		}
	}
}

func (w *Worker) process(job api.Job) (api.PartialResult, bool) {
	r := prime.Range{Lo: job.Lo, Hi: job.Hi}
	result := api.PartialResult{
		WorkerID: w.id,
		ChunkID:  job.ChunkID,
		Lo:       job.Lo,
		Hi:       job.Hi,
	}
	if v, ok := w.cache.Get(r); ok {
		p := v.(prime.Partial)
		result.Sum, result.Count, result.Largest = p.Sum, p.Count, p.Largest
		if logflags.Worker() {
			w.log.Debugf("chunk %d [%d, %d) from cache", job.ChunkID, job.Lo, job.Hi)
		}
		return result, true
	}
	start := time.Now()
	p := prime.SumRange(job.Lo, job.Hi)
	result.ElapsedNanos = int64(time.Since(start))
	result.Sum, result.Count, result.Largest = p.Sum, p.Count, p.Largest
	w.cache.Add(r, p)
	if logflags.Worker() {
		w.log.Debugf("chunk %d [%d, %d): %d primes in %v", job.ChunkID, job.Lo, job.Hi, p.Count, time.Duration(result.ElapsedNanos))
	}
	return result, false
}
