// Package api defines the data types exchanged between the coordinator and
// its clients.
package api

import "time"

// Job is a chunk of candidates handed to a worker. The worker sums the
// primes in [Lo, Hi).
type Job struct {
	ChunkID int   `json:"chunkID"`
	Lo      int64 `json:"lo"`
	Hi      int64 `json:"hi"`
}

// JobReply is the answer to a request for a job. At most one of Job,
// NoJob and Wait is meaningful.
type JobReply struct {
	Job *Job `json:"job,omitempty"`
	// NoJob is true once every chunk is done, the worker should leave.
	NoJob bool `json:"noJob,omitempty"`
	// Wait is true if every remaining chunk is leased to some worker, the
	// worker should ask again after RetryNanos.
	Wait       bool  `json:"wait,omitempty"`
	RetryNanos int64 `json:"retryNanos,omitempty"`
}

// Retry returns RetryNanos as a time.Duration.
func (r JobReply) Retry() time.Duration {
	return time.Duration(r.RetryNanos)
}

// PartialResult is what a worker reports after finishing a Job.
type PartialResult struct {
	WorkerID string `json:"workerID" yaml:"worker-id"`
	ChunkID  int    `json:"chunkID" yaml:"chunk-id"`
	Lo       int64  `json:"lo" yaml:"lo"`
	Hi       int64  `json:"hi" yaml:"hi"`
	// Sum of the primes in [Lo, Hi).
	Sum int64 `json:"sum" yaml:"sum"`
	// Count is the number of primes in [Lo, Hi).
	Count int64 `json:"count" yaml:"count"`
	// Largest is the largest prime in [Lo, Hi), 0 if there is none.
	Largest int64 `json:"largest" yaml:"largest"`
	// ElapsedNanos is the time the worker spent on the job.
	ElapsedNanos int64 `json:"elapsedNanos" yaml:"elapsed-nanos"`
	// InsertedAt is set by the coordinator when the result is recorded.
	InsertedAt time.Time `json:"insertedAt" yaml:"inserted-at"`
}

// Progress describes how far the coordinator is.
type Progress struct {
	// Done is the number of chunks with a recorded result.
	Done int `json:"done"`
	// Total is the number of chunks in the plan.
	Total int `json:"total"`
	// Leased is the number of chunks currently held by workers.
	Leased int `json:"leased"`
	// Workers is the number of workers that said hello and not goodbye.
	Workers int `json:"workers"`
}

// Complete returns true if every chunk has a result.
func (p Progress) Complete() bool {
	return p.Done >= p.Total
}

// Aggregate combines every recorded PartialResult.
type Aggregate struct {
	Sum     int64 `json:"sum"`
	Count   int64 `json:"count"`
	Largest int64 `json:"largest"`
	// Chunks is the number of results included.
	Chunks int `json:"chunks"`
	// Total is the number of chunks in the plan.
	Total int `json:"total"`
	// ElapsedNanos is the wall time between the first job handed out and
	// the last result, 0 if no job was handed out.
	ElapsedNanos int64 `json:"elapsedNanos"`
}

// Complete returns true if the aggregate includes every chunk.
func (a Aggregate) Complete() bool {
	return a.Chunks >= a.Total
}

// Elapsed returns ElapsedNanos as a time.Duration.
func (a Aggregate) Elapsed() time.Duration {
	return time.Duration(a.ElapsedNanos)
}

// GetVersionIn is the argument of RPCServer.GetVersion.
type GetVersionIn struct {
}

// GetVersionOut is the result of RPCServer.GetVersion.
type GetVersionOut struct {
	SumprimeVersion string
	APIVersion      int
}
