package service

import (
	"github.com/sumprime/sumprime/service/api"
)

// Client represents a client of a coordinator. Workers and the console
// both use it.
type Client interface {
	// Hello introduces the worker to the coordinator, it returns the upper
	// bound and the number of chunks of the plan.
	Hello(workerID string) (limit int64, chunks int, err error)
	// GetJob asks for a job.
	GetJob(workerID string) (api.JobReply, error)
	// SubmitResult reports the result of a job.
	SubmitResult(result api.PartialResult) error
	// Bye tells the coordinator the worker is leaving, its outstanding jobs
	// are handed to other workers.
	Bye(workerID string) error

	// Status returns the progress of the coordinator.
	Status() (api.Progress, error)
	// Result returns the aggregate of all results recorded so far.
	Result() (api.Aggregate, error)
	// ListChunks returns every recorded result, sorted by chunk.
	ListChunks() ([]api.PartialResult, error)
	// GetVersion returns the version of the coordinator and of the API.
	GetVersion() (*api.GetVersionOut, error)

	// Disconnect closes the connection to the coordinator.
	Disconnect() error
}
