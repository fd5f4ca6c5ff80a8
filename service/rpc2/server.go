package rpc2

import (
	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/api"
	"github.com/sumprime/sumprime/service/coordinator"
)

// RPCServer exposes a coordinator over JSON-RPC.
type RPCServer struct {
	// config is all the information necessary to start the coordinator
	// and server.
	config *service.Config

	coordinator *coordinator.Coordinator
}

// NewServer creates a new RPCServer.
func NewServer(config *service.Config, c *coordinator.Coordinator) *RPCServer {
	return &RPCServer{config, c}
}

type HelloIn struct {
	WorkerID string
}

type HelloOut struct {
	Limit  int64
	Chunks int
}

// Hello introduces a worker to the coordinator.
func (s *RPCServer) Hello(arg HelloIn, out *HelloOut) error {
	out.Limit, out.Chunks = s.coordinator.Hello(arg.WorkerID)
	return nil
}

type GetJobIn struct {
	WorkerID string
}

type GetJobOut struct {
	Reply api.JobReply
}

// GetJob returns the next job for a worker.
func (s *RPCServer) GetJob(arg GetJobIn, out *GetJobOut) error {
	out.Reply = s.coordinator.GetJob(arg.WorkerID)
	return nil
}

type SubmitResultIn struct {
	Result api.PartialResult
}

type SubmitResultOut struct {
	// ChunkID acknowledges the recorded chunk.
	ChunkID int
}

// SubmitResult records the partial result of a job.
func (s *RPCServer) SubmitResult(arg SubmitResultIn, out *SubmitResultOut) error {
	if err := s.coordinator.SubmitResult(arg.Result); err != nil {
		return err
	}
	out.ChunkID = arg.Result.ChunkID
	return nil
}

type ByeIn struct {
	WorkerID string
}

type ByeOut struct {
	// Released is the number of jobs the worker still held.
	Released int
}

// Bye unregisters a worker.
func (s *RPCServer) Bye(arg ByeIn, out *ByeOut) error {
	out.Released = s.coordinator.Bye(arg.WorkerID)
	return nil
}

type StatusIn struct {
}

type StatusOut struct {
	Progress api.Progress
}

// Status returns the progress of the coordinator.
func (s *RPCServer) Status(arg StatusIn, out *StatusOut) error {
	out.Progress = s.coordinator.Progress()
	return nil
}

type ResultIn struct {
}

type ResultOut struct {
	Aggregate api.Aggregate
}

// Result returns the aggregate of the results recorded so far.
func (s *RPCServer) Result(arg ResultIn, out *ResultOut) error {
	out.Aggregate = s.coordinator.Aggregate()
	return nil
}

type ListChunksIn struct {
}

type ListChunksOut struct {
	Results []api.PartialResult
}

// ListChunks returns the recorded results, sorted by chunk.
func (s *RPCServer) ListChunks(arg ListChunksIn, out *ListChunksOut) error {
	out.Results = s.coordinator.Results()
	return nil
}
