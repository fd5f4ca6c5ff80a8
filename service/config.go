package service

import (
	"net"
	"time"
)

// Config provides the configuration to start a coordinator and expose it
// with a service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener
	// AcceptMulti configures the server to accept multiple connections.
	// A coordinator normally needs it, every worker has its own
	// connection.
	AcceptMulti bool

	// Limit is the exclusive upper bound of the candidates.
	Limit int64
	// Chunks is the number of jobs the range is split into.
	Chunks int
	// Lease is how long a worker can hold a job before it is handed out
	// again.
	Lease time.Duration
	// StorePath is the file partial results are persisted to, empty to keep
	// them in memory only.
	StorePath string

	// DisconnectChan will be closed by the server when the client
	// disconnects, if AcceptMulti is false.
	DisconnectChan chan<- struct{}
}
