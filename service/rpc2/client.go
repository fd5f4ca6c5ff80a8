package rpc2

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/api"
)

// RPCClient is a RPC service.Client.
type RPCClient struct {
	client *rpc.Client
}

// Ensure the implementation satisfies the interface.
var _ service.Client = &RPCClient{}

// NewClient creates a new RPCClient connected to the coordinator at addr.
func NewClient(addr string) (*RPCClient, error) {
	client, err := jsonrpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &RPCClient{client: client}, nil
}

// NewClientFromConn creates a new RPCClient from the given connection.
func NewClientFromConn(conn net.Conn) *RPCClient {
	return &RPCClient{client: jsonrpc.NewClient(conn)}
}

func (c *RPCClient) Hello(workerID string) (int64, int, error) {
	out := new(HelloOut)
	err := c.call("Hello", HelloIn{workerID}, out)
	return out.Limit, out.Chunks, err
}

func (c *RPCClient) GetJob(workerID string) (api.JobReply, error) {
	out := new(GetJobOut)
	err := c.call("GetJob", GetJobIn{workerID}, out)
	return out.Reply, err
}

func (c *RPCClient) SubmitResult(result api.PartialResult) error {
	out := new(SubmitResultOut)
	return c.call("SubmitResult", SubmitResultIn{result}, out)
}

func (c *RPCClient) Bye(workerID string) error {
	out := new(ByeOut)
	return c.call("Bye", ByeIn{workerID}, out)
}

func (c *RPCClient) Status() (api.Progress, error) {
	out := new(StatusOut)
	err := c.call("Status", StatusIn{}, out)
	return out.Progress, err
}

func (c *RPCClient) Result() (api.Aggregate, error) {
	out := new(ResultOut)
	err := c.call("Result", ResultIn{}, out)
	return out.Aggregate, err
}

func (c *RPCClient) ListChunks() ([]api.PartialResult, error) {
	out := new(ListChunksOut)
	err := c.call("ListChunks", ListChunksIn{}, out)
	return out.Results, err
}

func (c *RPCClient) GetVersion() (*api.GetVersionOut, error) {
	var out api.GetVersionOut
	err := c.call("GetVersion", api.GetVersionIn{}, &out)
	return &out, err
}

func (c *RPCClient) Disconnect() error {
	return c.client.Close()
}

func (c *RPCClient) call(method string, args, reply interface{}) error {
	return c.client.Call("RPCServer."+method, args, reply)
}

// CallAPI calls an arbitrary method of the coordinator API.
func (c *RPCClient) CallAPI(method string, args, reply interface{}) error {
	return c.call(method, args, reply)
}
