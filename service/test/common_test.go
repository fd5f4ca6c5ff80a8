package service_test

import (
	"net"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/rpc2"
	"github.com/sumprime/sumprime/service/rpccommon"
)

func assertNoError(err error, t *testing.T, s string) {
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		fname := filepath.Base(file)
		t.Fatalf("failed assertion at %s:%d: %s - %s\n", fname, line, s, err)
	}
}

func assertError(err error, t *testing.T, s string) {
	if err == nil {
		_, file, line, _ := runtime.Caller(1)
		fname := filepath.Base(file)
		t.Fatalf("failed assertion at %s:%d: %s (no error)\n", fname, line, s)
	}
}

// startServer starts a coordinator listening on a loopback port.
func startServer(t *testing.T, limit int64, chunks int, lease time.Duration) (*rpccommon.ServerImpl, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assertNoError(err, t, "Listen()")
	server := rpccommon.NewServer(&service.Config{
		Listener:    listener,
		AcceptMulti: true,
		Limit:       limit,
		Chunks:      chunks,
		Lease:       lease,
	})
	assertNoError(server.Run(), t, "Run()")
	t.Cleanup(func() { server.Stop() })
	return server, listener.Addr().String()
}

func dial(t *testing.T, addr string) *rpc2.RPCClient {
	t.Helper()
	client, err := rpc2.NewClient(addr)
	assertNoError(err, t, "NewClient()")
	t.Cleanup(func() { client.Disconnect() })
	return client
}
