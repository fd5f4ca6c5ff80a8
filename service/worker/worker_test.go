package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/service/api"
	"github.com/sumprime/sumprime/service/coordinator"
)

// directClient calls a coordinator in the same process.
type directClient struct {
	c       *coordinator.Coordinator
	byes    int
	replies []api.JobReply // served before asking the coordinator
}

func (d *directClient) Hello(id string) (int64, int, error) {
	l, n := d.c.Hello(id)
	return l, n, nil
}

func (d *directClient) GetJob(id string) (api.JobReply, error) {
	if len(d.replies) > 0 {
		r := d.replies[0]
		d.replies = d.replies[1:]
		return r, nil
	}
	return d.c.GetJob(id), nil
}

func (d *directClient) SubmitResult(r api.PartialResult) error { return d.c.SubmitResult(r) }

func (d *directClient) Bye(id string) error {
	d.byes++
	d.c.Bye(id)
	return nil
}

func (d *directClient) Status() (api.Progress, error) { return d.c.Progress(), nil }
func (d *directClient) Result() (api.Aggregate, error) { return d.c.Aggregate(), nil }
func (d *directClient) ListChunks() ([]api.PartialResult, error) { return d.c.Results(), nil }
func (d *directClient) GetVersion() (*api.GetVersionOut, error) {
	return &api.GetVersionOut{}, nil
}
func (d *directClient) Disconnect() error { return nil }

func newCoordinator(t *testing.T, limit int64, chunks int) *coordinator.Coordinator {
	t.Helper()
	c, err := coordinator.New(coordinator.Config{Limit: limit, Chunks: chunks})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWorkerRun(t *testing.T) {
	c := newCoordinator(t, 50000, 9)
	client := &directClient{c: c}
	w, err := New(client, "w1", 0)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := w.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Jobs != 9 || stats.Sum != prime.Sum(50000) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if client.byes != 1 {
		t.Fatalf("expected one bye but was %d", client.byes)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("expected the coordinator to be done")
	}
}

func TestWorkerWaitsAndUsesCache(t *testing.T) {
	c := newCoordinator(t, 1000, 1)
	job := api.Job{ChunkID: 0, Lo: 2, Hi: 1000}
	client := &directClient{c: c, replies: []api.JobReply{
		{Wait: true, RetryNanos: int64(time.Millisecond)},
		// a job seen twice, as after an expired lease
		{Job: &job},
		{Job: &job},
	}}
	w, err := New(client, "w1", 4)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := w.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Jobs != 2 || stats.Cached != 1 {
		t.Fatalf("expected 2 jobs, one of them cached; but was %+v", stats)
	}
	if a := c.Aggregate(); a.Sum != 76127 {
		t.Fatalf("expected sum 76127 but was %d", a.Sum)
	}
}

func TestWorkerCanceled(t *testing.T) {
	c := newCoordinator(t, 1000, 1)
	client := &directClient{c: c, replies: []api.JobReply{{Wait: true, RetryNanos: int64(time.Hour)}}}
	w, err := New(client, "w1", 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded but was %v", err)
	}
	if client.byes != 1 {
		t.Fatalf("expected bye to be sent on cancellation")
	}
}

func TestWorkerEmptyReplyWaits(t *testing.T) {
	c := newCoordinator(t, 1000, 2)
	client := &directClient{c: c, replies: []api.JobReply{{}}}
	w, err := New(client, "w1", 0)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	stats, err := w.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < DefaultRetry {
		t.Fatalf("expected to wait at least %v after an empty reply but was %v", DefaultRetry, elapsed)
	}
	if stats.Jobs != 2 || stats.Sum != prime.Sum(1000) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
