package coordinator

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/service/api"
)

func TestStoreUpsertReplaces(t *testing.T) {
	s, err := OpenStore("", 100, prime.Split(2, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(api.PartialResult{ChunkID: 1, Lo: 51, Hi: 100, Sum: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(api.PartialResult{ChunkID: 1, Lo: 51, Hi: 100, Sum: 7, Largest: 5}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 result but was %d", s.Len())
	}
	if r, _ := s.Get(1); r.Sum != 7 {
		t.Fatalf("expected the second result to win, got %+v", r)
	}
	a := s.Aggregate()
	if a.Sum != 7 || a.Chunks != 1 || a.Total != 2 || a.Complete() {
		t.Fatalf("unexpected aggregate %+v", a)
	}
}

func TestStoreUpsertOutsidePlan(t *testing.T) {
	s, err := OpenStore("", 100, prime.Split(2, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []api.PartialResult{
		{ChunkID: 5, Lo: 2, Hi: 51},
		{ChunkID: -1, Lo: 2, Hi: 51},
		{ChunkID: 0, Lo: 2, Hi: 50},
	} {
		if err := s.Upsert(r); !errors.Is(err, ErrUnknownChunk) {
			t.Fatalf("expected ErrUnknownChunk for %+v but was %v", r, err)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("expected 0 results but was %d", s.Len())
	}
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yml")
	s, err := OpenStore(path, 100, prime.Split(2, 100, 3))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []api.PartialResult{
		{WorkerID: "b", ChunkID: 2, Lo: 68, Hi: 100, Sum: 500},
		{WorkerID: "a", ChunkID: 0, Lo: 2, Hi: 35, Sum: 160},
	} {
		if err := s.Upsert(r); err != nil {
			t.Fatal(err)
		}
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "worker-id: a") {
		t.Fatalf("unexpected store contents:\n%s", data)
	}

	s, err = OpenStore(path, 100, prime.Split(2, 100, 3))
	if err != nil {
		t.Fatal(err)
	}
	r := s.Results()
	if len(r) != 2 || r[0].ChunkID != 0 || r[1].ChunkID != 2 || r[1].WorkerID != "b" {
		t.Fatalf("unexpected results after reopening: %+v", r)
	}
}

func TestStoreFailedWriteRecordsNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	if err := os.Mkdir(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "results.yml")
	s, err := OpenStore(path, 100, prime.Split(2, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(api.PartialResult{ChunkID: 0, Lo: 2, Hi: 51, Sum: 328}); err == nil {
		t.Fatal("expected an error writing to a removed directory")
	}
	if s.Len() != 0 {
		t.Fatalf("expected 0 results after a failed write but was %d", s.Len())
	}
	if _, ok := s.Get(0); ok {
		t.Fatal("expected chunk 0 to be unrecorded")
	}
}

func TestStoreDropsResultsOutsidePlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yml")
	data := `limit: 100
chunks: 2
results:
- chunk-id: 0
  lo: 2
  hi: 51
  sum: 328
- chunk-id: 5
  lo: 2
  hi: 51
  sum: 328
- chunk-id: 1
  lo: 50
  hi: 100
  sum: 1
`
	if err := ioutil.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := OpenStore(path, 100, prime.Split(2, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 result but was %d", s.Len())
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("expected chunk 1 with the wrong range to be dropped")
	}
	if a := s.Aggregate(); a.Sum != 328 || a.Chunks != 1 || a.Complete() {
		t.Fatalf("unexpected aggregate %+v", a)
	}
}
