package coordinator

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/sumprime/sumprime/pkg/logflags"
	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/service/api"
)

// ErrPlanMismatch is returned when a store file was written for a
// different limit or number of chunks.
var ErrPlanMismatch = errors.New("store was written for a different plan")

// storeFile is the on-disk layout of a Store.
type storeFile struct {
	Limit   int64               `yaml:"limit"`
	Chunks  int                 `yaml:"chunks"`
	Results []api.PartialResult `yaml:"results"`
}

// Store holds one PartialResult per chunk. If it has a path every change is
// written to it.
// Store is not safe for concurrent use, the coordinator serializes access.
type Store struct {
	path    string
	limit   int64
	plan    []prime.Range
	results map[int]api.PartialResult
	log     logflags.Logger
}

// OpenStore returns a store for the chunks of plan below limit. If path is
// empty the store is kept in memory only. If path names an existing file
// its results are loaded, provided it was written for the same plan.
// Loaded results that do not belong to a chunk of plan are dropped.
func OpenStore(path string, limit int64, plan []prime.Range) (*Store, error) {
	s := &Store{
		path:    path,
		limit:   limit,
		plan:    plan,
		results: make(map[int]api.PartialResult),
		log:     logflags.StoreLogger(),
	}
	if path == "" {
		return s, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if logflags.Store() {
				s.log.Debugf("creating new store at %s", path)
			}
			return s, s.save(s.Results())
		}
		return nil, err
	}
	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("could not decode store %s: %v", path, err)
	}
	if f.Limit != limit || f.Chunks != len(plan) {
		return nil, fmt.Errorf("%w: %s has limit %d and %d chunks, want limit %d and %d chunks", ErrPlanMismatch, path, f.Limit, f.Chunks, limit, len(plan))
	}
	for _, r := range f.Results {
		if !s.inPlan(r) {
			s.log.Warnf("dropping result for chunk %d [%d, %d) from %s: not in plan", r.ChunkID, r.Lo, r.Hi, path)
			continue
		}
		s.results[r.ChunkID] = r
	}
	if logflags.Store() {
		s.log.Debugf("loaded %d results from %s", len(s.results), path)
	}
	return s, nil
}

func (s *Store) inPlan(r api.PartialResult) bool {
	if r.ChunkID < 0 || r.ChunkID >= len(s.plan) {
		return false
	}
	c := s.plan[r.ChunkID]
	return r.Lo == c.Lo && r.Hi == c.Hi
}

// Upsert records r, replacing any previous result for the same chunk.
// Nothing is recorded if r is not a chunk of the plan or the store could
// not be written.
func (s *Store) Upsert(r api.PartialResult) error {
	if !s.inPlan(r) {
		return fmt.Errorf("%w %d [%d, %d)", ErrUnknownChunk, r.ChunkID, r.Lo, r.Hi)
	}
	results := make([]api.PartialResult, 0, len(s.results)+1)
	for id, x := range s.results {
		if id != r.ChunkID {
			results = append(results, x)
		}
	}
	results = append(results, r)
	sortResults(results)
	if err := s.save(results); err != nil {
		return err
	}
	s.results[r.ChunkID] = r
	if logflags.Store() {
		s.log.Debugf("chunk %d from %s: sum %d", r.ChunkID, r.WorkerID, r.Sum)
	}
	return nil
}

// Get returns the result recorded for chunk id.
func (s *Store) Get(id int) (api.PartialResult, bool) {
	r, ok := s.results[id]
	return r, ok
}

// Len returns the number of recorded results.
func (s *Store) Len() int {
	return len(s.results)
}

// Results returns every recorded result sorted by chunk id.
func (s *Store) Results() []api.PartialResult {
	r := make([]api.PartialResult, 0, len(s.results))
	for _, x := range s.results {
		r = append(r, x)
	}
	sortResults(r)
	return r
}

func sortResults(r []api.PartialResult) {
	sort.Slice(r, func(i, j int) bool { return r[i].ChunkID < r[j].ChunkID })
}

// Aggregate sums the recorded results.
func (s *Store) Aggregate() api.Aggregate {
	a := api.Aggregate{Total: len(s.plan)}
	for _, r := range s.results {
		a.Sum += r.Sum
		a.Count += r.Count
		if r.Largest > a.Largest {
			a.Largest = r.Largest
		}
		a.Chunks++
	}
	return a
}

// save writes results to a temporary file next to path and renames it
// over path.
func (s *Store) save(results []api.PartialResult) error {
	if s.path == "" {
		return nil
	}
	out, err := yaml.Marshal(storeFile{Limit: s.limit, Chunks: len(s.plan), Results: results})
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		s.log.Errorf("could not write store: %v", err)
		return err
	}
	return nil
}
