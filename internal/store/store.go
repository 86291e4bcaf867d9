package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/rzbill/queuectl/internal/job"
)

var (
	// ErrNotFound is returned when the referenced job id is absent.
	ErrNotFound = errors.New("job not found")
	// ErrWriteConflict is returned when a mutation could not be persisted
	// after the bounded retry budget. It indicates storage trouble beyond
	// normal contention and is surfaced, never swallowed.
	ErrWriteConflict = errors.New("write conflict: retries exhausted")
)

const (
	mutateRetries = 3
	mutateSleep   = 50 * time.Millisecond
	casRetries    = 5
	casSleep      = 20 * time.Millisecond
)

// document is the on-disk shape of the job table. Slice order is insertion
// order and doubles as the FIFO tie-break for claiming.
type document struct {
	Jobs []job.Job `json:"jobs"`
}

// Store is a handle to the shared job table. Handles are cheap; every
// operation reads current on-disk truth, nothing is cached across calls.
type Store struct {
	path string
	lock *flock.Flock
}

// Open ensures the table file exists and returns a handle to it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(document{Jobs: []job.Job{}}); err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the table file path.
func (s *Store) Path() string { return s.path }

// load reads and parses the table. Caller holds the lock. An unparseable
// table reads as empty: torn writes are impossible (atomic rename), so
// garbage here means foreign interference, and an empty table keeps the
// queue available.
func (s *Store) load() (document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Jobs: []job.Job{}}, nil
		}
		return document{}, fmt.Errorf("read store: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return document{Jobs: []job.Job{}}, nil
	}
	if doc.Jobs == nil {
		doc.Jobs = []job.Job{}
	}
	return doc, nil
}

// persist writes the full table snapshot via an atomic temp-file-and-rename
// replace. Caller holds the lock.
func (s *Store) persist(doc document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// read loads the table under the file lock.
func (s *Store) read() (document, error) {
	if err := s.lock.Lock(); err != nil {
		return document{}, fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.load()
}

// write persists the table under the file lock.
func (s *Store) write(doc document) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.persist(doc)
}

// List returns jobs in storage order, optionally filtered by state (empty
// state means all) and capped at limit (limit <= 0 means no cap).
func (s *Store) List(state job.State, limit int) ([]job.Job, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]job.Job, 0, len(doc.Jobs))
	for _, j := range doc.Jobs {
		if state != "" && j.State != state {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Get returns the job with the given id, or ErrNotFound.
func (s *Store) Get(id string) (job.Job, error) {
	doc, err := s.read()
	if err != nil {
		return job.Job{}, err
	}
	for _, j := range doc.Jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return job.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create appends j to the table. Duplicate ids are a caller error and are
// not checked here.
func (s *Store) Create(j job.Job) (job.Job, error) {
	for attempt := 0; attempt < mutateRetries; attempt++ {
		doc, err := s.read()
		if err != nil {
			return job.Job{}, err
		}
		doc.Jobs = append(doc.Jobs, j)
		if err := s.write(doc); err == nil {
			return j, nil
		}
		time.Sleep(mutateSleep)
	}
	return job.Job{}, fmt.Errorf("create %s: %w", j.ID, ErrWriteConflict)
}

// Update merges p into the stored job and persists the table.
func (s *Store) Update(id string, p job.Patch) (job.Job, error) {
	for attempt := 0; attempt < mutateRetries; attempt++ {
		doc, err := s.read()
		if err != nil {
			return job.Job{}, err
		}
		idx := indexOf(doc, id)
		if idx < 0 {
			return job.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		doc.Jobs[idx] = p.Apply(doc.Jobs[idx], time.Now())
		if err := s.write(doc); err == nil {
			return doc.Jobs[idx], nil
		}
		time.Sleep(mutateSleep)
	}
	return job.Job{}, fmt.Errorf("update %s: %w", id, ErrWriteConflict)
}

// Delete removes the job with the given id.
func (s *Store) Delete(id string) error {
	for attempt := 0; attempt < mutateRetries; attempt++ {
		doc, err := s.read()
		if err != nil {
			return err
		}
		kept := doc.Jobs[:0:0]
		for _, j := range doc.Jobs {
			if j.ID != id {
				kept = append(kept, j)
			}
		}
		if len(kept) == len(doc.Jobs) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		doc.Jobs = kept
		if err := s.write(doc); err == nil {
			return nil
		}
		time.Sleep(mutateSleep)
	}
	return fmt.Errorf("delete %s: %w", id, ErrWriteConflict)
}

// CompareAndTransition atomically moves the job from the expected state to
// the new state, merging extra on top. It returns false without touching
// anything when the id is absent or the current state differs; that is the
// normal outcome of losing a claim race, not an error. True is returned only after
// the new table has been persisted.
//
// Unlike the plain mutations, the check and the write happen under one lock
// hold so that concurrent claimants can never both pass the state check.
// The critical section contains no blocking work beyond the file write.
func (s *Store) CompareAndTransition(id string, from, to job.State, extra job.Patch) (bool, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		ok, retry, err := s.tryTransition(id, from, to, extra)
		if err != nil {
			return false, err
		}
		if !retry {
			return ok, nil
		}
		time.Sleep(casSleep)
	}
	return false, nil
}

func (s *Store) tryTransition(id string, from, to job.State, extra job.Patch) (ok, retry bool, err error) {
	if err := s.lock.Lock(); err != nil {
		return false, false, fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return false, false, err
	}
	idx := indexOf(doc, id)
	if idx < 0 {
		return false, false, nil
	}
	if doc.Jobs[idx].State != from {
		return false, false, nil
	}
	extra.State = &to
	doc.Jobs[idx] = extra.Apply(doc.Jobs[idx], time.Now())
	if err := s.persist(doc); err != nil {
		// Transient write failure: retry the whole cycle.
		return false, true, nil
	}
	return true, false, nil
}

func indexOf(doc document, id string) int {
	for i := range doc.Jobs {
		if doc.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}
