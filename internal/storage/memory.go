package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/alphadose/haxmap"
)

// MemoryStore keeps job records in process memory. Reads are lock-free;
// writes that depend on the current record are serialized.
type MemoryStore struct {
	jobs *haxmap.Map[string, Job]
	mu   sync.Mutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: haxmap.New[string, Job](),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *Job) error {
	if _, loaded := s.jobs.GetOrSet(job.JobID, *job); loaded {
		return ErrJobExists
	}
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*Job, error) {
	job, ok := s.jobs.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs.Del(jobID)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, jobID string, status Status) error {
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}

	if job.Status != StatusPending && job.Status != status {
		return fmt.Errorf("%w: job is %s", ErrStatusConflict, job.Status)
	}

	job.Status = status
	s.jobs.Set(jobID, job)

	return nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	return int(s.jobs.Len())
}
