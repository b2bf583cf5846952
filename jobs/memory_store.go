package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docuquery/policy-search/domain"
)

// MemoryStore keeps jobs in process memory. Suitable for single-instance
// deployments; restarts lose job history.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func ProvideMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now()
	job.State = StateQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) MarkRunning(_ context.Context, id string) error {
	return s.update(id, func(job *Job) error {
		return job.transition(StateRunning)
	})
}

func (s *MemoryStore) Complete(_ context.Context, id string, stats *domain.ProcessingStats) error {
	return s.update(id, func(job *Job) error {
		if err := job.transition(StateCompleted); err != nil {
			return err
		}
		job.Stats = stats
		return nil
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, cause error) error {
	return s.update(id, func(job *Job) error {
		if err := job.transition(StateFailed); err != nil {
			return err
		}
		job.Error = cause.Error()
		return nil
	})
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) update(id string, fn func(*Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	return fn(job)
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.FileNames = append([]string(nil), job.FileNames...)
	if job.Stats != nil {
		stats := *job.Stats
		clone.Stats = &stats
	}
	return &clone
}
