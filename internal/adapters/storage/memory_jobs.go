package storage

import (
	"sync"
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// MemoryJobStore keeps job instances in process memory. Acquire returns a
// private copy so that the caller's compare-and-transition never observes
// concurrent mutation.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.JobInstance
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.JobInstance)}
}

func (s *MemoryJobStore) Persist(job *domain.JobInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryJobStore) FindByID(id string) (*domain.JobInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, nil
	}
	copied := job
	return &copied, nil
}

func (s *MemoryJobStore) DeleteByID(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[id]
	delete(s.jobs, id)
	return exists, nil
}

func (s *MemoryJobStore) LoadJobsDueBefore(deadline time.Time) ([]*domain.JobInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.JobInstance
	for _, job := range s.jobs {
		if job.ExpirationTime.Before(deadline) {
			copied := job
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (s *MemoryJobStore) AcquireJob(id string) (*domain.JobInstance, error) {
	return s.FindByID(id)
}

func (s *MemoryJobStore) Close() error {
	return nil
}
