package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/job"
)

type JobStore struct {
	mu    sync.RWMutex
	items map[common.UUID]job.Job
}

func NewJobStore() *JobStore {
	return &JobStore{items: make(map[common.UUID]job.Job)}
}

func (s *JobStore) Create(_ context.Context, j job.Job) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = common.NewUUID()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	s.items[j.ID] = j
	return &j, nil
}

func (s *JobStore) Update(_ context.Context, j job.Job) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[j.ID]
	if !ok || current.OrganizationID != j.OrganizationID {
		return nil, common.NewError(common.CodeNotFound, "job not found", nil)
	}
	j.CreatedAt = current.CreatedAt
	j.UpdatedAt = time.Now().UTC()
	s.items[j.ID] = j
	return &j, nil
}

func (s *JobStore) GetByID(_ context.Context, id common.UUID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "job not found", nil)
	}
	return &j, nil
}

func (s *JobStore) ListByOrganization(_ context.Context, organizationID common.UUID) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []job.Job
	for _, j := range s.items {
		if j.OrganizationID == organizationID {
			items = append(items, j)
		}
	}
	sort.Slice(items, func(i, k int) bool { return items[i].CreatedAt.After(items[k].CreatedAt) })
	return items, nil
}
