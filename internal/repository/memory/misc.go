package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/candidate"
	"talentflow/internal/domain/interview"
	"talentflow/internal/domain/notification"
)

type CandidateStore struct {
	mu    sync.RWMutex
	items map[common.UUID]candidate.Candidate
}

func NewCandidateStore() *CandidateStore {
	return &CandidateStore{items: make(map[common.UUID]candidate.Candidate)}
}

// Put registers a candidate profile; profiles are owned by another service.
func (s *CandidateStore) Put(c candidate.Candidate) candidate.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = common.NewUUID()
	}
	if c.UserID == "" {
		c.UserID = c.ID
	}
	s.items[c.ID] = c
	return c
}

func (s *CandidateStore) GetByID(_ context.Context, id common.UUID) (*candidate.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "candidate not found", nil)
	}
	return &c, nil
}

type InterviewStore struct {
	mu    sync.Mutex
	items []interview.Interview
}

func NewInterviewStore() *InterviewStore {
	return &InterviewStore{}
}

func (s *InterviewStore) Create(_ context.Context, item interview.Interview) (*interview.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = common.NewUUID()
	item.CreatedAt = time.Now().UTC()
	s.items = append(s.items, item)
	return &item, nil
}

func (s *InterviewStore) ListByApplication(_ context.Context, applicationID common.UUID) ([]interview.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []interview.Interview
	for _, item := range s.items {
		if item.ApplicationID == applicationID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.Before(items[j].ScheduledAt) })
	return items, nil
}

type NotificationStore struct {
	mu    sync.Mutex
	items []notification.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) Create(_ context.Context, item notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if item.ID != "" && existing.ID == item.ID {
			return nil
		}
	}
	s.items = append(s.items, item)
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID common.UUID, limit int) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []notification.Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].TargetUserID == userID {
			items = append(items, s.items[i])
			if limit > 0 && len(items) == limit {
				break
			}
		}
	}
	return items, nil
}

type AnalyticsStore struct {
	mu     sync.Mutex
	events []analytics.Event
}

func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{}
}

func (s *AnalyticsStore) Create(_ context.Context, event analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = common.NewUUID()
	event.CreatedAt = time.Now().UTC()
	s.events = append(s.events, event)
	return nil
}

func (s *AnalyticsStore) Events() []analytics.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]analytics.Event, len(s.events))
	copy(items, s.events)
	return items
}
