package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
)

// ApplicationStore keeps applications in memory. Conditional writes are
// serialized by the store mutex.
type ApplicationStore struct {
	mu      sync.RWMutex
	items   map[common.UUID]application.Application
	history map[common.UUID][]application.StageChange
	jobs    *JobStore
	clock   func() time.Time
}

func NewApplicationStore(jobs *JobStore) *ApplicationStore {
	return &ApplicationStore{
		items:   make(map[common.UUID]application.Application),
		history: make(map[common.UUID][]application.StageChange),
		jobs:    jobs,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ApplicationStore) Create(_ context.Context, app application.Application) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.JobID == app.JobID && existing.CandidateID == app.CandidateID {
			return nil, common.NewError(common.CodeConflict, "already applied", nil)
		}
	}
	if app.ID == "" {
		app.ID = common.NewUUID()
	}
	now := s.clock()
	if app.AppliedAt.IsZero() {
		app.AppliedAt = now
	}
	if app.StageChangedAt.IsZero() {
		app.StageChangedAt = app.AppliedAt
	}
	app.UpdatedAt = now
	app.Version = 1
	if app.HighestStage == "" {
		app.HighestStage = application.Reached("", app.Stage)
	}
	s.items[app.ID] = app
	return &app, nil
}

func (s *ApplicationStore) GetByID(_ context.Context, id common.UUID) (*application.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	return &app, nil
}

func (s *ApplicationStore) FindByJobAndCandidate(_ context.Context, jobID, candidateID common.UUID) (*application.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.items {
		if app.JobID == jobID && app.CandidateID == candidateID {
			found := app
			return &found, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "application not found", nil)
}

func (s *ApplicationStore) List(ctx context.Context, scope application.Scope) ([]application.Application, error) {
	var jobIDs map[common.UUID]bool
	switch {
	case scope.JobID != "":
		jobIDs = map[common.UUID]bool{scope.JobID: true}
	case scope.OrganizationID != "":
		jobIDs = make(map[common.UUID]bool)
		if s.jobs != nil {
			jobs, err := s.jobs.ListByOrganization(ctx, scope.OrganizationID)
			if err != nil {
				return nil, err
			}
			for _, j := range jobs {
				jobIDs[j.ID] = true
			}
		}
	default:
		return nil, common.NewValidationError("invalid scope", map[string]string{"scope": "job_id or organization_id is required"})
	}
	return s.filter(func(app application.Application) bool { return jobIDs[app.JobID] }), nil
}

func (s *ApplicationStore) ListByCandidate(_ context.Context, candidateID common.UUID) ([]application.Application, error) {
	return s.filter(func(app application.Application) bool { return app.CandidateID == candidateID }), nil
}

func (s *ApplicationStore) UpdateStage(_ context.Context, id common.UUID, expectedVersion int64, patch application.StagePatch) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	if app.Version != expectedVersion {
		return nil, common.NewError(common.CodeConflict, "application was modified concurrently", application.ErrStaleVersion)
	}
	app.Stage = patch.Stage
	app.HighestStage = patch.HighestStage
	app.HeldFrom = patch.HeldFrom
	app.StageChangedAt = patch.StageChangedAt
	app.UpdatedAt = patch.StageChangedAt
	app.Version++
	s.items[id] = app

	change := patch.Change
	if change.ID == "" {
		change.ID = common.NewUUID()
	}
	change.ApplicationID = id
	change.ChangedAt = patch.StageChangedAt
	s.history[id] = append(s.history[id], change)
	return &app, nil
}

func (s *ApplicationStore) UpdateDetails(_ context.Context, id common.UUID, expectedVersion int64, patch application.DetailsPatch) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	if app.Version != expectedVersion {
		return nil, common.NewError(common.CodeConflict, "application was modified concurrently", application.ErrStaleVersion)
	}
	if patch.ReviewerID != nil {
		reviewer := *patch.ReviewerID
		app.ReviewerID = &reviewer
	}
	if patch.Notes != nil {
		app.Notes = *patch.Notes
	}
	app.UpdatedAt = s.clock()
	app.Version++
	s.items[id] = app
	return &app, nil
}

func (s *ApplicationStore) History(_ context.Context, id common.UUID) ([]application.StageChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]application.StageChange, len(s.history[id]))
	copy(items, s.history[id])
	return items, nil
}

func (s *ApplicationStore) filter(keep func(application.Application) bool) []application.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []application.Application
	for _, app := range s.items {
		if keep(app) {
			items = append(items, app)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AppliedAt.Before(items[j].AppliedAt) })
	return items
}
