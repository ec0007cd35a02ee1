package app

import (
	"context"
	"log/slog"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/funnel"
)

type FunnelService struct {
	apps   application.Repository
	cache  funnel.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewFunnelService(apps application.Repository, cache funnel.Cache, logger *slog.Logger) *FunnelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FunnelService{apps: apps, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Compute returns the funnel snapshot for scope, served from cache when a
// fresh one exists.
func (s *FunnelService) Compute(ctx context.Context, scope application.Scope) (*funnel.Snapshot, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, scope)
		if err != nil {
			s.logger.Warn("funnel cache read failed", slog.String("scope", funnel.ScopeKey(scope)), slog.String("error", err.Error()))
		} else if cached != nil {
			return cached, nil
		}
	}
	return s.Refresh(ctx, scope)
}

// Refresh recomputes the snapshot from the store and replaces the cached copy.
// ComputedAt is taken before the store is read, so a transition that commits
// and invalidates while the list is loading keeps this snapshot out of the
// cache.
func (s *FunnelService) Refresh(ctx context.Context, scope application.Scope) (*funnel.Snapshot, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	computedAt := s.now()
	apps, err := s.apps.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	snapshot := funnel.Compute(scope, apps, computedAt)
	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshot); err != nil {
			s.logger.Warn("funnel cache write failed", slog.String("scope", funnel.ScopeKey(scope)), slog.String("error", err.Error()))
		}
	}
	return &snapshot, nil
}

func validateScope(scope application.Scope) error {
	hasJob := scope.JobID != ""
	hasOrg := scope.OrganizationID != ""
	if hasJob == hasOrg {
		return common.NewValidationError("invalid funnel scope", map[string]string{"scope": "exactly one of job_id or organization_id is required"})
	}
	return nil
}
