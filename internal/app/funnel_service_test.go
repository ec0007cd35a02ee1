package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentflow/internal/cache"
	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/domain/job"
)

// listThenInvalidate invalidates the cache right after the list is read, the
// way a transition committing during a refresh does.
type listThenInvalidate struct {
	application.Repository
	cache funnel.Cache
	job   job.Job
}

func (r listThenInvalidate) List(ctx context.Context, scope application.Scope) ([]application.Application, error) {
	items, err := r.Repository.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	return items, r.cache.Invalidate(ctx, r.job.ID, r.job.OrganizationID)
}

func TestFunnelServiceValidatesScope(t *testing.T) {
	f := newPipelineFixture(t)
	svc := NewFunnelService(f.apps, nil, nil)

	_, err := svc.Compute(context.Background(), application.Scope{})
	assert.True(t, common.Is(err, common.CodeValidation))

	_, err = svc.Compute(context.Background(), application.Scope{JobID: f.job.ID, OrganizationID: f.job.OrganizationID})
	assert.True(t, common.Is(err, common.CodeValidation))
}

func TestFunnelServiceReadsThroughCache(t *testing.T) {
	f := newPipelineFixture(t)
	funnelCache := cache.NewMemoryFunnelCache(time.Hour)
	svc := NewFunnelService(f.apps, funnelCache, nil)
	svc.now = func() time.Time { return f.now }
	f.seed(t, application.StageScreening, "")
	scope := application.Scope{JobID: f.job.ID}

	first, err := svc.Compute(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)
	assert.Equal(t, f.now, first.ComputedAt)

	f.seedForNewCandidate(t, application.StageApplied)
	cached, err := svc.Compute(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Total)

	refreshed, err := svc.Refresh(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.Total)
}

func TestFunnelMatchesStoreAfterTransitions(t *testing.T) {
	f := newPipelineFixture(t)
	funnelCache := cache.NewMemoryFunnelCache(time.Hour)
	pipeline := NewPipelineService(PipelineDependencies{
		Applications: f.apps,
		Jobs:         f.jobs,
		Candidates:   f.candidates,
		Emitter:      f.emitter,
		Analytics:    f.analytics,
		Cache:        funnelCache,
	})
	svc := NewFunnelService(f.apps, funnelCache, nil)
	ctx := context.Background()
	scope := application.Scope{JobID: f.job.ID}

	var ids []common.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, f.seedForNewCandidate(t, application.StageApplied).ID)
	}
	_, err := svc.Compute(ctx, scope)
	require.NoError(t, err)

	for _, stage := range []application.Stage{application.StageScreening, application.StageInterviewing} {
		_, err := pipeline.Transition(ctx, TransitionRequest{ApplicationID: ids[0], Stage: stage, Actor: f.hr})
		require.NoError(t, err)
	}
	_, err = pipeline.Transition(ctx, TransitionRequest{ApplicationID: ids[1], Stage: application.StageRejected, Actor: f.hr})
	require.NoError(t, err)

	snapshot, err := svc.Compute(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.Total)
	assert.Equal(t, 2, snapshot.StageCounts[application.StageApplied])
	assert.Equal(t, 1, snapshot.StageCounts[application.StageInterviewing])
	assert.Equal(t, 1, snapshot.StageCounts[application.StageRejected])
	assert.InDelta(t, 0.25, snapshot.Rate(application.StageApplied, application.StageScreening).Value, 1e-9)

	sum := 0
	for _, count := range snapshot.StageCounts {
		sum += count
	}
	assert.Equal(t, snapshot.Total, sum)
}

func TestOrganizationFunnelSpansJobs(t *testing.T) {
	f := newPipelineFixture(t)
	svc := NewFunnelService(f.apps, nil, nil)
	f.seed(t, application.StageScreening, "")
	second, err := f.jobs.Create(context.Background(), job.Job{OrganizationID: f.job.OrganizationID, Title: "SRE", Company: "Acme", Status: job.StatusOpen})
	require.NoError(t, err)
	f.job = *second
	f.seedForNewCandidate(t, application.StageApplied)

	snapshot, err := svc.Compute(context.Background(), application.Scope{OrganizationID: f.job.OrganizationID})
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Total)
}

func TestRefreshRacingInvalidationIsNotCached(t *testing.T) {
	f := newPipelineFixture(t)
	funnelCache := cache.NewMemoryFunnelCache(time.Hour)
	svc := NewFunnelService(listThenInvalidate{Repository: f.apps, cache: funnelCache, job: f.job}, funnelCache, nil)
	svc.now = func() time.Time { return f.now }
	f.seed(t, application.StageScreening, "")
	scope := application.Scope{JobID: f.job.ID}

	snapshot, err := svc.Refresh(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Total)

	cached, err := funnelCache.Get(context.Background(), scope)
	require.NoError(t, err)
	assert.Nil(t, cached)
}
