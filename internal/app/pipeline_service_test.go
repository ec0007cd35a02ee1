package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/candidate"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/domain/job"
	"talentflow/internal/domain/notification"
	"talentflow/internal/repository/memory"
)

type recordingEmitter struct {
	mu    sync.Mutex
	items []notification.Notification
	err   error
}

func (e *recordingEmitter) Emit(_ context.Context, item notification.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.items = append(e.items, item)
	return nil
}

func (e *recordingEmitter) Items() []notification.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]notification.Notification(nil), e.items...)
}

type funnelCacheSpy struct {
	mu   sync.Mutex
	jobs []common.UUID
}

func (c *funnelCacheSpy) Get(context.Context, application.Scope) (*funnel.Snapshot, error) {
	return nil, nil
}

func (c *funnelCacheSpy) Set(context.Context, funnel.Snapshot) error {
	return nil
}

func (c *funnelCacheSpy) Invalidate(_ context.Context, jobID, _ common.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, jobID)
	return nil
}

func (c *funnelCacheSpy) Jobs() []common.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.UUID(nil), c.jobs...)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveTransition(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

type failingUpdates struct {
	application.Repository
	err error
}

func (f failingUpdates) UpdateStage(context.Context, common.UUID, int64, application.StagePatch) (*application.Application, error) {
	return nil, f.err
}

// racingReads lets a competing writer commit between the engine's read and
// its conditional write.
type racingReads struct {
	application.Repository
	once sync.Once
}

func (r *racingReads) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	app, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		notes := "edited elsewhere"
		_, _ = r.Repository.UpdateDetails(ctx, id, app.Version, application.DetailsPatch{Notes: &notes})
	})
	return app, nil
}

// barrierReads holds every reader until all of them have loaded the same
// version of the application.
type barrierReads struct {
	application.Repository
	readers *sync.WaitGroup
}

func (b barrierReads) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	app, err := b.Repository.GetByID(ctx, id)
	b.readers.Done()
	b.readers.Wait()
	return app, err
}

type pipelineFixture struct {
	svc        *PipelineService
	apps       *memory.ApplicationStore
	jobs       *memory.JobStore
	candidates *memory.CandidateStore
	analytics  *memory.AnalyticsStore
	emitter    *recordingEmitter
	cache      *funnelCacheSpy
	observer   *countingObserver
	job        job.Job
	candidate  candidate.Candidate
	hr         Actor
	now        time.Time
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		jobs:       memory.NewJobStore(),
		candidates: memory.NewCandidateStore(),
		analytics:  memory.NewAnalyticsStore(),
		emitter:    &recordingEmitter{},
		cache:      &funnelCacheSpy{},
		observer:   &countingObserver{},
		now:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.apps = memory.NewApplicationStore(f.jobs)
	orgID := common.NewUUID()
	created, err := f.jobs.Create(context.Background(), job.Job{OrganizationID: orgID, Title: "Backend Engineer", Company: "Acme", Status: job.StatusOpen})
	require.NoError(t, err)
	f.job = *created
	f.candidate = f.candidates.Put(candidate.Candidate{UserID: common.NewUUID(), FullName: "Dana Scott"})
	f.hr = Actor{UserID: common.NewUUID(), Role: application.RoleHRReviewer, OrganizationID: orgID}
	f.svc = f.build(f.apps)
	return f
}

func (f *pipelineFixture) build(apps application.Repository) *PipelineService {
	return NewPipelineService(PipelineDependencies{
		Applications:    apps,
		Jobs:            f.jobs,
		Candidates:      f.candidates,
		Emitter:         f.emitter,
		Analytics:       f.analytics,
		Cache:           f.cache,
		Observer:        f.observer,
		BulkConcurrency: 2,
		Clock:           func() time.Time { return f.now },
	})
}

func (f *pipelineFixture) candidateActor() Actor {
	return Actor{UserID: f.candidate.UserID, Role: application.RoleCandidate}
}

// seed creates an application and walks it to stage without going through the engine.
func (f *pipelineFixture) seed(t *testing.T, stage application.Stage, heldFrom application.Stage) *application.Application {
	t.Helper()
	ctx := context.Background()
	app, err := f.apps.Create(ctx, application.Application{JobID: f.job.ID, CandidateID: f.candidate.ID, Stage: application.StageApplied})
	require.NoError(t, err)
	if stage == application.StageApplied {
		return app
	}
	highest := application.Reached(app.HighestStage, stage)
	if heldFrom != "" {
		highest = application.Reached(highest, heldFrom)
	}
	app, err = f.apps.UpdateStage(ctx, app.ID, app.Version, application.StagePatch{
		Stage:          stage,
		HighestStage:   highest,
		HeldFrom:       heldFrom,
		StageChangedAt: f.now.Add(-48 * time.Hour),
		Change:         application.StageChange{FromStage: application.StageApplied, ToStage: stage},
	})
	require.NoError(t, err)
	return app
}

func (f *pipelineFixture) seedForNewCandidate(t *testing.T, stage application.Stage) *application.Application {
	t.Helper()
	f.candidate = f.candidates.Put(candidate.Candidate{UserID: common.NewUUID()})
	return f.seed(t, stage, "")
}

func (f *pipelineFixture) assign(t *testing.T, id common.UUID) common.UUID {
	t.Helper()
	app, err := f.apps.GetByID(context.Background(), id)
	require.NoError(t, err)
	reviewer := common.NewUUID()
	_, err = f.apps.UpdateDetails(context.Background(), id, app.Version, application.DetailsPatch{ReviewerID: &reviewer})
	require.NoError(t, err)
	return reviewer
}

func requireKind(t *testing.T, err error, kind TransitionKind) {
	t.Helper()
	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr), "expected TransitionError, got %v", err)
	assert.Equal(t, kind, transitionErr.Kind)
}

func TestTransitionScreeningToInterviewing(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")

	result, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.hr, Note: " strong resume "})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Warning)

	updated := result.Application
	assert.Equal(t, application.StageInterviewing, updated.Stage)
	assert.Equal(t, application.StageInterviewing, updated.HighestStage)
	assert.Equal(t, f.now, updated.StageChangedAt)
	assert.Equal(t, f.now, updated.UpdatedAt)
	assert.Equal(t, app.Version+1, updated.Version)

	sent := f.emitter.Items()
	require.Len(t, sent, 1)
	assert.Equal(t, f.candidate.UserID, sent[0].TargetUserID)
	assert.Equal(t, notification.CategoryInfo, sent[0].Category)
	assert.Equal(t, app.ID, sent[0].SourceApplicationID)
	assert.Contains(t, sent[0].Message, "Interviewing")
	assert.Equal(t, sent, result.Notifications)

	history, err := f.apps.History(context.Background(), app.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, application.StageScreening, last.FromStage)
	assert.Equal(t, application.StageInterviewing, last.ToStage)
	assert.Equal(t, f.hr.UserID, last.ActorID)
	assert.Equal(t, "strong resume", last.Note)

	events := f.analytics.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "application.stage_changed", events[0].Name)
	assert.Equal(t, "interviewing", events[0].Payload["to"])
	assert.Equal(t, []common.UUID{f.job.ID}, f.cache.Jobs())
	assert.Equal(t, 1, f.observer.counts["committed"])
}

func TestCandidateWithdrawsFromOffer(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageOfferExtended, "")
	f.assign(t, app.ID)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageWithdrawn, Actor: f.candidateActor()})
	require.NoError(t, err)
	assert.Equal(t, application.StageWithdrawn, result.Application.Stage)
	assert.Equal(t, application.StageOfferExtended, result.Application.HighestStage)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, f.candidate.UserID, result.Notifications[0].TargetUserID)
}

func TestCandidateCannotAdvanceOwnApplication(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")

	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.candidateActor()})
	requireKind(t, err, TransitionForbidden)

	stored, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StageScreening, stored.Stage)
	assert.Empty(t, f.emitter.Items())
	assert.Empty(t, f.analytics.Events())
}

func TestCandidateCannotWithdrawSomeoneElsesApplication(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	stranger := Actor{UserID: common.NewUUID(), Role: application.RoleCandidate}

	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageWithdrawn, Actor: stranger})
	requireKind(t, err, TransitionForbidden)
}

func TestReviewerFromAnotherOrganizationIsForbidden(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	outsider := Actor{UserID: common.NewUUID(), Role: application.RoleHRReviewer, OrganizationID: common.NewUUID()}

	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageRejected, Actor: outsider})
	requireKind(t, err, TransitionForbidden)
}

func TestTerminalStageRejectsEveryTransition(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageHired, "")

	for _, stage := range []application.Stage{application.StageInterviewing, application.StageRejected, application.StageOnHold} {
		_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: stage, Actor: f.hr})
		requireKind(t, err, TransitionInvalid)
	}
	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageWithdrawn, Actor: f.candidateActor()})
	requireKind(t, err, TransitionInvalid)
	assert.Empty(t, f.emitter.Items())
}

func TestReissuedTransitionIsNoOp(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.hr})
	require.NoError(t, err)
	after, err := f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	_, err = f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.hr})
	requireKind(t, err, TransitionNoOp)

	again, err := f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, after.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, after.Version, again.Version)
	assert.Len(t, f.emitter.Items(), 1)
	assert.Len(t, f.analytics.Events(), 1)
}

func TestHoldAndResume(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageInterviewing, "")
	ctx := context.Background()

	held, err := f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Stage: application.StageOnHold, Actor: f.hr})
	require.NoError(t, err)
	assert.Equal(t, application.StageInterviewing, held.Application.HeldFrom)
	assert.Equal(t, application.StageInterviewing, held.Application.HighestStage)

	_, err = f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Stage: application.StageScreening, Actor: f.hr})
	requireKind(t, err, TransitionInvalid)

	resumed, err := f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.hr})
	require.NoError(t, err)
	assert.Equal(t, application.StageInterviewing, resumed.Application.Stage)
	assert.Empty(t, resumed.Application.HeldFrom)
}

func TestHoldWithoutRecordedStageCannotResume(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageOnHold, "")

	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageScreening, Actor: f.hr})
	requireKind(t, err, TransitionInvalid)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageRejected, Actor: f.hr})
	require.NoError(t, err)
	assert.Equal(t, notification.CategoryError, result.Notifications[0].Category)
}

func TestReviewerNotifiedForOfferStages(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageInterviewing, "")
	reviewer := f.assign(t, app.ID)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageOfferExtended, Actor: f.hr})
	require.NoError(t, err)
	require.Len(t, result.Notifications, 2)
	assert.Equal(t, f.candidate.UserID, result.Notifications[0].TargetUserID)
	assert.Equal(t, reviewer, result.Notifications[1].TargetUserID)
	assert.Equal(t, notification.CategorySuccess, result.Notifications[1].Category)

	other := f.seedForNewCandidate(t, application.StageApplied)
	f.assign(t, other.ID)
	result, err = f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: other.ID, Stage: application.StageScreening, Actor: f.hr})
	require.NoError(t, err)
	assert.Len(t, result.Notifications, 1)
}

func TestStaleWriteLosesRace(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	svc := f.build(&racingReads{Repository: f.apps})

	_, err := svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageInterviewing, Actor: f.hr})
	requireKind(t, err, TransitionStale)
	assert.ErrorIs(t, err, application.ErrStaleVersion)

	stored, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StageScreening, stored.Stage)
	assert.Empty(t, f.emitter.Items())
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	targets := []application.Stage{application.StageAssessment, application.StageInterviewing, application.StageRejected, application.StageOnHold}
	readers := &sync.WaitGroup{}
	readers.Add(len(targets))
	svc := f.build(barrierReads{Repository: f.apps, readers: readers})

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, stage := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: stage, Actor: f.hr})
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireKind(t, err, TransitionStale)
	}
	assert.Equal(t, 1, successes)
	history, err := f.apps.History(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Len(t, f.emitter.Items(), 1)
	assert.Equal(t, len(targets)-1, f.observer.counts[string(TransitionStale)])
}

func TestEmitterFailureIsWarning(t *testing.T) {
	f := newPipelineFixture(t)
	f.emitter.err = errors.New("queue down")
	app := f.seed(t, application.StageScreening, "")

	result, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageRejected, Actor: f.hr})
	require.NoError(t, err)
	require.NotNil(t, result.Warning)
	assert.Len(t, result.Warning.Failed, 1)
	assert.Empty(t, result.Notifications)
	assert.Equal(t, application.StageRejected, result.Application.Stage)

	stored, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StageRejected, stored.Stage)
}

func TestStoreFailureEmitsNothing(t *testing.T) {
	f := newPipelineFixture(t)
	app := f.seed(t, application.StageScreening, "")
	svc := f.build(failingUpdates{Repository: f.apps, err: errors.New("connection reset")})

	_, err := svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Stage: application.StageRejected, Actor: f.hr})
	requireKind(t, err, TransitionStoreFailure)
	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, common.CodeUnavailable, transitionErr.Code())
	assert.Empty(t, f.emitter.Items())
	assert.Empty(t, f.analytics.Events())
	assert.Empty(t, f.cache.Jobs())
}

func TestUnknownApplicationIsNotFound(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: common.NewUUID(), Stage: application.StageRejected, Actor: f.hr})
	assert.True(t, common.Is(err, common.CodeNotFound))
}

func TestBulkTransitionOutcomesInInputOrder(t *testing.T) {
	f := newPipelineFixture(t)
	first := f.seed(t, application.StageScreening, "")
	hired := f.seedForNewCandidate(t, application.StageHired)
	third := f.seedForNewCandidate(t, application.StageAssessment)
	missing := common.NewUUID()

	ids := []common.UUID{first.ID, hired.ID, missing, third.ID}
	outcomes := f.svc.BulkTransition(context.Background(), ids, application.StageRejected, f.hr)
	require.Len(t, outcomes, len(ids))
	for i, outcome := range outcomes {
		assert.Equal(t, ids[i], outcome.ApplicationID)
	}
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, application.StageRejected, outcomes[0].Result.Application.Stage)
	requireKind(t, outcomes[1].Err, TransitionInvalid)
	assert.True(t, common.Is(outcomes[2].Err, common.CodeNotFound))
	require.NoError(t, outcomes[3].Err)
	assert.Equal(t, application.StageRejected, outcomes[3].Result.Application.Stage)
}

func TestTransitionErrorCodes(t *testing.T) {
	cases := map[TransitionKind]common.Code{
		TransitionForbidden:    common.CodeForbidden,
		TransitionNoOp:         common.CodeConflict,
		TransitionInvalid:      common.CodeInvalidState,
		TransitionStale:        common.CodeConflict,
		TransitionStoreFailure: common.CodeUnavailable,
	}
	for kind, code := range cases {
		err := &TransitionError{Kind: kind, From: application.StageApplied, To: application.StageHired}
		assert.Equal(t, code, err.Code(), kind)
		assert.NotEmpty(t, err.Message())
		assert.True(t, IsTransitionKind(err, kind))
	}
}
