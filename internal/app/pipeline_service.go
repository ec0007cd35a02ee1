package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"talentflow/internal/common"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/candidate"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/domain/job"
	"talentflow/internal/domain/notification"
)

// Actor is the authenticated caller of a pipeline operation. OrganizationID is
// only meaningful for HR reviewers.
type Actor struct {
	UserID         common.UUID
	Role           application.Role
	OrganizationID common.UUID
}

type TransitionRequest struct {
	ApplicationID common.UUID
	Stage         application.Stage
	Actor         Actor
	Note          string
}

// TransitionResult is returned for every committed transition. Warning is set
// when the stage change was stored but some notifications could not be
// enqueued; the change is not rolled back.
type TransitionResult struct {
	Application   *application.Application
	Notifications []notification.Notification
	Warning       *NotificationWarning
}

type NotificationWarning struct {
	Failed []notification.Notification
	Err    error
}

func (w *NotificationWarning) Error() string {
	return fmt.Sprintf("%d notification(s) not enqueued: %v", len(w.Failed), w.Err)
}

func (w *NotificationWarning) Unwrap() error {
	return w.Err
}

type TransitionKind string

const (
	TransitionForbidden    TransitionKind = "forbidden"
	TransitionNoOp         TransitionKind = "no_op"
	TransitionInvalid      TransitionKind = "invalid_transition"
	TransitionStale        TransitionKind = "stale_state"
	TransitionStoreFailure TransitionKind = "store_failure"
)

// TransitionError reports why a transition was not applied.
type TransitionError struct {
	Kind          TransitionKind
	Reason        application.Reason
	ApplicationID common.UUID
	From          application.Stage
	To            application.Stage
	Err           error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition %s -> %s rejected: %s", e.From, e.To, e.Kind)
	if e.From == "" {
		msg = fmt.Sprintf("transition to %s rejected: %s", e.To, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Code maps the kind onto the service error codes used by handlers.
func (e *TransitionError) Code() common.Code {
	switch e.Kind {
	case TransitionForbidden:
		return common.CodeForbidden
	case TransitionNoOp, TransitionStale:
		return common.CodeConflict
	case TransitionInvalid:
		return common.CodeInvalidState
	case TransitionStoreFailure:
		return common.CodeUnavailable
	default:
		return common.CodeInternal
	}
}

func (e *TransitionError) Message() string {
	switch e.Kind {
	case TransitionForbidden:
		return "actor is not allowed to perform this transition"
	case TransitionNoOp:
		return "application is already in the requested stage"
	case TransitionInvalid:
		return fmt.Sprintf("cannot move application from %s to %s", e.From, e.To)
	case TransitionStale:
		return "application was modified concurrently, reload and retry"
	case TransitionStoreFailure:
		return "application store unavailable"
	default:
		return "transition failed"
	}
}

func (e *TransitionError) Details() map[string]string {
	details := map[string]string{"kind": string(e.Kind)}
	if e.Reason != "" {
		details["reason"] = string(e.Reason)
	}
	if e.From != "" {
		details["from"] = string(e.From)
	}
	if e.To != "" {
		details["to"] = string(e.To)
	}
	return details
}

func IsTransitionKind(err error, kind TransitionKind) bool {
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr.Kind == kind
	}
	return false
}

// TransitionObserver receives one outcome label per attempted transition.
type TransitionObserver interface {
	ObserveTransition(outcome string)
}

type BulkOutcome struct {
	ApplicationID common.UUID
	Result        *TransitionResult
	Err           error
}

type PipelineDependencies struct {
	Applications application.Repository
	Jobs         job.Repository
	Candidates   candidate.Repository
	Emitter      notification.Emitter
	Analytics    analytics.Repository
	Cache        funnel.Cache
	Observer     TransitionObserver
	Logger       *slog.Logger
	// BulkConcurrency bounds parallel transitions in BulkTransition.
	BulkConcurrency int
	// BulkRate paces BulkTransition; zero disables pacing.
	BulkRate rate.Limit
	Clock    func() time.Time
}

type PipelineService struct {
	apps            application.Repository
	jobs            job.Repository
	candidates      candidate.Repository
	emitter         notification.Emitter
	analytics       analytics.Repository
	cache           funnel.Cache
	observer        TransitionObserver
	logger          *slog.Logger
	bulkConcurrency int
	bulkLimiter     *rate.Limiter
	now             func() time.Time
}

func NewPipelineService(deps PipelineDependencies) *PipelineService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	concurrency := deps.BulkConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	var limiter *rate.Limiter
	if deps.BulkRate > 0 {
		limiter = rate.NewLimiter(deps.BulkRate, concurrency)
	}
	return &PipelineService{
		apps:            deps.Applications,
		jobs:            deps.Jobs,
		candidates:      deps.Candidates,
		emitter:         deps.Emitter,
		analytics:       deps.Analytics,
		cache:           deps.Cache,
		observer:        deps.Observer,
		logger:          logger,
		bulkConcurrency: concurrency,
		bulkLimiter:     limiter,
		now:             clock,
	}
}

// Transition moves one application to the requested stage. Nothing is written
// and nothing is emitted unless the conditional write succeeds.
func (s *PipelineService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	result, err := s.transition(ctx, req)
	s.observe(err)
	return result, err
}

func (s *PipelineService) transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.ApplicationID == "" {
		return nil, common.NewValidationError("invalid transition", map[string]string{"application_id": "application id is required"})
	}
	app, err := s.apps.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, loadFailure(req, err)
	}
	j, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, loadFailure(req, err)
	}
	candidateUserID, err := s.authorize(ctx, *app, *j, req.Actor)
	if err != nil {
		return nil, err
	}

	decision := application.Validate(app.Position(), req.Stage, req.Actor.Role)
	if !decision.Allowed {
		return nil, &TransitionError{Kind: kindForReason(decision.Reason), Reason: decision.Reason, ApplicationID: app.ID, From: app.Stage, To: req.Stage}
	}

	now := s.now()
	patch := application.StagePatch{
		Stage:          req.Stage,
		HighestStage:   application.Reached(app.HighestStage, req.Stage),
		StageChangedAt: now,
		Change: application.StageChange{
			ApplicationID: app.ID,
			FromStage:     app.Stage,
			ToStage:       req.Stage,
			ActorID:       req.Actor.UserID,
			ActorRole:     req.Actor.Role,
			Note:          strings.TrimSpace(req.Note),
			ChangedAt:     now,
		},
	}
	if req.Stage == application.StageOnHold {
		patch.HeldFrom = app.Stage
	}
	updated, err := s.apps.UpdateStage(ctx, app.ID, app.Version, patch)
	if err != nil {
		if errors.Is(err, application.ErrStaleVersion) {
			return nil, &TransitionError{Kind: TransitionStale, ApplicationID: app.ID, From: app.Stage, To: req.Stage, Err: err}
		}
		if common.Is(err, common.CodeNotFound) {
			return nil, err
		}
		return nil, &TransitionError{Kind: TransitionStoreFailure, ApplicationID: app.ID, From: app.Stage, To: req.Stage, Err: err}
	}

	result := &TransitionResult{Application: updated}
	result.Notifications, result.Warning = s.notify(ctx, *updated, *j, app.Stage, candidateUserID, now)

	actorID := req.Actor.UserID
	if err := s.analytics.Create(ctx, analytics.Event{Name: "application.stage_changed", UserID: &actorID, Payload: analyticsPayload(ctx, map[string]string{
		"application_id": updated.ID.String(),
		"job_id":         updated.JobID.String(),
		"from":           string(app.Stage),
		"to":             string(updated.Stage),
		"actor_role":     string(req.Actor.Role),
	})}); err != nil {
		s.logger.Warn("analytics event failed", slog.String("application_id", updated.ID.String()), slog.String("error", err.Error()))
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, j.ID, j.OrganizationID); err != nil {
			s.logger.Warn("funnel cache invalidation failed", slog.String("job_id", j.ID.String()), slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// BulkTransition applies the same stage to every id independently. Outcomes are
// returned in input order; one failure never affects the others.
func (s *PipelineService) BulkTransition(ctx context.Context, ids []common.UUID, stage application.Stage, actor Actor) []BulkOutcome {
	outcomes := make([]BulkOutcome, len(ids))
	var group errgroup.Group
	group.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		outcomes[i].ApplicationID = id
		group.Go(func() error {
			if s.bulkLimiter != nil {
				if err := s.bulkLimiter.Wait(ctx); err != nil {
					outcomes[i].Err = common.NewError(common.CodeUnavailable, "bulk transition cancelled", err)
					return nil
				}
			}
			outcomes[i].Result, outcomes[i].Err = s.Transition(ctx, TransitionRequest{ApplicationID: id, Stage: stage, Actor: actor})
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// authorize applies organization scoping and returns the user id the
// candidate notification is addressed to.
func (s *PipelineService) authorize(ctx context.Context, app application.Application, j job.Job, actor Actor) (common.UUID, error) {
	forbidden := &TransitionError{Kind: TransitionForbidden, Reason: application.ReasonForbidden, ApplicationID: app.ID, From: app.Stage}
	profile, err := s.candidates.GetByID(ctx, app.CandidateID)
	if err != nil && !common.Is(err, common.CodeNotFound) {
		return "", &TransitionError{Kind: TransitionStoreFailure, ApplicationID: app.ID, From: app.Stage, Err: err}
	}
	switch actor.Role {
	case application.RoleHRReviewer:
		if actor.OrganizationID == "" || actor.OrganizationID != j.OrganizationID {
			return "", forbidden
		}
	case application.RoleCandidate:
		if profile == nil || actor.UserID == "" || profile.UserID != actor.UserID {
			return "", forbidden
		}
	default:
		return "", forbidden
	}
	if profile == nil {
		return app.CandidateID, nil
	}
	return profile.UserID, nil
}

func (s *PipelineService) notify(ctx context.Context, app application.Application, j job.Job, from application.Stage, candidateUserID common.UUID, now time.Time) ([]notification.Notification, *NotificationWarning) {
	items := composeNotifications(app, j, candidateUserID, now)
	if s.emitter == nil {
		return nil, &NotificationWarning{Failed: items, Err: errors.New("notification emitter not configured")}
	}
	var emitted, failed []notification.Notification
	var errs []error
	for _, item := range items {
		if err := s.emitter.Emit(ctx, item); err != nil {
			failed = append(failed, item)
			errs = append(errs, err)
			s.logger.Warn("notification emit failed",
				slog.String("application_id", app.ID.String()),
				slog.String("target_user_id", item.TargetUserID.String()),
				slog.String("from", string(from)),
				slog.String("to", string(app.Stage)),
				slog.String("error", err.Error()))
			continue
		}
		emitted = append(emitted, item)
	}
	if len(failed) == 0 {
		return emitted, nil
	}
	return emitted, &NotificationWarning{Failed: failed, Err: errors.Join(errs...)}
}

func composeNotifications(app application.Application, j job.Job, candidateUserID common.UUID, now time.Time) []notification.Notification {
	category := categoryForStage(app.Stage)
	items := []notification.Notification{{
		ID:                  common.NewUUID(),
		TargetUserID:        candidateUserID,
		Message:             fmt.Sprintf("Your application for %s at %s is now: %s", j.Title, j.Company, app.Stage.Label()),
		Category:            category,
		SourceApplicationID: app.ID,
		CreatedAt:           now,
	}}
	if app.ReviewerID != nil && *app.ReviewerID != "" && notifiesReviewer(app.Stage) {
		items = append(items, notification.Notification{
			ID:                  common.NewUUID(),
			TargetUserID:        *app.ReviewerID,
			Message:             fmt.Sprintf("Application %s for %s moved to %s", app.ID, j.Title, app.Stage.Label()),
			Category:            category,
			SourceApplicationID: app.ID,
			CreatedAt:           now,
		})
	}
	return items
}

func notifiesReviewer(stage application.Stage) bool {
	switch stage {
	case application.StageInterviewing, application.StageOfferExtended, application.StageOfferAccepted, application.StageOfferRejected:
		return true
	default:
		return false
	}
}

func categoryForStage(stage application.Stage) notification.Category {
	switch stage {
	case application.StageRejected, application.StageOfferRejected:
		return notification.CategoryError
	case application.StageHired, application.StageOfferAccepted, application.StageOfferExtended:
		return notification.CategorySuccess
	default:
		return notification.CategoryInfo
	}
}

func kindForReason(reason application.Reason) TransitionKind {
	switch reason {
	case application.ReasonForbidden:
		return TransitionForbidden
	case application.ReasonNoOp:
		return TransitionNoOp
	default:
		return TransitionInvalid
	}
}

func loadFailure(req TransitionRequest, err error) error {
	if common.Is(err, common.CodeNotFound) {
		return err
	}
	return &TransitionError{Kind: TransitionStoreFailure, ApplicationID: req.ApplicationID, To: req.Stage, Err: err}
}

func (s *PipelineService) observe(err error) {
	if s.observer == nil {
		return
	}
	if err == nil {
		s.observer.ObserveTransition("committed")
		return
	}
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		s.observer.ObserveTransition(string(transitionErr.Kind))
		return
	}
	s.observer.ObserveTransition(string(common.CodeOf(err)))
}
