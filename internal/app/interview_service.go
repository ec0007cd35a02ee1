package app

import (
	"context"
	"strings"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/interview"
	"talentflow/internal/domain/job"
)

type InterviewService struct {
	repo      interview.Repository
	apps      application.Repository
	jobs      job.Repository
	analytics analytics.Repository
	now       func() time.Time
}

func NewInterviewService(repo interview.Repository, apps application.Repository, jobs job.Repository, analytics analytics.Repository) *InterviewService {
	return &InterviewService{repo: repo, apps: apps, jobs: jobs, analytics: analytics, now: func() time.Time { return time.Now().UTC() }}
}

// Schedule books an interview for an application that is currently in the
// interviewing stage.
func (s *InterviewService) Schedule(ctx context.Context, item interview.Interview, actor Actor) (*interview.Interview, error) {
	if actor.Role != application.RoleHRReviewer {
		return nil, common.NewError(common.CodeForbidden, "only reviewers can schedule interviews", nil)
	}
	fields := map[string]string{}
	if item.ScheduledAt.IsZero() {
		fields["scheduled_at"] = "scheduled time is required"
	} else if item.ScheduledAt.Before(s.now()) {
		fields["scheduled_at"] = "scheduled time must be in the future"
	}
	if item.InterviewerID == "" {
		item.InterviewerID = actor.UserID
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid interview", fields)
	}
	app, err := s.apps.GetByID(ctx, item.ApplicationID)
	if err != nil {
		return nil, err
	}
	j, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if j.OrganizationID != actor.OrganizationID {
		return nil, common.NewError(common.CodeForbidden, "application belongs to another organization", nil)
	}
	if app.Stage != application.StageInterviewing {
		return nil, common.NewError(common.CodeValidation, "application is not in the interviewing stage", nil)
	}
	item.Location = strings.TrimSpace(item.Location)
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "interview.scheduled", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"application_id": app.ID.String(), "interview_id": created.ID.String()})})
	return created, nil
}

func (s *InterviewService) ListByApplication(ctx context.Context, applicationID common.UUID, actor Actor) ([]interview.Interview, error) {
	if actor.Role != application.RoleHRReviewer {
		return nil, common.NewError(common.CodeForbidden, "only reviewers can list interviews", nil)
	}
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	j, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if j.OrganizationID != actor.OrganizationID {
		return nil, common.NewError(common.CodeForbidden, "application belongs to another organization", nil)
	}
	return s.repo.ListByApplication(ctx, applicationID)
}
