package app

import (
	"context"
	"fmt"
	"strings"

	"talentflow/internal/common"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/job"
)

type JobService struct {
	repo      job.Repository
	analytics analytics.Repository
}

func NewJobService(repo job.Repository, analytics analytics.Repository) *JobService {
	return &JobService{repo: repo, analytics: analytics}
}

func (s *JobService) Create(ctx context.Context, j job.Job) (*job.Job, error) {
	if j.Status == "" {
		j.Status = job.StatusDraft
	}
	status, err := normalizeJobStatus(j.Status)
	if err != nil {
		return nil, err
	}
	j.Status = status
	j.Title = strings.TrimSpace(j.Title)
	j.Company = strings.TrimSpace(j.Company)
	if err := validateJob(j); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, j)
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "job.created", Payload: analyticsPayload(ctx, map[string]string{"job_id": created.ID.String(), "organization_id": j.OrganizationID.String()})})
	return created, nil
}

// UpdateStatus changes the job status. Closing or filling a job stops new
// applications but leaves existing ones free to move through the pipeline.
func (s *JobService) UpdateStatus(ctx context.Context, organizationID, jobID common.UUID, status job.Status) (*job.Job, error) {
	j, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.OrganizationID != organizationID {
		return nil, common.NewError(common.CodeForbidden, "job belongs to another organization", nil)
	}
	normalized, err := normalizeJobStatus(status)
	if err != nil {
		return nil, err
	}
	if normalized == j.Status {
		return j, nil
	}
	if normalized == job.StatusOpen {
		if err := validateJob(*j); err != nil {
			return nil, err
		}
	}
	previous := j.Status
	j.Status = normalized
	updated, err := s.repo.Update(ctx, *j)
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "job.status_changed", Payload: analyticsPayload(ctx, map[string]string{"job_id": updated.ID.String(), "from": string(previous), "status": string(normalized)})})
	return updated, nil
}

func (s *JobService) Get(ctx context.Context, id common.UUID) (*job.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *JobService) ListByOrganization(ctx context.Context, organizationID common.UUID) ([]job.Job, error) {
	return s.repo.ListByOrganization(ctx, organizationID)
}

func validateJob(j job.Job) error {
	fields := map[string]string{}
	if j.OrganizationID == "" {
		fields["organization_id"] = "organization id is required"
	}
	if len(j.Title) < 2 || len(j.Title) > 120 {
		fields["title"] = "title must be between 2 and 120 characters"
	}
	if j.Company == "" {
		fields["company"] = "company is required"
	}
	for i, skill := range j.Skills {
		if strings.TrimSpace(skill) == "" {
			fields[fmt.Sprintf("skills[%d]", i)] = "skill must not be empty"
		}
	}
	if len(fields) > 0 {
		return common.NewValidationError("invalid job", fields)
	}
	return nil
}

func normalizeJobStatus(status job.Status) (job.Status, error) {
	normalized := job.Status(strings.ToLower(strings.TrimSpace(string(status))))
	switch normalized {
	case "published":
		return job.StatusOpen, nil
	case "hidden", "paused":
		return job.StatusOnHold, nil
	case job.StatusDraft, job.StatusOpen, job.StatusOnHold, job.StatusClosed, job.StatusFilled:
		return normalized, nil
	default:
		return "", common.NewValidationError("invalid job status", map[string]string{"status": "status must be draft, open, on_hold, closed, or filled"})
	}
}
