package app

import (
	"context"
	"strconv"
	"strings"

	"talentflow/internal/common"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/candidate"
	"talentflow/internal/domain/job"
)

type ApplicationService struct {
	repo       application.Repository
	jobs       job.Repository
	candidates candidate.Repository
	analytics  analytics.Repository
}

func NewApplicationService(repo application.Repository, jobs job.Repository, candidates candidate.Repository, analytics analytics.Repository) *ApplicationService {
	return &ApplicationService{repo: repo, jobs: jobs, candidates: candidates, analytics: analytics}
}

// Apply creates an application at the applied stage. Candidates apply for
// themselves; reviewers may enter applications for jobs of their organization.
func (s *ApplicationService) Apply(ctx context.Context, jobID, candidateID common.UUID, score *int, actor Actor) (*application.Application, error) {
	if score != nil && (*score < 0 || *score > 100) {
		return nil, common.NewValidationError("invalid application", map[string]string{"score": "score must be between 0 and 100"})
	}
	profile, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil, common.NewError(common.CodeValidation, "candidate profile is required", nil)
		}
		return nil, err
	}
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case application.RoleCandidate:
		if profile.UserID != actor.UserID {
			return nil, common.NewError(common.CodeForbidden, "candidates can only apply for themselves", nil)
		}
	case application.RoleHRReviewer:
		if j.OrganizationID != actor.OrganizationID {
			return nil, common.NewError(common.CodeForbidden, "job belongs to another organization", nil)
		}
	default:
		return nil, common.NewError(common.CodeForbidden, "insufficient role", nil)
	}
	if !j.AcceptsApplications() {
		return nil, common.NewError(common.CodeValidation, "job is not accepting applications", nil)
	}
	if _, err := s.repo.FindByJobAndCandidate(ctx, jobID, candidateID); err == nil {
		return nil, common.NewError(common.CodeConflict, "already applied", nil)
	} else if !common.Is(err, common.CodeNotFound) {
		return nil, err
	}
	app := application.Application{
		JobID:        jobID,
		CandidateID:  candidateID,
		Stage:        application.StageApplied,
		HighestStage: application.StageApplied,
		Score:        score,
	}
	created, err := s.repo.Create(ctx, app)
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "application.created", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"application_id": created.ID.String(), "job_id": jobID.String()})})
	return created, nil
}

// Assign sets the reviewer responsible for an application. Stage is untouched.
func (s *ApplicationService) Assign(ctx context.Context, id, reviewerID common.UUID, actor Actor) (*application.Application, error) {
	if reviewerID == "" {
		return nil, common.NewValidationError("invalid reviewer", map[string]string{"reviewer_id": "reviewer id is required"})
	}
	app, err := s.ownedByReviewerOrg(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if app.ReviewerID != nil && *app.ReviewerID == reviewerID {
		return app, nil
	}
	updated, err := s.repo.UpdateDetails(ctx, id, app.Version, application.DetailsPatch{ReviewerID: &reviewerID})
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "application.reviewer_assigned", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"application_id": id.String(), "reviewer_id": reviewerID.String()})})
	return updated, nil
}

func (s *ApplicationService) UpdateNotes(ctx context.Context, id common.UUID, notes string, actor Actor) (*application.Application, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > 4000 {
		return nil, common.NewValidationError("invalid notes", map[string]string{"notes": "notes must be at most 4000 characters"})
	}
	app, err := s.ownedByReviewerOrg(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateDetails(ctx, id, app.Version, application.DetailsPatch{Notes: &notes})
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "application.notes_updated", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"application_id": id.String(), "length": strconv.Itoa(len(notes))})})
	return updated, nil
}

func (s *ApplicationService) ownedByReviewerOrg(ctx context.Context, id common.UUID, actor Actor) (*application.Application, error) {
	if actor.Role != application.RoleHRReviewer {
		return nil, common.NewError(common.CodeForbidden, "only reviewers can edit applications", nil)
	}
	app, err := s.repo.GetByID(ctx, id)
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
	return app, nil
}

// Get returns an application visible to actor: its own candidate or a
// reviewer of the job's organization.
func (s *ApplicationService) Get(ctx context.Context, id common.UUID, actor Actor) (*application.Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, *app, actor); err != nil {
		return nil, err
	}
	return app, nil
}

// ListByCandidate returns the applications of one candidate. The candidate
// sees all of them; a reviewer only those for jobs of their organization.
func (s *ApplicationService) ListByCandidate(ctx context.Context, candidateID common.UUID, actor Actor) ([]application.Application, error) {
	switch actor.Role {
	case application.RoleCandidate:
		profile, err := s.candidates.GetByID(ctx, candidateID)
		if err != nil && !common.Is(err, common.CodeNotFound) {
			return nil, err
		}
		if profile == nil || profile.UserID != actor.UserID {
			return nil, common.NewError(common.CodeForbidden, "applications belong to another candidate", nil)
		}
		return s.repo.ListByCandidate(ctx, candidateID)
	case application.RoleHRReviewer:
		items, err := s.repo.ListByCandidate(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		orgOf := make(map[common.UUID]common.UUID)
		visible := make([]application.Application, 0, len(items))
		for _, item := range items {
			orgID, ok := orgOf[item.JobID]
			if !ok {
				j, err := s.jobs.GetByID(ctx, item.JobID)
				if err != nil {
					return nil, err
				}
				orgID = j.OrganizationID
				orgOf[item.JobID] = orgID
			}
			if orgID == actor.OrganizationID {
				visible = append(visible, item)
			}
		}
		return visible, nil
	default:
		return nil, common.NewError(common.CodeForbidden, "insufficient role", nil)
	}
}

// ListByJob returns every application of a job in the reviewer's organization.
func (s *ApplicationService) ListByJob(ctx context.Context, jobID common.UUID, actor Actor) ([]application.Application, error) {
	if actor.Role != application.RoleHRReviewer {
		return nil, common.NewError(common.CodeForbidden, "only reviewers can list job applications", nil)
	}
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.OrganizationID != actor.OrganizationID {
		return nil, common.NewError(common.CodeForbidden, "job belongs to another organization", nil)
	}
	return s.repo.List(ctx, application.Scope{JobID: jobID})
}

func (s *ApplicationService) History(ctx context.Context, id common.UUID, actor Actor) ([]application.StageChange, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *ApplicationService) ensureVisible(ctx context.Context, app application.Application, actor Actor) error {
	switch actor.Role {
	case application.RoleCandidate:
		profile, err := s.candidates.GetByID(ctx, app.CandidateID)
		if err != nil {
			if common.Is(err, common.CodeNotFound) {
				return common.NewError(common.CodeForbidden, "application belongs to another candidate", nil)
			}
			return err
		}
		if profile.UserID != actor.UserID {
			return common.NewError(common.CodeForbidden, "application belongs to another candidate", nil)
		}
		return nil
	case application.RoleHRReviewer:
		j, err := s.jobs.GetByID(ctx, app.JobID)
		if err != nil {
			return err
		}
		if j.OrganizationID != actor.OrganizationID {
			return common.NewError(common.CodeForbidden, "application belongs to another organization", nil)
		}
		return nil
	default:
		return common.NewError(common.CodeForbidden, "insufficient role", nil)
	}
}
