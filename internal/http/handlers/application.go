package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"talentflow/internal/app"
	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/interview"
	"talentflow/internal/domain/notification"
	"talentflow/internal/http/middleware"
	"talentflow/internal/http/response"
)

type ApplicationHandler struct {
	applications *app.ApplicationService
	pipeline     *app.PipelineService
	interviews   *app.InterviewService
	limiter      middleware.Limiter
	bulkMax      int
}

func NewApplicationHandler(applications *app.ApplicationService, pipeline *app.PipelineService, interviews *app.InterviewService, limiter middleware.Limiter, bulkMax int) *ApplicationHandler {
	if bulkMax <= 0 {
		bulkMax = 500
	}
	return &ApplicationHandler{applications: applications, pipeline: pipeline, interviews: interviews, limiter: limiter, bulkMax: bulkMax}
}

type applyRequest struct {
	JobID       string `json:"job_id"`
	CandidateID string `json:"candidate_id"`
	Score       *int   `json:"score"`
}

func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	jobID, err := parseUUIDField("job_id", req.JobID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	candidateID, err := parseUUIDField("candidate_id", req.CandidateID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if h.limiter != nil {
		key := "apply:" + jobID.String() + ":" + actor.UserID.String()
		if !h.limiter.Allow(key, 3, time.Minute) {
			response.Error(w, r, common.NewError(common.CodeRateLimited, "apply rate limit exceeded", nil))
			return
		}
	}
	created, err := h.applications.Apply(r.Context(), jobID, candidateID, req.Score, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	item, err := h.applications.Get(r.Context(), id, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, item)
}

type transitionRequest struct {
	Stage string `json:"stage"`
	Note  string `json:"note"`
}

type transitionResponse struct {
	Application   *application.Application    `json:"application"`
	Notifications []notification.Notification `json:"notifications"`
	Warning       string                      `json:"warning,omitempty"`
}

func newTransitionResponse(result *app.TransitionResult) transitionResponse {
	resp := transitionResponse{Application: result.Application, Notifications: result.Notifications}
	if resp.Notifications == nil {
		resp.Notifications = []notification.Notification{}
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	return resp
}

func (h *ApplicationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	stage, err := stageFromRequest(req.Stage)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	result, err := h.pipeline.Transition(r.Context(), app.TransitionRequest{ApplicationID: id, Stage: stage, Actor: actor, Note: req.Note})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransitionResponse(result))
}

type bulkTransitionRequest struct {
	ApplicationIDs []string `json:"application_ids"`
	Stage          string   `json:"stage"`
}

type bulkOutcome struct {
	ApplicationID string              `json:"application_id"`
	Status        string              `json:"status"`
	Result        *transitionResponse `json:"result,omitempty"`
	Error         *response.ErrorBody `json:"error,omitempty"`
}

func (h *ApplicationHandler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req bulkTransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if len(req.ApplicationIDs) == 0 {
		response.Error(w, r, common.NewValidationError("invalid request", map[string]string{"application_ids": "at least one application id is required"}))
		return
	}
	if len(req.ApplicationIDs) > h.bulkMax {
		response.Error(w, r, common.NewValidationError("invalid request", map[string]string{"application_ids": "too many application ids"}))
		return
	}
	stage, err := stageFromRequest(req.Stage)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	ids := make([]common.UUID, 0, len(req.ApplicationIDs))
	for _, raw := range req.ApplicationIDs {
		id, err := parseUUIDField("application_ids", raw)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		ids = append(ids, id)
	}
	outcomes := h.pipeline.BulkTransition(r.Context(), ids, stage, actor)
	items := make([]bulkOutcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		item := bulkOutcome{ApplicationID: outcome.ApplicationID.String(), Status: "ok"}
		if outcome.Err != nil {
			status, body := response.Describe(outcome.Err)
			if status >= http.StatusInternalServerError {
				response.LogFailure(r, body.Code, outcome.Err)
			}
			item.Status = "error"
			item.Error = &body
		} else {
			resp := newTransitionResponse(outcome.Result)
			item.Result = &resp
		}
		items = append(items, item)
	}
	response.JSON(w, http.StatusOK, map[string]any{"results": items})
}

func (h *ApplicationHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	items, err := h.applications.History(r.Context(), id, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []application.StageChange{}
	}
	response.JSON(w, http.StatusOK, items)
}

// ListByJob serves GET /jobs/{id}/applications.
func (h *ApplicationHandler) ListByJob(w http.ResponseWriter, r *http.Request) {
	h.listApplications(w, r, h.applications.ListByJob)
}

// ListByCandidate serves GET /candidates/{id}/applications.
func (h *ApplicationHandler) ListByCandidate(w http.ResponseWriter, r *http.Request) {
	h.listApplications(w, r, h.applications.ListByCandidate)
}

func (h *ApplicationHandler) listApplications(w http.ResponseWriter, r *http.Request, list func(context.Context, common.UUID, app.Actor) ([]application.Application, error)) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	items, err := list(r.Context(), id, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []application.Application{}
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *ApplicationHandler) ListInterviews(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	items, err := h.interviews.ListByApplication(r.Context(), id, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []interview.Interview{}
	}
	response.JSON(w, http.StatusOK, items)
}

type reviewerRequest struct {
	ReviewerID string  `json:"reviewer_id"`
	Notes      *string `json:"notes"`
}

func (h *ApplicationHandler) UpdateReviewer(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req reviewerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	var updated *application.Application
	if strings.TrimSpace(req.ReviewerID) != "" {
		reviewerID, err := parseUUIDField("reviewer_id", req.ReviewerID)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		if updated, err = h.applications.Assign(r.Context(), id, reviewerID, actor); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	if req.Notes != nil {
		if updated, err = h.applications.UpdateNotes(r.Context(), id, *req.Notes, actor); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	if updated == nil {
		response.Error(w, r, common.NewValidationError("invalid request", map[string]string{"reviewer_id": "reviewer_id or notes is required"}))
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

type scheduleInterviewRequest struct {
	InterviewerID string    `json:"interviewer_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Location      string    `json:"location"`
}

func (h *ApplicationHandler) ScheduleInterview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req scheduleInterviewRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	item := interview.Interview{ApplicationID: id, ScheduledAt: req.ScheduledAt, Location: req.Location}
	if strings.TrimSpace(req.InterviewerID) != "" {
		interviewerID, err := parseUUIDField("interviewer_id", req.InterviewerID)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		item.InterviewerID = interviewerID
	}
	created, err := h.interviews.Schedule(r.Context(), item, actor)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

// stageFromRequest accepts canonical and legacy stage names. Unknown names
// are passed through so the validator reports them as invalid transitions.
func stageFromRequest(value string) (application.Stage, error) {
	if strings.TrimSpace(value) == "" {
		return "", common.NewValidationError("invalid request", map[string]string{"stage": "stage is required"})
	}
	stage, err := application.ParseStage(value)
	if err != nil {
		return application.Stage(strings.TrimSpace(value)), nil
	}
	return stage, nil
}
