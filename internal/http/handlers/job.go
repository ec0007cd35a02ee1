package handlers

import (
	"net/http"

	"talentflow/internal/app"
	"talentflow/internal/domain/job"
	"talentflow/internal/http/response"
)

type JobHandler struct {
	jobs *app.JobService
}

func NewJobHandler(jobs *app.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type jobRequest struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Location string   `json:"location"`
	Skills   []string `json:"skills"`
	Status   string   `json:"status"`
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	created, err := h.jobs.Create(r.Context(), job.Job{
		OrganizationID: actor.OrganizationID,
		Title:          req.Title,
		Company:        req.Company,
		Location:       req.Location,
		Skills:         req.Skills,
		Status:         job.Status(req.Status),
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

type jobStatusRequest struct {
	Status string `json:"status"`
}

func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	jobID, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req jobStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	updated, err := h.jobs.UpdateStatus(r.Context(), actor.OrganizationID, jobID, job.Status(req.Status))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *JobHandler) ListByOrganization(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	items, err := h.jobs.ListByOrganization(r.Context(), actor.OrganizationID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []job.Job{}
	}
	response.JSON(w, http.StatusOK, items)
}
