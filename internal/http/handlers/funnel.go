package handlers

import (
	"net/http"
	"strconv"
	"time"

	"talentflow/internal/app"
	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/http/response"
)

type FunnelHandler struct {
	funnels *app.FunnelService
	jobs    *app.JobService
}

func NewFunnelHandler(funnels *app.FunnelService, jobs *app.JobService) *FunnelHandler {
	return &FunnelHandler{funnels: funnels, jobs: jobs}
}

type conversionResponse struct {
	From      application.Stage `json:"from"`
	To        application.Stage `json:"to"`
	Reached   int               `json:"reached"`
	Converted int               `json:"converted"`
	Rate      float64           `json:"rate"`
	Percent   string            `json:"percent"`
	NoData    bool              `json:"no_data"`
}

type funnelResponse struct {
	Scope              application.Scope             `json:"scope"`
	Total              int                           `json:"total"`
	StageCounts        map[application.Stage]int     `json:"stage_counts"`
	Conversions        []conversionResponse          `json:"conversions"`
	AverageDaysInStage map[application.Stage]float64 `json:"average_days_in_stage"`
	ComputedAt         time.Time                     `json:"computed_at"`
}

func newFunnelResponse(snapshot *funnel.Snapshot) funnelResponse {
	resp := funnelResponse{
		Scope:              snapshot.Scope,
		Total:              snapshot.Total,
		StageCounts:        snapshot.StageCounts,
		AverageDaysInStage: snapshot.AverageDaysInStage,
		ComputedAt:         snapshot.ComputedAt,
	}
	for _, conversion := range snapshot.Conversions() {
		resp.Conversions = append(resp.Conversions, conversionResponse{
			From:      conversion.From,
			To:        conversion.To,
			Reached:   conversion.Reached,
			Converted: conversion.Converted,
			Rate:      conversion.Value,
			Percent:   conversion.Percent(),
			NoData:    !conversion.Defined,
		})
	}
	return resp
}

func (h *FunnelHandler) Job(w http.ResponseWriter, r *http.Request) {
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
	j, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if j.OrganizationID != actor.OrganizationID {
		response.Error(w, r, common.NewError(common.CodeForbidden, "job belongs to another organization", nil))
		return
	}
	h.write(w, r, application.Scope{JobID: jobID})
}

func (h *FunnelHandler) Organization(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	orgID, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if orgID != actor.OrganizationID {
		response.Error(w, r, common.NewError(common.CodeForbidden, "organization does not match token", nil))
		return
	}
	h.write(w, r, application.Scope{OrganizationID: orgID})
}

func (h *FunnelHandler) write(w http.ResponseWriter, r *http.Request, scope application.Scope) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	var snapshot *funnel.Snapshot
	var err error
	if refresh {
		snapshot, err = h.funnels.Refresh(r.Context(), scope)
	} else {
		snapshot, err = h.funnels.Compute(r.Context(), scope)
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, newFunnelResponse(snapshot))
}
