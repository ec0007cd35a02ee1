package http

import (
	"net/http"
	"strings"
	"time"

	"talentflow/internal/domain/application"
	"talentflow/internal/http/handlers"
	"talentflow/internal/http/metrics"
	httpmw "talentflow/internal/http/middleware"
)

type RouterDependencies struct {
	ApplicationHandler *handlers.ApplicationHandler
	JobHandler         *handlers.JobHandler
	FunnelHandler      *handlers.FunnelHandler
	AuthMiddleware     *httpmw.AuthMiddleware
	Metrics            *metrics.Collector
	Limiter            httpmw.Limiter
	RateLimitPerMin    int
	MaxBodyBytes       int64
	RequestTimeout     time.Duration
}

type Router struct {
	deps    RouterDependencies
	handler http.Handler
}

const defaultMaxBodyBytes = 1 << 20

func NewRouter(deps RouterDependencies) http.Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	r := &Router{deps: deps}
	r.handler = httpmw.Chain(r.baseHandler(), httpmw.RequestID, httpmw.Logging, httpmw.BodyLimit(deps.MaxBodyBytes), httpmw.Recover, httpmw.Metrics(deps.Metrics), httpmw.Timeout(deps.RequestTimeout))
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) baseHandler() http.Handler {
	metricsHandler := metrics.NewHandler(r.deps.Metrics)
	protected := r.deps.AuthMiddleware.Authenticate(
		httpmw.RateLimit(r.deps.Limiter, httpmw.ActorOrIPKey("api"), r.deps.RateLimitPerMin, time.Minute)(http.HandlerFunc(r.handleProtected)),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path

		switch {
		case req.Method == http.MethodGet && path == "/health":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		case req.Method == http.MethodGet && path == "/metrics":
			metricsHandler.ServeHTTP(w, req)
			return
		}

		if strings.HasPrefix(path, "/applications") || strings.HasPrefix(path, "/jobs") || strings.HasPrefix(path, "/organizations/") || strings.HasPrefix(path, "/candidates/") {
			protected.ServeHTTP(w, req)
			return
		}

		http.NotFound(w, req)
	})
}

func (r *Router) handleProtected(w http.ResponseWriter, req *http.Request) {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	method := req.Method
	hrOnly := func(h http.HandlerFunc) {
		httpmw.RequireRole(application.RoleHRReviewer)(h).ServeHTTP(w, req)
	}

	switch {
	case method == http.MethodPost && len(parts) == 1 && parts[0] == "applications":
		r.deps.ApplicationHandler.Apply(w, req)
		return
	case method == http.MethodPost && len(parts) == 3 && parts[0] == "applications" && parts[1] == "transitions" && parts[2] == "bulk":
		hrOnly(r.deps.ApplicationHandler.BulkTransition)
		return
	case method == http.MethodGet && len(parts) == 2 && parts[0] == "applications":
		r.deps.ApplicationHandler.Get(w, req)
		return
	case method == http.MethodPost && len(parts) == 3 && parts[0] == "applications" && parts[2] == "transitions":
		r.deps.ApplicationHandler.Transition(w, req)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "applications" && parts[2] == "history":
		r.deps.ApplicationHandler.History(w, req)
		return
	case method == http.MethodPatch && len(parts) == 3 && parts[0] == "applications" && parts[2] == "reviewer":
		hrOnly(r.deps.ApplicationHandler.UpdateReviewer)
		return
	case method == http.MethodPost && len(parts) == 3 && parts[0] == "applications" && parts[2] == "interviews":
		hrOnly(r.deps.ApplicationHandler.ScheduleInterview)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "applications" && parts[2] == "interviews":
		hrOnly(r.deps.ApplicationHandler.ListInterviews)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "candidates" && parts[2] == "applications":
		r.deps.ApplicationHandler.ListByCandidate(w, req)
		return
	case method == http.MethodPost && len(parts) == 1 && parts[0] == "jobs":
		hrOnly(r.deps.JobHandler.Create)
		return
	case method == http.MethodGet && len(parts) == 1 && parts[0] == "jobs":
		hrOnly(r.deps.JobHandler.ListByOrganization)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "jobs" && parts[2] == "applications":
		hrOnly(r.deps.ApplicationHandler.ListByJob)
		return
	case method == http.MethodPatch && len(parts) == 3 && parts[0] == "jobs" && parts[2] == "status":
		hrOnly(r.deps.JobHandler.UpdateStatus)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "jobs" && parts[2] == "funnel":
		hrOnly(r.deps.FunnelHandler.Job)
		return
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "organizations" && parts[2] == "funnel":
		hrOnly(r.deps.FunnelHandler.Organization)
		return
	}

	http.NotFound(w, req)
}
