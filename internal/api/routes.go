package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chains
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	operator := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		RequireOperator(),
	)

	// Actions
	mux.Handle("GET /api/v1/projects/{project_id}/actions", chain(http.HandlerFunc(h.ListActions)))
	mux.Handle("POST /api/v1/projects/{project_id}/actions/{action_id}/preview", chain(http.HandlerFunc(h.PreviewAction)))

	// Runs
	mux.Handle("POST /api/v1/projects/{project_id}/runs", chain(http.HandlerFunc(h.SubmitRun)))
	mux.Handle("GET /api/v1/projects/{project_id}/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/stuck", chain(http.HandlerFunc(h.ListStuckRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/sends", chain(http.HandlerFunc(h.ListRunSends)))
	mux.Handle("POST /api/v1/runs/{id}/retry", operator(http.HandlerFunc(h.RetryRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", operator(http.HandlerFunc(h.CancelRun)))

	// Digest settings
	mux.Handle("GET /api/v1/projects/{project_id}/digest", chain(http.HandlerFunc(h.GetDigestSettings)))
	mux.Handle("PUT /api/v1/projects/{project_id}/digest", chain(http.HandlerFunc(h.UpdateDigestSettings)))
}
