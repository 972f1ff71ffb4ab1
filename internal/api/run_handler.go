package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/engine"
	"github.com/shaiso/Outreach/internal/repo"
)

// SubmitRun создаёт новый run.
// POST /api/v1/projects/{project_id}/runs
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.gateway.Submit(r.Context(), engine.SubmitRequest{
		ProjectID:              projectID,
		ActionID:               req.ActionID,
		IdempotencyKey:         req.IdempotencyKey,
		TriggeredBy:            req.TriggeredBy,
		Params:                 req.Params,
		RecipientCountEstimate: req.RecipientCountEstimate,
	})
	if HandleServiceError(w, h.logger, err) {
		return
	}

	resp := SubmitRunResponse{Run: result.Run, Deduplicated: result.Deduplicated}
	if result.Deduplicated {
		Success(w, resp)
		return
	}
	Created(w, resp)
}

// ListRuns возвращает runs проекта с фильтрацией.
// GET /api/v1/projects/{project_id}/runs?status=...&action_id=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	filter := repo.RunFilter{
		ProjectID: &projectID,
		Status:    domain.RunStatus(r.URL.Query().Get("status")),
		ActionID:  domain.ActionID(r.URL.Query().Get("action_id")),
		Limit:     parseIntParam(r, "limit", 50),
		Offset:    parseIntParam(r, "offset", 0),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		BadRequest(w, "invalid status")
		return
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	List(w, runs, len(runs))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, run)
}

// ListRunSends возвращает sends одного run.
// GET /api/v1/runs/{id}/sends
func (h *Handler) ListRunSends(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	if _, err := h.runRepo.GetByID(r.Context(), id); HandleServiceError(w, h.logger, err) {
		return
	}

	sends, err := h.sendRepo.ListByRun(r.Context(), id)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	List(w, sends, len(sends))
}

// ListStuckRuns возвращает застрявшие runs (RUNNING с истёкшим lease).
// GET /api/v1/runs/stuck?limit=...
func (h *Handler) ListStuckRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 100)

	runs, err := h.runRepo.ListStuck(r.Context(), time.Now(), limit)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	List(w, runs, len(runs))
}

// RetryRun создаёт новый run для упавшего или застрявшего.
// POST /api/v1/runs/{id}/retry
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req OperatorActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	operator := r.Header.Get(OperatorHeader)
	run, err := h.controller.Retry(r.Context(), id, operator, req.Reason)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Created(w, run)
}

// CancelRun принудительно отменяет run.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req OperatorActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	operator := r.Header.Get(OperatorHeader)
	run, err := h.controller.Cancel(r.Context(), id, operator, req.Reason)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, run)
}

// parseIntParam парсит числовой query параметр с дефолтным значением.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
