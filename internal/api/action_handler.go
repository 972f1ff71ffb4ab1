package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
)

// ListActions возвращает каталог действий с вычисленной доступностью.
// GET /api/v1/projects/{project_id}/actions
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	defs := h.registry.List()
	result := make([]ActionResponse, 0, len(defs))
	for _, def := range defs {
		avail, err := h.evaluator.Evaluate(r.Context(), projectID, def)
		if HandleServiceError(w, h.logger, err) {
			return
		}
		result = append(result, ActionFromDefinition(def, avail))
	}

	List(w, result, len(result))
}

// PreviewAction возвращает выборку получателей действия без побочных
// эффектов.
// POST /api/v1/projects/{project_id}/actions/{action_id}/preview
func (h *Handler) PreviewAction(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	def, err := h.registry.GetWorkflow(domain.ActionID(r.PathValue("action_id")))
	if HandleServiceError(w, h.logger, err) {
		return
	}

	if !def.SupportsPreview {
		Conflict(w, "action does not support preview")
		return
	}

	preview, err := h.resolver.PreviewRecipients(r.Context(), projectID, def.Source)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, preview)
}
