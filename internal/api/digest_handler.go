package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/repo"
)

// GetDigestSettings возвращает настройки дайджеста проекта.
// GET /api/v1/projects/{project_id}/digest
//
// Для проекта без записи возвращается выключенное расписание по
// умолчанию, а не 404: настройка существует для каждого проекта
// концептуально.
func (h *Handler) GetDigestSettings(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	schedule, err := h.digestRepo.Get(r.Context(), projectID)
	if errors.Is(err, repo.ErrNotFound) {
		schedule = &domain.DigestSchedule{
			ProjectID: projectID,
			Enabled:   false,
			Hour:      9,
			Timezone:  "UTC",
		}
	} else if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, schedule)
}

// UpdateDigestSettings применяет настройки дайджеста проекта.
// PUT /api/v1/projects/{project_id}/digest
func (h *Handler) UpdateDigestSettings(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project_id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req UpdateDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.scheduler.UpdateSettings(r.Context(), projectID, req.Enabled, req.Hour, req.Timezone)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, schedule)
}
