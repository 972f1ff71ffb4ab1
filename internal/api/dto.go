package api

import (
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
)

// Run DTOs

// SubmitRunRequest — запрос на создание run.
type SubmitRunRequest struct {
	ActionID               domain.ActionID `json:"action_id"`
	IdempotencyKey         string          `json:"idempotency_key"`
	TriggeredBy            string          `json:"triggered_by"`
	Params                 map[string]any  `json:"params,omitempty"`
	RecipientCountEstimate int             `json:"recipient_count_estimate,omitempty"`
}

// SubmitRunResponse — ответ на submit.
//
// Deduplicated отличает свежесозданный run от возвращённого по
// существующему ключу идемпотентности.
type SubmitRunResponse struct {
	Run          *domain.Run `json:"run"`
	Deduplicated bool        `json:"deduplicated"`
}

// OperatorActionRequest — запрос операторского действия (retry/cancel).
// Оператор берётся из заголовка X-Operator-Id.
type OperatorActionRequest struct {
	Reason string `json:"reason"`
}

// Action DTOs

// ActionResponse — действие каталога с вычисленной доступностью.
type ActionResponse struct {
	ID              domain.ActionID        `json:"id"`
	Kind            domain.ActionKind      `json:"kind"`
	Risk            domain.RiskLevel       `json:"risk"`
	ConfirmRequired bool                   `json:"confirm_required"`
	SupportsPreview bool                   `json:"supports_preview"`
	Source          domain.RecipientSource `json:"source,omitempty"`
	Availability    catalog.Availability   `json:"availability"`
}

// ActionFromDefinition конвертирует определение и доступность в ответ.
func ActionFromDefinition(def *domain.ActionDefinition, avail catalog.Availability) ActionResponse {
	return ActionResponse{
		ID:              def.ID,
		Kind:            def.Kind,
		Risk:            def.Risk,
		ConfirmRequired: def.ConfirmRequired,
		SupportsPreview: def.SupportsPreview,
		Source:          def.Source,
		Availability:    avail,
	}
}

// Digest DTOs

// UpdateDigestRequest — запрос на изменение настроек дайджеста.
type UpdateDigestRequest struct {
	Enabled  bool   `json:"enabled"`
	Hour     int    `json:"hour"`
	Timezone string `json:"timezone"`
}
