package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry — запись append-only журнала операторских действий.
//
// Каждый retry и cancel обязан оставить запись: кто, над каким run,
// по какой причине. Записи не изменяются и не удаляются.
type AuditEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RunID — run, над которым выполнено действие.
	RunID uuid.UUID `json:"run_id"`

	// ProjectID — проект run'а.
	ProjectID uuid.UUID `json:"project_id"`

	// Operator — id оператора.
	Operator string `json:"operator"`

	// Action — выполненное действие: "retry" или "cancel".
	Action string `json:"action"`

	// Reason — причина, указанная оператором.
	Reason string `json:"reason"`

	// CreatedAt — время действия.
	CreatedAt time.Time `json:"created_at"`
}
