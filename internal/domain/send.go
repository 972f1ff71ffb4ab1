package domain

import (
	"time"

	"github.com/google/uuid"
)

// Send — запись о доставке одному получателю в рамках run.
//
// Send неизменяем после записи и принадлежит ровно одному run.
// Доставка best-effort: при отмене run уже записанные sends
// не откатываются.
type Send struct {
	// ID — уникальный идентификатор send.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// ProjectID — проект (дублируется из run для выборок).
	ProjectID uuid.UUID `json:"project_id"`

	// ActionID — действие (дублируется из run).
	ActionID ActionID `json:"action_id"`

	// RecipientEmail — адрес получателя.
	RecipientEmail string `json:"recipient_email"`

	// Status — терминальный статус доставки.
	Status SendStatus `json:"status"`

	// SentAt — время попытки (или пропуска для SUPPRESSED).
	SentAt time.Time `json:"sent_at"`

	// Error — ошибка провайдера при Status == FAILED.
	Error string `json:"error,omitempty"`
}

// Recipient — получатель из выборки resolver'а.
type Recipient struct {
	// Email — адрес получателя.
	Email string `json:"email"`

	// Reason — почему получатель попал в выборку
	// ("cart_abandoned", "signup", ...).
	Reason string `json:"reason,omitempty"`
}
