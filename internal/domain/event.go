package domain

import (
	"time"

	"github.com/google/uuid"
)

// BusinessEvent — бизнес-событие проекта из event store.
//
// События пишутся внешним webhook-ингестом (вне этого репозитория)
// и читаются preconditions, resolver'ом получателей и атрибуцией.
type BusinessEvent struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// ProjectID — проект, к которому относится событие.
	ProjectID uuid.UUID `json:"project_id"`

	// Type — тип события: "cart_abandoned", "order_completed",
	// "signup", "subscribed", "unsubscribed", "session_started".
	Type string `json:"type"`

	// Email — адрес клиента, если известен.
	Email string `json:"email,omitempty"`

	// EntityID — id сущности (заказа, корзины) во внешней системе.
	EntityID string `json:"entity_id,omitempty"`

	// SessionID — id сессии для слабого сопоставления.
	SessionID string `json:"session_id,omitempty"`

	// RevenueCents — выручка события в центах (для конверсий).
	RevenueCents int64 `json:"revenue_cents,omitempty"`

	// Currency — валюта выручки.
	Currency string `json:"currency,omitempty"`

	// OccurredAt — время события.
	OccurredAt time.Time `json:"occurred_at"`
}
