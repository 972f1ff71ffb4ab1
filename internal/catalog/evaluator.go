package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
)

// Entitlements — проверка подключённых интеграций проекта.
type Entitlements interface {
	HasIntegration(ctx context.Context, projectID uuid.UUID, kind string) (bool, error)
}

// EventCounter — подсчёт бизнес-событий проекта за окно.
type EventCounter interface {
	CountEvents(ctx context.Context, projectID uuid.UUID, eventType string, since time.Time) (int, error)
}

// RecipientCounter — размер выборки получателей для источника.
// Реализуется resolver'ом получателей — тем же, что используют
// preview и executor.
type RecipientCounter interface {
	CountRecipients(ctx context.Context, projectID uuid.UUID, source domain.RecipientSource) (int, error)
}

// Availability — результат проверки доступности действия.
type Availability struct {
	// Available — все preconditions выполнены.
	Available bool `json:"available"`

	// DisabledReasonKey — ключ перевода причины, если недоступно.
	DisabledReasonKey string `json:"disabled_reason_key,omitempty"`

	// FailedPrecondition — человекочитаемое описание первого
	// невыполненного предиката (для логов и отладки).
	FailedPrecondition string `json:"failed_precondition,omitempty"`
}

// Evaluator интерпретирует preconditions действий.
//
// Действие доступно, только если выполнены все его preconditions.
// Первый невыполненный предикат останавливает проверку.
type Evaluator struct {
	entitlements Entitlements
	events       EventCounter
	recipients   RecipientCounter
}

// NewEvaluator создаёт Evaluator.
func NewEvaluator(entitlements Entitlements, events EventCounter, recipients RecipientCounter) *Evaluator {
	return &Evaluator{
		entitlements: entitlements,
		events:       events,
		recipients:   recipients,
	}
}

// Evaluate проверяет все preconditions действия.
func (e *Evaluator) Evaluate(ctx context.Context, projectID uuid.UUID, def *domain.ActionDefinition) (Availability, error) {
	for _, pre := range def.Preconditions {
		ok, desc, err := e.check(ctx, projectID, pre)
		if err != nil {
			return Availability{}, err
		}
		if !ok {
			return Availability{
				Available:          false,
				DisabledReasonKey:  def.DisabledReasonKey,
				FailedPrecondition: desc,
			}, nil
		}
	}
	return Availability{Available: true}, nil
}

// check интерпретирует один типизированный предикат.
func (e *Evaluator) check(ctx context.Context, projectID uuid.UUID, pre domain.Precondition) (bool, string, error) {
	switch p := pre.(type) {
	case domain.HasIntegration:
		ok, err := e.entitlements.HasIntegration(ctx, projectID, p.Kind)
		if err != nil {
			return false, "", fmt.Errorf("check integration %q: %w", p.Kind, err)
		}
		if !ok {
			return false, fmt.Sprintf("integration %q is not connected", p.Kind), nil
		}
		return true, "", nil

	case domain.HasEvents:
		since := time.Now().AddDate(0, 0, -p.WindowDays)
		count, err := e.events.CountEvents(ctx, projectID, p.EventType, since)
		if err != nil {
			return false, "", fmt.Errorf("count events %q: %w", p.EventType, err)
		}
		if count < p.MinCount {
			return false, fmt.Sprintf("need %d %q events in %dd, have %d", p.MinCount, p.EventType, p.WindowDays, count), nil
		}
		return true, "", nil

	case domain.HasRecipients:
		count, err := e.recipients.CountRecipients(ctx, projectID, p.Source)
		if err != nil {
			return false, "", fmt.Errorf("count recipients %q: %w", p.Source, err)
		}
		if count == 0 {
			return false, fmt.Sprintf("no recipients for source %q", p.Source), nil
		}
		return true, "", nil

	default:
		// Новый вариант предиката без ветки в интерпретаторе —
		// ошибка программиста, ловим при первом же вызове.
		return false, "", fmt.Errorf("%w: %T", ErrInvalidDefinition, pre)
	}
}
