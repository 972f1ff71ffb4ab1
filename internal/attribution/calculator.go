package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
)

var outcomesComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outreach_attribution_outcomes_total",
	Help: "Run outcomes computed, by confidence",
}, []string{"confidence"})

// RunStore — хранилище runs с точки зрения калькулятора.
type RunStore interface {
	// ListAwaitingOutcome возвращает SUCCEEDED runs указанных действий
	// без рассчитанного outcome.
	ListAwaitingOutcome(ctx context.Context, actionIDs []domain.ActionID, limit int) ([]domain.Run, error)
	SetOutcome(ctx context.Context, runID uuid.UUID, outcome *domain.RunOutcome) error
}

// SendStore — чтение sends завершённого run.
type SendStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Send, error)
}

// EventStore — чтение бизнес-событий для сопоставления конверсий.
type EventStore interface {
	Query(ctx context.Context, projectID uuid.UUID, eventType string, from, to time.Time) ([]domain.BusinessEvent, error)
}

// entityBindingLookback — насколько раньше completedAt триггерные
// события ещё связывают entity id с email получателя. Совпадает с
// окном выборки брошенных корзин.
const entityBindingLookback = 14 * 24 * time.Hour

// Calculator асинхронно считает бизнес-результат завершённых runs.
//
// Модель last-touch: конверсия засчитывается run'у, если событие
// произошло в окне [completedAt, completedAt+window] и сопоставимо
// с одним из фактических получателей. Прямые совпадения — email либо
// entity id триггерного события (заказ по брошенной корзине) — дают
// высокую уверенность, совпадение через session id — пониженную.
//
// Outcome считается один раз, после полного закрытия окна: повторные
// прогоны не пересчитывают уже атрибутированные runs.
type Calculator struct {
	runs     RunStore
	sends    SendStore
	events   EventStore
	registry *catalog.Registry

	logger    *slog.Logger
	batchSize int

	// enabled — действия с включённой атрибуцией, кэш из каталога.
	enabled []domain.ActionID
}

// Config — конфигурация Calculator.
type Config struct {
	Runs      RunStore
	Sends     SendStore
	Events    EventStore
	Registry  *catalog.Registry
	Logger    *slog.Logger
	BatchSize int // runs за один проход (default: 50)
}

// New создаёт Calculator.
func New(cfg Config) *Calculator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var enabled []domain.ActionID
	for _, def := range cfg.Registry.List() {
		if def.Outcome.Enabled {
			enabled = append(enabled, def.ID)
		}
	}

	return &Calculator{
		runs:      cfg.Runs,
		sends:     cfg.Sends,
		events:    cfg.Events,
		registry:  cfg.Registry,
		logger:    logger,
		batchSize: batchSize,
		enabled:   enabled,
	}
}

// Tick выполняет один проход: находит runs с закрывшимся окном
// атрибуции и считает для них outcome.
//
// Ошибка одного run не блокирует обработку остальных.
func (c *Calculator) Tick(ctx context.Context) error {
	now := time.Now()

	runs, err := c.runs.ListAwaitingOutcome(ctx, c.enabled, c.batchSize)
	if err != nil {
		return fmt.Errorf("list runs awaiting outcome: %w", err)
	}

	var computed int
	for i := range runs {
		run := &runs[i]

		def, err := c.registry.Get(run.ActionID)
		if err != nil {
			c.logger.Error("run references unknown action", "run_id", run.ID, "action_id", run.ActionID)
			continue
		}

		// Окно ещё открыто — вернёмся на следующем тике.
		windowEnd := run.CompletedAt.Add(time.Duration(def.Outcome.WindowHours) * time.Hour)
		if now.Before(windowEnd) {
			continue
		}

		if err := c.computeOutcome(ctx, run, def); err != nil {
			c.logger.Error("failed to compute outcome",
				"run_id", run.ID,
				"error", err,
			)
			continue
		}
		computed++
	}

	if computed > 0 {
		c.logger.Info("attribution tick completed", "candidates", len(runs), "computed", computed)
	}

	return nil
}

// sourceEventType возвращает тип события, связывающего entity id
// с email получателя для данного источника выборки.
func sourceEventType(source domain.RecipientSource) string {
	switch source {
	case domain.SourceAbandonedCarts:
		return "cart_abandoned"
	case domain.SourceRecentSignups:
		return "signup"
	case domain.SourceSubscribers, domain.SourceInactiveCustomers:
		return "subscribed"
	default:
		return ""
	}
}

// computeOutcome считает и записывает outcome одного run.
func (c *Calculator) computeOutcome(ctx context.Context, run *domain.Run, def *domain.ActionDefinition) error {
	sends, err := c.sends.ListByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list sends: %w", err)
	}

	// Сопоставляем только с фактически доставленными получателями.
	recipients := make(map[string]bool)
	for _, send := range sends {
		if send.Status == domain.SendStatusSent {
			recipients[send.RecipientEmail] = true
		}
	}

	from := *run.CompletedAt
	to := from.Add(time.Duration(def.Outcome.WindowHours) * time.Hour)

	conversions, err := c.events.Query(ctx, run.ProjectID, def.Outcome.MetricEventType, from, to)
	if err != nil {
		return fmt.Errorf("query %s events: %w", def.Outcome.MetricEventType, err)
	}

	// Прямое сопоставление через entity id: конверсия может ссылаться
	// на сущность триггерного события (заказ по конкретной брошенной
	// корзине), даже если email в самой конверсии не заполнен.
	entityEmail := make(map[string]string)
	if trigger := sourceEventType(def.Source); trigger != "" {
		bound, err := c.events.Query(ctx, run.ProjectID, trigger, from.Add(-entityBindingLookback), to)
		if err != nil {
			return fmt.Errorf("query %s events: %w", trigger, err)
		}
		for _, ev := range bound {
			if ev.EntityID != "" && ev.Email != "" {
				entityEmail[ev.EntityID] = ev.Email
			}
		}
	}

	// Для слабого сопоставления: session id → email по сессиям окна.
	sessions, err := c.events.Query(ctx, run.ProjectID, "session_started", from, to)
	if err != nil {
		return fmt.Errorf("query session_started events: %w", err)
	}
	sessionEmail := make(map[string]string)
	for _, ev := range sessions {
		if ev.SessionID != "" && ev.Email != "" {
			sessionEmail[ev.SessionID] = ev.Email
		}
	}

	outcome := &domain.RunOutcome{
		Model:       def.Outcome.Name,
		WindowHours: def.Outcome.WindowHours,
		ComputedAt:  time.Now(),
	}

	var emailMatches, entityMatches, sessionMatches int
	for _, ev := range conversions {
		switch {
		case ev.Email != "" && recipients[ev.Email]:
			emailMatches++
		case ev.EntityID != "" && recipients[entityEmail[ev.EntityID]]:
			entityMatches++
		case ev.SessionID != "" && recipients[sessionEmail[ev.SessionID]]:
			sessionMatches++
		default:
			continue
		}

		outcome.Conversions++
		outcome.RevenueCents += ev.RevenueCents
		if outcome.Currency == "" {
			outcome.Currency = ev.Currency
		}
	}

	if emailMatches > 0 {
		outcome.MatchedBy = append(outcome.MatchedBy, "email")
	}
	if entityMatches > 0 {
		outcome.MatchedBy = append(outcome.MatchedBy, "entity")
	}
	if sessionMatches > 0 {
		outcome.MatchedBy = append(outcome.MatchedBy, "session")
	}

	// Уверенность: только прямые совпадения (email/entity) — HIGH,
	// смесь — MEDIUM, только сессионные — LOW. Пустой результат
	// считается HIGH: неопределённости в нём нет.
	switch {
	case sessionMatches == 0:
		outcome.Confidence = domain.ConfidenceHigh
	case emailMatches+entityMatches > 0:
		outcome.Confidence = domain.ConfidenceMedium
	default:
		outcome.Confidence = domain.ConfidenceLow
	}

	if err := c.runs.SetOutcome(ctx, run.ID, outcome); err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}

	outcomesComputedTotal.WithLabelValues(string(outcome.Confidence)).Inc()

	c.logger.Info("outcome computed",
		"run_id", run.ID,
		"action_id", run.ActionID,
		"conversions", outcome.Conversions,
		"revenue_cents", outcome.RevenueCents,
		"confidence", outcome.Confidence,
	)

	return nil
}
