package catalog

import (
	"fmt"

	"github.com/shaiso/Outreach/internal/domain"
)

// Registry — закрытый каталог действий.
//
// Каталог собирается один раз при старте процесса и дальше только
// читается. Неизвестное или некорректное определение — ошибка
// конструирования, процесс не стартует. Registry передаётся как
// явная зависимость, глобального экземпляра нет.
type Registry struct {
	byID  map[domain.ActionID]*domain.ActionDefinition
	order []domain.ActionID
}

// NewRegistry создаёт каталог со встроенным набором действий.
func NewRegistry() (*Registry, error) {
	return newRegistry(builtinActions())
}

// newRegistry валидирует определения и строит индекс.
func newRegistry(defs []domain.ActionDefinition) (*Registry, error) {
	r := &Registry{
		byID: make(map[domain.ActionID]*domain.ActionDefinition, len(defs)),
	}

	for i := range defs {
		def := defs[i]

		if def.ID == "" {
			return nil, fmt.Errorf("%w: empty action id", ErrInvalidDefinition)
		}
		if _, exists := r.byID[def.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate action %q", ErrInvalidDefinition, def.ID)
		}
		if def.Kind != domain.KindWorkflow && def.Kind != domain.KindNavigate {
			return nil, fmt.Errorf("%w: action %q has unknown kind %q", ErrInvalidDefinition, def.ID, def.Kind)
		}
		if def.Kind == domain.KindWorkflow && def.Source == "" {
			return nil, fmt.Errorf("%w: workflow action %q has no recipient source", ErrInvalidDefinition, def.ID)
		}
		if def.Outcome.Enabled && def.Outcome.WindowHours <= 0 {
			return nil, fmt.Errorf("%w: action %q has outcome without window", ErrInvalidDefinition, def.ID)
		}

		r.byID[def.ID] = &def
		r.order = append(r.order, def.ID)
	}

	return r, nil
}

// Get возвращает определение действия.
func (r *Registry) Get(id domain.ActionID) (*domain.ActionDefinition, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	return def, nil
}

// GetWorkflow возвращает определение исполняемого действия.
// Для навигационных действий возвращает ErrNotWorkflow.
func (r *Registry) GetWorkflow(id domain.ActionID) (*domain.ActionDefinition, error) {
	def, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !def.IsWorkflow() {
		return nil, fmt.Errorf("%w: %q", ErrNotWorkflow, id)
	}
	return def, nil
}

// List возвращает все определения в порядке регистрации.
func (r *Registry) List() []*domain.ActionDefinition {
	defs := make([]*domain.ActionDefinition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.byID[id])
	}
	return defs
}

// Count возвращает количество действий в каталоге.
func (r *Registry) Count() int {
	return len(r.byID)
}

// builtinActions — встроенный набор определений.
//
// Окна атрибуции и lookback'и подобраны по продуктовым требованиям,
// меняются только вместе с кодом.
func builtinActions() []domain.ActionDefinition {
	return []domain.ActionDefinition{
		{
			ID:              domain.ActionRecoverAbandonedCarts,
			Kind:            domain.KindWorkflow,
			Risk:            domain.RiskHigh,
			ConfirmRequired: true,
			SupportsPreview: true,
			Source:          domain.SourceAbandonedCarts,
			Preconditions: []domain.Precondition{
				domain.HasIntegration{Kind: "shop"},
				domain.HasEvents{EventType: "cart_abandoned", MinCount: 1, WindowDays: 14},
				domain.HasRecipients{Source: domain.SourceAbandonedCarts},
			},
			Outcome: domain.OutcomeModel{
				Enabled:         true,
				Name:            "last_touch",
				WindowHours:     72,
				MetricEventType: "order_completed",
			},
			DisabledReasonKey: "actions.recover_carts.disabled",
		},
		{
			ID:              domain.ActionSendPromoCampaign,
			Kind:            domain.KindWorkflow,
			Risk:            domain.RiskHigh,
			ConfirmRequired: true,
			SupportsPreview: true,
			Source:          domain.SourceSubscribers,
			Preconditions: []domain.Precondition{
				domain.HasIntegration{Kind: "email_provider"},
				domain.HasRecipients{Source: domain.SourceSubscribers},
			},
			Outcome: domain.OutcomeModel{
				Enabled:         true,
				Name:            "last_touch",
				WindowHours:     168,
				MetricEventType: "order_completed",
			},
			DisabledReasonKey: "actions.promo.disabled",
		},
		{
			ID:              domain.ActionOnboardNewSignups,
			Kind:            domain.KindWorkflow,
			Risk:            domain.RiskMedium,
			ConfirmRequired: false,
			SupportsPreview: true,
			Source:          domain.SourceRecentSignups,
			Preconditions: []domain.Precondition{
				domain.HasEvents{EventType: "signup", MinCount: 1, WindowDays: 7},
			},
			Outcome: domain.OutcomeModel{
				Enabled:         true,
				Name:            "last_touch",
				WindowHours:     168,
				MetricEventType: "subscription_started",
			},
			DisabledReasonKey: "actions.onboarding.disabled",
		},
		{
			ID:              domain.ActionWinbackInactive,
			Kind:            domain.KindWorkflow,
			Risk:            domain.RiskMedium,
			ConfirmRequired: true,
			SupportsPreview: true,
			Source:          domain.SourceInactiveCustomers,
			Preconditions: []domain.Precondition{
				domain.HasIntegration{Kind: "email_provider"},
				domain.HasRecipients{Source: domain.SourceInactiveCustomers},
			},
			Outcome: domain.OutcomeModel{
				Enabled:         true,
				Name:            "last_touch",
				WindowHours:     168,
				MetricEventType: "order_completed",
			},
			DisabledReasonKey: "actions.winback.disabled",
		},
		{
			ID:              domain.ActionSendWeeklyDigest,
			Kind:            domain.KindWorkflow,
			Risk:            domain.RiskLow,
			ConfirmRequired: false,
			SupportsPreview: false,
			Source:          domain.SourceSubscribers,
			// Дайджест создаётся планировщиком — preconditions нет,
			// пустая выборка даёт run с нулём получателей.
			Outcome:           domain.OutcomeModel{Enabled: false},
			DisabledReasonKey: "actions.digest.disabled",
		},
		{
			ID:                domain.ActionViewRevenueReport,
			Kind:              domain.KindNavigate,
			Risk:              domain.RiskLow,
			Outcome:           domain.OutcomeModel{Enabled: false},
			DisabledReasonKey: "actions.revenue_report.disabled",
		},
		{
			ID:   domain.ActionOpenIntegrations,
			Kind: domain.KindNavigate,
			Risk: domain.RiskLow,
			Preconditions: []domain.Precondition{
				domain.HasIntegration{Kind: "shop"},
			},
			Outcome:           domain.OutcomeModel{Enabled: false},
			DisabledReasonKey: "actions.integrations.disabled",
		},
	}
}
