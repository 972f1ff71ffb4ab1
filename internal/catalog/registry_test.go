package catalog

import (
	"errors"
	"testing"

	"github.com/shaiso/Outreach/internal/domain"
)

// --- Registry Tests ---

func TestNewRegistryBuiltin(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	// Каталог закрыт: ровно встроенный набор
	if r.Count() != 7 {
		t.Errorf("Count() = %d, want 7", r.Count())
	}

	// Каждое исполняемое действие имеет источник получателей
	for _, def := range r.List() {
		if def.IsWorkflow() && def.Source == "" {
			t.Errorf("workflow action %q has no recipient source", def.ID)
		}
	}
}

func TestRegistryGet(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	def, err := r.Get(domain.ActionRecoverAbandonedCarts)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if def.Kind != domain.KindWorkflow {
		t.Errorf("kind = %q, want workflow", def.Kind)
	}
	if def.Source != domain.SourceAbandonedCarts {
		t.Errorf("source = %q, want abandoned_carts", def.Source)
	}

	// Неизвестное действие — ошибка, не no-op
	if _, err := r.Get("launch_rockets"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Get(unknown) error = %v, want ErrUnknownAction", err)
	}
}

func TestRegistryGetWorkflow(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	if _, err := r.GetWorkflow(domain.ActionSendPromoCampaign); err != nil {
		t.Errorf("GetWorkflow(promo) error: %v", err)
	}

	// Навигационные действия не исполняются
	if _, err := r.GetWorkflow(domain.ActionViewRevenueReport); !errors.Is(err, ErrNotWorkflow) {
		t.Errorf("GetWorkflow(navigate) error = %v, want ErrNotWorkflow", err)
	}

	if _, err := r.GetWorkflow("launch_rockets"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("GetWorkflow(unknown) error = %v, want ErrUnknownAction", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	// List возвращает действия в порядке регистрации, стабильно
	defs := r.List()
	if len(defs) != r.Count() {
		t.Fatalf("List() returned %d defs, want %d", len(defs), r.Count())
	}
	if defs[0].ID != domain.ActionRecoverAbandonedCarts {
		t.Errorf("first action = %q, want recover_abandoned_carts", defs[0].ID)
	}

	again := r.List()
	for i := range defs {
		if defs[i].ID != again[i].ID {
			t.Fatalf("List() order is not stable at index %d", i)
		}
	}
}

func TestNewRegistryValidation(t *testing.T) {
	valid := domain.ActionDefinition{
		ID:     "a",
		Kind:   domain.KindWorkflow,
		Source: domain.SourceSubscribers,
	}

	cases := []struct {
		name string
		defs []domain.ActionDefinition
	}{
		{
			"empty id",
			[]domain.ActionDefinition{{Kind: domain.KindWorkflow, Source: domain.SourceSubscribers}},
		},
		{
			"duplicate id",
			[]domain.ActionDefinition{valid, valid},
		},
		{
			"unknown kind",
			[]domain.ActionDefinition{{ID: "a", Kind: "teleport"}},
		},
		{
			"workflow without source",
			[]domain.ActionDefinition{{ID: "a", Kind: domain.KindWorkflow}},
		},
		{
			"outcome without window",
			[]domain.ActionDefinition{{
				ID:      "a",
				Kind:    domain.KindWorkflow,
				Source:  domain.SourceSubscribers,
				Outcome: domain.OutcomeModel{Enabled: true, Name: "last_touch"},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := newRegistry(tc.defs); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("newRegistry() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}
