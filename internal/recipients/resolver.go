package recipients

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
)

// Окна выборки по источникам.
const (
	// abandonedCartLookback — насколько старые брошенные корзины
	// ещё имеет смысл восстанавливать.
	abandonedCartLookback = 14 * 24 * time.Hour

	// signupLookback — окно "новых" регистраций.
	signupLookback = 7 * 24 * time.Hour

	// inactivityThreshold — отсутствие активности, после которого
	// подписчик считается неактивным.
	inactivityThreshold = 60 * 24 * time.Hour

	// subscriptionLookback — глубина истории подписок/отписок.
	subscriptionLookback = 365 * 24 * time.Hour
)

// EventStore — чтение бизнес-событий проекта.
type EventStore interface {
	Query(ctx context.Context, projectID uuid.UUID, eventType string, from, to time.Time) ([]domain.BusinessEvent, error)
}

// Resolver вычисляет выборку получателей для действия.
//
// Это единственная точка выборки: preview и executor вызывают один и
// тот же Resolve, поэтому счётчик preview и result.total_recipients
// итогового run не могут молча разойтись.
//
// Resolver только читает event store, побочных эффектов нет.
type Resolver struct {
	events EventStore
}

// NewResolver создаёт Resolver.
func NewResolver(events EventStore) *Resolver {
	return &Resolver{events: events}
}

// Preview — результат предпросмотра выборки.
type Preview struct {
	Recipients  []domain.Recipient `json:"recipients"`
	Count       int                `json:"count"`
	EstimatedAt time.Time          `json:"estimated_at"`
}

// Resolve возвращает выборку получателей для источника.
// Выборка отсортирована по email — порядок детерминирован.
func (r *Resolver) Resolve(ctx context.Context, projectID uuid.UUID, source domain.RecipientSource) ([]domain.Recipient, error) {
	now := time.Now()

	var (
		recipients []domain.Recipient
		err        error
	)

	switch source {
	case domain.SourceAbandonedCarts:
		recipients, err = r.resolveAbandonedCarts(ctx, projectID, now)
	case domain.SourceSubscribers:
		recipients, err = r.resolveSubscribers(ctx, projectID, now)
	case domain.SourceRecentSignups:
		recipients, err = r.resolveRecentSignups(ctx, projectID, now)
	case domain.SourceInactiveCustomers:
		recipients, err = r.resolveInactiveCustomers(ctx, projectID, now)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].Email < recipients[j].Email
	})
	return recipients, nil
}

// PreviewRecipients возвращает выборку вместе со счётчиком.
// Read-only, используется API preview и оценкой размера при submit.
func (r *Resolver) PreviewRecipients(ctx context.Context, projectID uuid.UUID, source domain.RecipientSource) (*Preview, error) {
	recipients, err := r.Resolve(ctx, projectID, source)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Recipients:  recipients,
		Count:       len(recipients),
		EstimatedAt: time.Now(),
	}, nil
}

// CountRecipients реализует catalog.RecipientCounter.
func (r *Resolver) CountRecipients(ctx context.Context, projectID uuid.UUID, source domain.RecipientSource) (int, error) {
	recipients, err := r.Resolve(ctx, projectID, source)
	if err != nil {
		return 0, err
	}
	return len(recipients), nil
}

// resolveAbandonedCarts — email'ы из cart_abandoned за lookback,
// у которых после брошенной корзины не было заказа.
func (r *Resolver) resolveAbandonedCarts(ctx context.Context, projectID uuid.UUID, now time.Time) ([]domain.Recipient, error) {
	from := now.Add(-abandonedCartLookback)

	carts, err := r.events.Query(ctx, projectID, "cart_abandoned", from, now)
	if err != nil {
		return nil, fmt.Errorf("query cart_abandoned: %w", err)
	}
	orders, err := r.events.Query(ctx, projectID, "order_completed", from, now)
	if err != nil {
		return nil, fmt.Errorf("query order_completed: %w", err)
	}

	// Последний заказ по каждому email.
	lastOrder := make(map[string]time.Time)
	for _, ev := range orders {
		if ev.Email == "" {
			continue
		}
		if ev.OccurredAt.After(lastOrder[ev.Email]) {
			lastOrder[ev.Email] = ev.OccurredAt
		}
	}

	seen := make(map[string]bool)
	var out []domain.Recipient
	for _, ev := range carts {
		if ev.Email == "" || seen[ev.Email] {
			continue
		}
		// Заказ после брошенной корзины — корзина уже восстановлена.
		if ordered, ok := lastOrder[ev.Email]; ok && ordered.After(ev.OccurredAt) {
			continue
		}
		seen[ev.Email] = true
		out = append(out, domain.Recipient{Email: ev.Email, Reason: "cart_abandoned"})
	}
	return out, nil
}

// resolveSubscribers — email'ы с активной подпиской: последнее по
// времени событие subscribed/unsubscribed должно быть subscribed.
func (r *Resolver) resolveSubscribers(ctx context.Context, projectID uuid.UUID, now time.Time) ([]domain.Recipient, error) {
	emails, err := r.activeSubscribers(ctx, projectID, now)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Recipient, 0, len(emails))
	for email := range emails {
		out = append(out, domain.Recipient{Email: email, Reason: "subscribed"})
	}
	return out, nil
}

// resolveRecentSignups — регистрации за signupLookback.
func (r *Resolver) resolveRecentSignups(ctx context.Context, projectID uuid.UUID, now time.Time) ([]domain.Recipient, error) {
	from := now.Add(-signupLookback)

	signups, err := r.events.Query(ctx, projectID, "signup", from, now)
	if err != nil {
		return nil, fmt.Errorf("query signup: %w", err)
	}

	seen := make(map[string]bool)
	var out []domain.Recipient
	for _, ev := range signups {
		if ev.Email == "" || seen[ev.Email] {
			continue
		}
		seen[ev.Email] = true
		out = append(out, domain.Recipient{Email: ev.Email, Reason: "signup"})
	}
	return out, nil
}

// resolveInactiveCustomers — активные подписчики без сессий и заказов
// за inactivityThreshold.
func (r *Resolver) resolveInactiveCustomers(ctx context.Context, projectID uuid.UUID, now time.Time) ([]domain.Recipient, error) {
	subscribers, err := r.activeSubscribers(ctx, projectID, now)
	if err != nil {
		return nil, err
	}

	from := now.Add(-inactivityThreshold)
	active := make(map[string]bool)
	for _, eventType := range []string{"session_started", "order_completed"} {
		events, err := r.events.Query(ctx, projectID, eventType, from, now)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", eventType, err)
		}
		for _, ev := range events {
			if ev.Email != "" {
				active[ev.Email] = true
			}
		}
	}

	var out []domain.Recipient
	for email := range subscribers {
		if active[email] {
			continue
		}
		out = append(out, domain.Recipient{Email: email, Reason: "inactive"})
	}
	return out, nil
}

// activeSubscribers возвращает множество email'ов с активной подпиской.
func (r *Resolver) activeSubscribers(ctx context.Context, projectID uuid.UUID, now time.Time) (map[string]bool, error) {
	from := now.Add(-subscriptionLookback)

	subs, err := r.events.Query(ctx, projectID, "subscribed", from, now)
	if err != nil {
		return nil, fmt.Errorf("query subscribed: %w", err)
	}
	unsubs, err := r.events.Query(ctx, projectID, "unsubscribed", from, now)
	if err != nil {
		return nil, fmt.Errorf("query unsubscribed: %w", err)
	}

	// Последнее событие по каждому email решает.
	type state struct {
		at         time.Time
		subscribed bool
	}
	latest := make(map[string]state)
	for _, ev := range subs {
		if ev.Email == "" {
			continue
		}
		if s, ok := latest[ev.Email]; !ok || ev.OccurredAt.After(s.at) {
			latest[ev.Email] = state{at: ev.OccurredAt, subscribed: true}
		}
	}
	for _, ev := range unsubs {
		if ev.Email == "" {
			continue
		}
		if s, ok := latest[ev.Email]; !ok || ev.OccurredAt.After(s.at) {
			latest[ev.Email] = state{at: ev.OccurredAt, subscribed: false}
		}
	}

	out := make(map[string]bool)
	for email, s := range latest {
		if s.subscribed {
			out[email] = true
		}
	}
	return out, nil
}
