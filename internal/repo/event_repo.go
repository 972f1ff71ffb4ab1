package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Outreach/internal/domain"
)

// EventRepo — репозиторий бизнес-событий.
//
// События пишет внешний webhook-ингест; движок их только читает:
// preconditions (CountEvents), выборка получателей и атрибуция (Query).
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert записывает событие (используется ингестом и сидированием).
func (r *EventRepo) Insert(ctx context.Context, event *domain.BusinessEvent) error {
	query := `
		INSERT INTO business_events (id, project_id, type, email, entity_id, session_id, revenue_cents, currency, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.ProjectID,
		event.Type,
		nullString(event.Email),
		nullString(event.EntityID),
		nullString(event.SessionID),
		event.RevenueCents,
		nullString(event.Currency),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Query возвращает события типа за интервал [from, to].
func (r *EventRepo) Query(ctx context.Context, projectID uuid.UUID, eventType string, from, to time.Time) ([]domain.BusinessEvent, error) {
	query := `
		SELECT id, project_id, type, email, entity_id, session_id, revenue_cents, currency, occurred_at
		FROM business_events
		WHERE project_id = $1 AND type = $2 AND occurred_at >= $3 AND occurred_at <= $4
		ORDER BY occurred_at ASC
	`
	rows, err := r.pool.Query(ctx, query, projectID, eventType, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.BusinessEvent
	for rows.Next() {
		var (
			ev        domain.BusinessEvent
			email     *string
			entityID  *string
			sessionID *string
			currency  *string
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.ProjectID,
			&ev.Type,
			&email,
			&entityID,
			&sessionID,
			&ev.RevenueCents,
			&currency,
			&ev.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if email != nil {
			ev.Email = *email
		}
		if entityID != nil {
			ev.EntityID = *entityID
		}
		if sessionID != nil {
			ev.SessionID = *sessionID
		}
		if currency != nil {
			ev.Currency = *currency
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents возвращает количество событий типа, начиная с since.
func (r *EventRepo) CountEvents(ctx context.Context, projectID uuid.UUID, eventType string, since time.Time) (int, error) {
	query := `
		SELECT count(*)
		FROM business_events
		WHERE project_id = $1 AND type = $2 AND occurred_at >= $3
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, projectID, eventType, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
