package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Outreach/internal/domain"
)

// SendRepo — репозиторий send-записей.
//
// Sends пишутся один раз и не изменяются: UPDATE'ов здесь нет намеренно.
type SendRepo struct {
	pool *pgxpool.Pool
}

// NewSendRepo создаёт SendRepo.
func NewSendRepo(pool *pgxpool.Pool) *SendRepo {
	return &SendRepo{pool: pool}
}

// Create записывает send.
func (r *SendRepo) Create(ctx context.Context, send *domain.Send) error {
	query := `
		INSERT INTO sends (id, run_id, project_id, action_id, recipient_email, status, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		send.ID,
		send.RunID,
		send.ProjectID,
		string(send.ActionID),
		send.RecipientEmail,
		string(send.Status),
		send.SentAt,
		nullString(send.Error),
	)
	if err != nil {
		return fmt.Errorf("insert send: %w", err)
	}
	return nil
}

// ListByRun возвращает все sends одного run.
func (r *SendRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Send, error) {
	query := `
		SELECT id, run_id, project_id, action_id, recipient_email, status, sent_at, error
		FROM sends
		WHERE run_id = $1
		ORDER BY sent_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list sends: %w", err)
	}
	defer rows.Close()

	var sends []domain.Send
	for rows.Next() {
		send, err := scanSend(rows)
		if err != nil {
			return nil, err
		}
		sends = append(sends, *send)
	}
	return sends, rows.Err()
}

// scanSend сканирует одну строку в Send.
func scanSend(row pgx.Row) (*domain.Send, error) {
	var (
		send     domain.Send
		actionID string
		status   string
		sendErr  *string
	)

	err := row.Scan(
		&send.ID,
		&send.RunID,
		&send.ProjectID,
		&actionID,
		&send.RecipientEmail,
		&status,
		&send.SentAt,
		&sendErr,
	)
	if err != nil {
		return nil, fmt.Errorf("scan send: %w", err)
	}

	send.ActionID = domain.ActionID(actionID)
	send.Status = domain.SendStatus(status)
	if sendErr != nil {
		send.Error = *sendErr
	}

	return &send, nil
}
