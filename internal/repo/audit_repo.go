package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Outreach/internal/domain"
)

// AuditRepo — репозиторий журнала ручных операций над run'ами.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo создаёт AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append дописывает запись журнала.
func (r *AuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, run_id, project_id, operator, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.RunID,
		entry.ProjectID,
		entry.Operator,
		entry.Action,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByRun возвращает журнал одного run в хронологическом порядке.
func (r *AuditRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, run_id, project_id, operator, action, reason, created_at
		FROM audit_log
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&entry.ProjectID,
			&entry.Operator,
			&entry.Action,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
