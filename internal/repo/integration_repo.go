package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrationRepo — репозиторий подключённых интеграций проекта.
//
// Запись появляется при подключении интеграции (OAuth/API-ключ) на стороне
// панели; движок только проверяет наличие записи в preconditions.
type IntegrationRepo struct {
	pool *pgxpool.Pool
}

// NewIntegrationRepo создаёт IntegrationRepo.
func NewIntegrationRepo(pool *pgxpool.Pool) *IntegrationRepo {
	return &IntegrationRepo{pool: pool}
}

// HasIntegration проверяет, подключена ли интеграция указанного вида.
func (r *IntegrationRepo) HasIntegration(ctx context.Context, projectID uuid.UUID, kind string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM project_integrations
			WHERE project_id = $1 AND kind = $2
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, projectID, kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("check integration: %w", err)
	}
	return exists, nil
}

// Connect отмечает интеграцию подключённой. Повторное подключение
// обновляет connected_at.
func (r *IntegrationRepo) Connect(ctx context.Context, projectID uuid.UUID, kind string) error {
	query := `
		INSERT INTO project_integrations (project_id, kind, connected_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, kind) DO UPDATE
		SET connected_at = EXCLUDED.connected_at
	`
	if _, err := r.pool.Exec(ctx, query, projectID, kind, time.Now().UTC()); err != nil {
		return fmt.Errorf("connect integration: %w", err)
	}
	return nil
}
