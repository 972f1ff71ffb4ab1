package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Outreach/internal/domain"
)

// DigestRepo — репозиторий расписаний дайджестов.
type DigestRepo struct {
	pool *pgxpool.Pool
}

// NewDigestRepo создаёт DigestRepo.
func NewDigestRepo(pool *pgxpool.Pool) *DigestRepo {
	return &DigestRepo{pool: pool}
}

// Get возвращает расписание проекта.
func (r *DigestRepo) Get(ctx context.Context, projectID uuid.UUID) (*domain.DigestSchedule, error) {
	query := `
		SELECT project_id, enabled, hour, timezone, next_at, last_run_id, updated_at
		FROM digest_schedules
		WHERE project_id = $1
	`
	return scanDigest(r.pool.QueryRow(ctx, query, projectID))
}

// Upsert создаёт или обновляет расписание проекта (одна запись на проект).
func (r *DigestRepo) Upsert(ctx context.Context, schedule *domain.DigestSchedule) error {
	query := `
		INSERT INTO digest_schedules (project_id, enabled, hour, timezone, next_at, last_run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    hour = EXCLUDED.hour,
		    timezone = EXCLUDED.timezone,
		    next_at = EXCLUDED.next_at,
		    last_run_id = EXCLUDED.last_run_id,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		schedule.ProjectID,
		schedule.Enabled,
		schedule.Hour,
		schedule.Timezone,
		schedule.NextAt,
		schedule.LastRunID,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert digest schedule: %w", err)
	}
	return nil
}

// ListDue возвращает включённые расписания с прошедшим next_at.
func (r *DigestRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DigestSchedule, error) {
	query := `
		SELECT project_id, enabled, hour, timezone, next_at, last_run_id, updated_at
		FROM digest_schedules
		WHERE enabled = true AND next_at IS NOT NULL AND next_at <= $1
		ORDER BY next_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due digest schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.DigestSchedule
	for rows.Next() {
		schedule, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

// scanDigest сканирует одну строку в DigestSchedule.
func scanDigest(row pgx.Row) (*domain.DigestSchedule, error) {
	var schedule domain.DigestSchedule

	err := row.Scan(
		&schedule.ProjectID,
		&schedule.Enabled,
		&schedule.Hour,
		&schedule.Timezone,
		&schedule.NextAt,
		&schedule.LastRunID,
		&schedule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan digest schedule: %w", err)
	}

	return &schedule, nil
}
