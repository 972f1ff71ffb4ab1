package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Outreach/internal/domain"
)

// runColumns — список колонок для SELECT, единый для всех выборок.
const runColumns = `
	id, project_id, action_id, status, idempotency_key, params,
	recipient_count_estimate, triggered_by, retry_of, retry_reason,
	requested_at, started_at, completed_at, lease_expires_at,
	attempts, max_attempts, result, outcome
`

// RunRepo — репозиторий runs.
//
// Все переходы состояний выполняются условными UPDATE'ами: строка
// меняется только если её текущее состояние соответствует ожиданию.
// Эксклюзивность захвата держится на этом, межпроцессных блокировок нет.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create вставляет новый run.
//
// Уникальный индекс (project_id, idempotency_key) + ON CONFLICT DO
// NOTHING: при конкурентных submit с одним ключом ровно один INSERT
// проходит, остальные получают created=false. Существующая запись
// не изменяется.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) (bool, error) {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return false, fmt.Errorf("marshal params: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, project_id, action_id, status, idempotency_key, params,
			recipient_count_estimate, triggered_by, retry_of, retry_reason,
			requested_at, attempts, max_attempts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (project_id, idempotency_key) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		run.ID,
		run.ProjectID,
		string(run.ActionID),
		string(run.Status),
		run.IdempotencyKey,
		paramsJSON,
		run.RecipientCountEstimate,
		run.TriggeredBy,
		run.RetryOf,
		nullString(run.RetryReason),
		run.RequestedAt,
		run.Attempts,
		run.MaxAttempts,
	)
	if err != nil {
		return false, fmt.Errorf("insert run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, projectID uuid.UUID, key string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE project_id = $1 AND idempotency_key = $2`
	return scanRun(r.pool.QueryRow(ctx, query, projectID, key))
}

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	ProjectID *uuid.UUID
	Status    domain.RunStatus
	ActionID  domain.ActionID
	Limit     int
	Offset    int
}

// List возвращает runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND ($2::text IS NULL OR status = $2::run_status)
		  AND ($3::text IS NULL OR action_id = $3)
		ORDER BY requested_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.ProjectID),
		nullString(string(filter.Status)),
		nullString(string(filter.ActionID)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListQueued возвращает runs в статусе QUEUED, старые первыми.
// Используется polling fallback'ом executor'а.
func (r *RunRepo) ListQueued(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'QUEUED'
		ORDER BY requested_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// Claim атомарно захватывает run под lease.
//
// Одна условная запись: run берётся из QUEUED либо перехватывается из
// RUNNING с истёкшим lease, при непревышенном attempts. Из двух
// конкурентных claim'ов UPDATE пройдёт ровно у одного; проигравший
// получает ErrConflict.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID, lease time.Duration) (*domain.Run, error) {
	now := time.Now()
	expiresAt := now.Add(lease)

	query := `
		UPDATE runs
		SET status = 'RUNNING',
		    lease_expires_at = $2,
		    started_at = COALESCE(started_at, $3),
		    attempts = attempts + 1
		WHERE id = $1
		  AND attempts < max_attempts
		  AND (status = 'QUEUED' OR (status = 'RUNNING' AND lease_expires_at < $3))
		RETURNING ` + runColumns

	run, err := scanRun(r.pool.QueryRow(ctx, query, id, expiresAt, now))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("claim run: %w", err)
	}

	// UPDATE никого не зацепил: различаем "нет такого run" и
	// "состояние не позволило захват".
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConflict
}

// Finalize записывает терминальный результат выполнения.
//
// Запись безусловная (last write wins): executor, доведший run до
// конца, перезаписывает в том числе принудительную отмену — откат
// уже отправленных сообщений невозможен, честнее показать факт.
func (r *RunRepo) Finalize(ctx context.Context, id uuid.UUID, status domain.RunStatus, result *domain.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2::run_status,
		    result = $3,
		    completed_at = now(),
		    lease_expires_at = NULL
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, string(status), resultJSON)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ForceCancel принудительно переводит run в FAILED.
//
// Условная запись: только из QUEUED/RUNNING. Возвращает false, если
// run уже терминальный.
func (r *RunRepo) ForceCancel(ctx context.Context, id uuid.UUID, result *domain.RunResult) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE runs
		SET status = 'FAILED',
		    result = $2,
		    completed_at = now(),
		    lease_expires_at = NULL
		WHERE id = $1
		  AND status IN ('QUEUED', 'RUNNING')
	`
	tag, err := r.pool.Exec(ctx, query, id, resultJSON)
	if err != nil {
		return false, fmt.Errorf("force cancel run: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return false, getErr
	}
	return false, nil
}

// ListStuck возвращает застрявшие runs: RUNNING с истёкшим lease.
func (r *RunRepo) ListStuck(ctx context.Context, now time.Time, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'RUNNING' AND lease_expires_at < $1
		ORDER BY lease_expires_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListAwaitingOutcome возвращает SUCCEEDED runs указанных действий
// без рассчитанного outcome, старые первыми.
func (r *RunRepo) ListAwaitingOutcome(ctx context.Context, actionIDs []domain.ActionID, limit int) ([]domain.Run, error) {
	ids := make([]string, len(actionIDs))
	for i, id := range actionIDs {
		ids[i] = string(id)
	}

	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'SUCCEEDED'
		  AND outcome IS NULL
		  AND action_id = ANY($1)
		ORDER BY completed_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs awaiting outcome: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// SetOutcome записывает outcome (write-once: существующий не
// перезаписывается).
func (r *RunRepo) SetOutcome(ctx context.Context, id uuid.UUID, outcome *domain.RunOutcome) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	query := `
		UPDATE runs
		SET outcome = $2
		WHERE id = $1 AND outcome IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, outcomeJSON)
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

// --- Helpers ---

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run         domain.Run
		actionID    string
		status      string
		paramsJSON  []byte
		retryReason *string
		resultJSON  []byte
		outcomeJSON []byte
	)

	err := row.Scan(
		&run.ID,
		&run.ProjectID,
		&actionID,
		&status,
		&run.IdempotencyKey,
		&paramsJSON,
		&run.RecipientCountEstimate,
		&run.TriggeredBy,
		&run.RetryOf,
		&retryReason,
		&run.RequestedAt,
		&run.StartedAt,
		&run.CompletedAt,
		&run.LeaseExpiresAt,
		&run.Attempts,
		&run.MaxAttempts,
		&resultJSON,
		&outcomeJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.ActionID = domain.ActionID(actionID)
	run.Status = domain.RunStatus(status)

	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if resultJSON != nil {
		run.Result = &domain.RunResult{}
		if err := json.Unmarshal(resultJSON, run.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if outcomeJSON != nil {
		run.Outcome = &domain.RunOutcome{}
		if err := json.Unmarshal(outcomeJSON, run.Outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
	}
	if retryReason != nil {
		run.RetryReason = *retryReason
	}

	return &run, nil
}

// collectRuns сканирует все строки результата.
func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
