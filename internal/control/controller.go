package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/engine"
)

// minReasonLength — минимальная длина причины операторского действия.
const minReasonLength = 8

// RunStore — хранилище runs с точки зрения controller'а.
//
// ForceCancel — условная запись: переводит run в FAILED только из
// QUEUED/RUNNING; возвращает false, если run уже терминальный.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ForceCancel(ctx context.Context, id uuid.UUID, result *domain.RunResult) (cancelled bool, err error)
}

// Submitter — создание нового run (для retry). Реализуется Gateway —
// retry проходит тот же путь, что и обычный submit.
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (*engine.SubmitResult, error)
}

// AuditLog — append-only журнал операторских действий.
type AuditLog interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}

// Controller — операторские переходы состояний: retry и cancel.
type Controller struct {
	runs    RunStore
	gateway Submitter
	audit   AuditLog
	logger  *slog.Logger
}

// NewController создаёт Controller.
func NewController(runs RunStore, gateway Submitter, audit AuditLog, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runs:    runs,
		gateway: gateway,
		audit:   audit,
		logger:  logger,
	}
}

// Retry создаёт новый независимый run для упавшего или застрявшего.
//
// Разрешён только для status=FAILED либо RUNNING с истёкшим lease.
// Исходный run не изменяется никогда: новый run получает свежий ключ
// идемпотентности и ссылку retry_of.
func (c *Controller) Retry(ctx context.Context, runID uuid.UUID, operator, reason string) (*domain.Run, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	run, err := c.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !run.CanRetry(now) {
		if run.Status == domain.RunStatusRunning {
			return nil, fmt.Errorf("%w: run %s is running with a live lease", ErrConflict, runID)
		}
		return nil, fmt.Errorf("%w: run %s is %s", ErrConflict, runID, run.Status)
	}

	result, err := c.gateway.Submit(ctx, engine.SubmitRequest{
		ProjectID:              run.ProjectID,
		ActionID:               run.ActionID,
		IdempotencyKey:         "retry_" + uuid.NewString(),
		TriggeredBy:            operator,
		Params:                 run.Params,
		RecipientCountEstimate: run.RecipientCountEstimate,
		RetryOf:                &run.ID,
		RetryReason:            reason,
	})
	if err != nil {
		return nil, fmt.Errorf("submit retry run: %w", err)
	}

	c.appendAudit(ctx, run, operator, "retry", reason)

	c.logger.Info("run retried",
		"run_id", runID,
		"new_run_id", result.Run.ID,
		"operator", operator,
	)

	return result.Run, nil
}

// Cancel принудительно переводит run в FAILED.
//
// Разрешён только из QUEUED/RUNNING. Отмена advisory: executor с уже
// захваченным run может перезаписать терминальный статус собственным
// результатом (last write wins), уже отправленные сообщения не
// откатываются.
func (c *Controller) Cancel(ctx context.Context, runID uuid.UUID, operator, reason string) (*domain.Run, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	run, err := c.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &domain.RunResult{
		Cancelled:    true,
		CancelledBy:  operator,
		CancelReason: reason,
	}
	if run.Result != nil {
		// Сохраняем счётчики, если executor успел что-то записать.
		result.TotalRecipients = run.Result.TotalRecipients
		result.Successful = run.Result.Successful
		result.Failed = run.Result.Failed
		result.Suppressed = run.Result.Suppressed
	}

	cancelled, err := c.runs.ForceCancel(ctx, runID, result)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("%w: run %s is already %s", ErrConflict, runID, run.Status)
	}

	c.appendAudit(ctx, run, operator, "cancel", reason)

	c.logger.Info("run cancelled",
		"run_id", runID,
		"operator", operator,
	)

	return c.runs.GetByID(ctx, runID)
}

// appendAudit пишет запись журнала. Отказ журнала логируется, но не
// отменяет уже выполненное действие.
func (c *Controller) appendAudit(ctx context.Context, run *domain.Run, operator, action, reason string) {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		RunID:     run.ID,
		ProjectID: run.ProjectID,
		Operator:  operator,
		Action:    action,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := c.audit.Append(ctx, entry); err != nil {
		c.logger.Error("failed to append audit entry",
			"run_id", run.ID,
			"action", action,
			"error", err,
		)
	}
}

// validateReason проверяет обязательную причину операторского действия.
func validateReason(reason string) error {
	if len(reason) < minReasonLength {
		return fmt.Errorf("%w: reason must be at least %d characters", ErrInvalidReason, minReasonLength)
	}
	return nil
}
