package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/repo"
)

// ExecuteRun выполняет один run целиком, синхронно.
//
// Последовательность: claim → resolve → dispatch → finalize.
// Проигранный claim — не ошибка выполнения, возвращается
// ErrNotClaimable.
func (e *Executor) ExecuteRun(ctx context.Context, runID uuid.UUID) error {
	run, err := e.runs.Claim(ctx, runID, e.lease)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			claimLostTotal.Inc()
			return fmt.Errorf("%w: %s", ErrNotClaimable, runID)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("claim run: %w", err)
	}

	runsClaimedTotal.Inc()
	start := time.Now()

	logger := e.logger.With(
		"run_id", run.ID,
		"project_id", run.ProjectID,
		"action_id", run.ActionID,
		"attempt", run.Attempts,
	)
	logger.Info("run claimed", "lease_expires_at", run.LeaseExpiresAt)

	def, err := e.registry.Get(run.ActionID)
	if err != nil {
		// Run с действием вне каталога не должен существовать —
		// Gateway такие отклоняет. Финализируем как сбой.
		return e.fail(ctx, run, fmt.Sprintf("action lookup: %v", err), nil)
	}

	recipients, err := e.resolver.Resolve(ctx, run.ProjectID, def.Source)
	if err != nil {
		return e.fail(ctx, run, fmt.Sprintf("resolve recipients: %v", err), nil)
	}

	result := &domain.RunResult{TotalRecipients: len(recipients)}

	for _, recipient := range recipients {
		// Остановка процесса посреди рассылки: run остаётся RUNNING
		// с живым lease и станет доступен снова после его истечения.
		if err := ctx.Err(); err != nil {
			logger.Warn("execution interrupted", "sent", result.Successful, "error", err)
			return err
		}

		delivery, err := e.msgr.Send(ctx, run, recipient)
		if err != nil {
			// Инфраструктурный отказ транспорта — прерываем рассылку.
			return e.fail(ctx, run, fmt.Sprintf("messenger: %v", err), result)
		}

		send := &domain.Send{
			ID:             uuid.New(),
			RunID:          run.ID,
			ProjectID:      run.ProjectID,
			ActionID:       run.ActionID,
			RecipientEmail: recipient.Email,
			Status:         delivery.Status,
			SentAt:         time.Now(),
			Error:          delivery.Error,
		}
		if err := e.sends.Create(ctx, send); err != nil {
			return e.fail(ctx, run, fmt.Sprintf("record send: %v", err), result)
		}

		sendsTotal.WithLabelValues(string(delivery.Status)).Inc()

		switch delivery.Status {
		case domain.SendStatusSent:
			result.Successful++
		case domain.SendStatusFailed:
			// Ошибка одного получателя фиксируется на send и не
			// эскалирует в сбой run.
			result.Failed++
		case domain.SendStatusSuppressed:
			result.Suppressed++
		}
	}

	if err := e.runs.Finalize(ctx, run.ID, domain.RunStatusSucceeded, result); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}

	runsFinalizedTotal.WithLabelValues(string(domain.RunStatusSucceeded)).Inc()
	runDuration.Observe(time.Since(start).Seconds())

	logger.Info("run succeeded",
		"total", result.TotalRecipients,
		"successful", result.Successful,
		"failed", result.Failed,
		"suppressed", result.Suppressed,
		"duration", time.Since(start),
	)

	return nil
}

// fail финализирует run как FAILED с описанием инфраструктурной ошибки.
func (e *Executor) fail(ctx context.Context, run *domain.Run, summary string, partial *domain.RunResult) error {
	result := partial
	if result == nil {
		result = &domain.RunResult{}
	}
	result.ErrorSummary = summary

	if err := e.runs.Finalize(ctx, run.ID, domain.RunStatusFailed, result); err != nil {
		return fmt.Errorf("finalize failed run: %w", err)
	}

	runsFinalizedTotal.WithLabelValues(string(domain.RunStatusFailed)).Inc()

	e.logger.Warn("run failed",
		"run_id", run.ID,
		"action_id", run.ActionID,
		"error", summary,
	)

	return nil
}
