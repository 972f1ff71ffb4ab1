package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/engine"
)

// Store — хранилище расписаний дайджестов.
type Store interface {
	Get(ctx context.Context, projectID uuid.UUID) (*domain.DigestSchedule, error)
	Upsert(ctx context.Context, schedule *domain.DigestSchedule) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DigestSchedule, error)
}

// Submitter — создание digest run через Gateway.
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (*engine.SubmitResult, error)
}

// Scheduler — планировщик дайджестов.
//
// Фиксированный тик: находит расписания с прошедшим next_at, создаёт
// digest run через Gateway и вычисляет новое next_at. Идемпотентность
// создания обеспечивает ключ "digest_{project}_{next_at}": повторный
// тик по тому же срабатыванию дедуплицируется Gateway'ем.
type Scheduler struct {
	store     Store
	gateway   Submitter
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Store     Store
	Gateway   Submitter
	Logger    *slog.Logger
	BatchSize int // расписаний за один тик (default: 100)
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		store:     cfg.Store,
		gateway:   cfg.Gateway,
		logger:    logger,
		batchSize: batchSize,
	}
}

// UpdateSettings применяет настройки дайджеста проекта.
//
// Включение (или смена часа/зоны) пересчитывает next_at; выключение
// очищает его — расписание не сработает до повторного включения.
func (s *Scheduler) UpdateSettings(ctx context.Context, projectID uuid.UUID, enabled bool, hour int, timezone string) (*domain.DigestSchedule, error) {
	if timezone == "" {
		timezone = "UTC"
	}

	schedule := &domain.DigestSchedule{
		ProjectID: projectID,
		Enabled:   enabled,
		Hour:      hour,
		Timezone:  timezone,
		UpdatedAt: time.Now(),
	}

	if enabled {
		next, err := NextAt(hour, timezone, time.Now())
		if err != nil {
			return nil, err
		}
		schedule.NextAt = &next
	} else {
		// Валидируем настройки и в выключенном состоянии, чтобы
		// включение позже не упало.
		if _, err := NextAt(hour, timezone, time.Now()); err != nil {
			return nil, err
		}
	}

	if err := s.store.Upsert(ctx, schedule); err != nil {
		return nil, fmt.Errorf("upsert digest schedule: %w", err)
	}

	s.logger.Info("digest settings updated",
		"project_id", projectID,
		"enabled", enabled,
		"hour", hour,
		"timezone", timezone,
		"next_at", schedule.NextAt,
	)

	return schedule, nil
}

// Tick выполняет один тик планировщика.
//
// Ошибки одного расписания не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	due, err := s.store.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due digest schedules: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due digest schedules", "count", len(due))

	var fired int
	for i := range due {
		schedule := &due[i]

		if err := s.fire(ctx, schedule, now); err != nil {
			s.logger.Error("failed to fire digest schedule",
				"project_id", schedule.ProjectID,
				"error", err,
			)
			continue
		}
		fired++
	}

	s.logger.Info("digest tick completed", "due", len(due), "fired", fired)
	return nil
}

// fire создаёт digest run для одного расписания и сдвигает next_at.
func (s *Scheduler) fire(ctx context.Context, schedule *domain.DigestSchedule, now time.Time) error {
	// Ключ привязан к конкретному срабатыванию: если тик повторится
	// до обновления next_at, Gateway вернёт существующий run.
	idempKey := fmt.Sprintf("digest_%s_%d", schedule.ProjectID, schedule.NextAt.Unix())

	result, err := s.gateway.Submit(ctx, engine.SubmitRequest{
		ProjectID:      schedule.ProjectID,
		ActionID:       domain.ActionSendWeeklyDigest,
		IdempotencyKey: idempKey,
		TriggeredBy:    "scheduler",
	})
	if err != nil {
		return fmt.Errorf("submit digest run: %w", err)
	}

	if result.Deduplicated {
		s.logger.Debug("digest run already exists",
			"project_id", schedule.ProjectID,
			"run_id", result.Run.ID,
		)
	} else {
		s.logger.Info("digest run created",
			"project_id", schedule.ProjectID,
			"run_id", result.Run.ID,
		)
	}

	next, err := NextAt(schedule.Hour, schedule.Timezone, now)
	if err != nil {
		// Настройки испортились после создания — не трогаем next_at,
		// чтобы не потерять расписание молча.
		return fmt.Errorf("compute next_at: %w", err)
	}

	schedule.NextAt = &next
	schedule.LastRunID = &result.Run.ID
	schedule.UpdatedAt = now

	if err := s.store.Upsert(ctx, schedule); err != nil {
		return fmt.Errorf("update digest schedule: %w", err)
	}

	return nil
}
