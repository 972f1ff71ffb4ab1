package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/repo"
)

// defaultMaxAttempts — потолок автоматических попыток выполнения run.
const defaultMaxAttempts = 3

// RunStore — хранилище runs с точки зрения Gateway.
//
// Create обязан быть атомарным по уникальности
// (project_id, idempotency_key): при конфликте возвращает false и не
// меняет существующую запись. В Postgres это INSERT ... ON CONFLICT
// DO NOTHING по уникальному индексу — два конкурентных submit с одним
// ключом дают ровно один run.
//
// GetByIdempotencyKey возвращает repo.ErrNotFound, если run с таким
// ключом ещё не создавался.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) (created bool, err error)
	GetByIdempotencyKey(ctx context.Context, projectID uuid.UUID, key string) (*domain.Run, error)
}

// QueuePublisher — публикация события о новом queued run.
type QueuePublisher interface {
	PublishRunQueued(ctx context.Context, runID uuid.UUID) error
}

// Gateway — шлюз создания runs.
type Gateway struct {
	registry  *catalog.Registry
	evaluator *catalog.Evaluator
	runs      RunStore
	publisher QueuePublisher
	logger    *slog.Logger
}

// Config — конфигурация Gateway.
type Config struct {
	Registry  *catalog.Registry
	Evaluator *catalog.Evaluator
	Runs      RunStore
	Publisher QueuePublisher // опционально: без него runs подхватит polling
	Logger    *slog.Logger
}

// NewGateway создаёт Gateway.
func NewGateway(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry:  cfg.Registry,
		evaluator: cfg.Evaluator,
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// SubmitRequest — запрос на создание run.
type SubmitRequest struct {
	ProjectID              uuid.UUID
	ActionID               domain.ActionID
	IdempotencyKey         string
	TriggeredBy            string
	Params                 map[string]any
	RecipientCountEstimate int

	// RetryOf/RetryReason заполняет только Retry/Cancel controller.
	RetryOf     *uuid.UUID
	RetryReason string
}

// SubmitResult — результат submit.
type SubmitResult struct {
	Run *domain.Run

	// Deduplicated — run с таким ключом уже существовал;
	// возвращён он, в каком бы статусе ни был.
	Deduplicated bool
}

// Submit создаёт run или возвращает существующий по ключу идемпотентности.
//
// Дубликат никогда не ошибка: клиентский retry-on-timeout безопасен.
func (g *Gateway) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	def, err := g.registry.GetWorkflow(req.ActionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	if req.TriggeredBy == "" {
		return nil, fmt.Errorf("%w: triggered_by is required", ErrValidation)
	}

	// Дедупликация раньше любых проверок доступности: повторный submit
	// с уже использованным ключом возвращает существующий run, даже
	// если preconditions с тех пор перестали выполняться.
	existing, err := g.runs.GetByIdempotencyKey(ctx, req.ProjectID, req.IdempotencyKey)
	if err == nil {
		return g.deduplicated(req, existing), nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("check idempotency: %w", err)
	}

	// Для действий с подтверждением невыполненные preconditions
	// блокируют создание run. Операторский retry (RetryOf установлен)
	// через шлагбаум не проходит: исходный run прошёл его при создании,
	// а сам retry уже проверен и записан в журнал controller'ом.
	if def.ConfirmRequired && req.RetryOf == nil {
		avail, err := g.evaluator.Evaluate(ctx, req.ProjectID, def)
		if err != nil {
			return nil, fmt.Errorf("evaluate preconditions: %w", err)
		}
		if !avail.Available {
			return nil, fmt.Errorf("%w: %s (%s)", ErrActionUnavailable, avail.FailedPrecondition, avail.DisabledReasonKey)
		}
	}

	run := &domain.Run{
		ID:                     uuid.New(),
		ProjectID:              req.ProjectID,
		ActionID:               def.ID,
		Status:                 domain.RunStatusQueued,
		IdempotencyKey:         req.IdempotencyKey,
		Params:                 req.Params,
		RecipientCountEstimate: req.RecipientCountEstimate,
		TriggeredBy:            req.TriggeredBy,
		RetryOf:                req.RetryOf,
		RetryReason:            req.RetryReason,
		RequestedAt:            time.Now(),
		Attempts:               0,
		MaxAttempts:            defaultMaxAttempts,
	}

	created, err := g.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if !created {
		// Проигран конкурентный submit, проскочивший между проверкой
		// ключа и INSERT — возвращаем существующий run без изменений.
		existing, err := g.runs.GetByIdempotencyKey(ctx, req.ProjectID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("load deduplicated run: %w", err)
		}
		return g.deduplicated(req, existing), nil
	}

	g.logger.Info("run created",
		"run_id", run.ID,
		"project_id", run.ProjectID,
		"action_id", run.ActionID,
		"triggered_by", run.TriggeredBy,
	)

	// Публикация — best effort: run уже в БД, executor подберёт его
	// через polling, если очередь недоступна.
	if g.publisher != nil {
		if err := g.publisher.PublishRunQueued(ctx, run.ID); err != nil {
			g.logger.Warn("failed to publish run.queued", "run_id", run.ID, "error", err)
		}
	}

	return &SubmitResult{Run: run, Deduplicated: false}, nil
}

// deduplicated оформляет результат повторного submit.
func (g *Gateway) deduplicated(req SubmitRequest, existing *domain.Run) *SubmitResult {
	g.logger.Debug("submit deduplicated",
		"project_id", req.ProjectID,
		"idempotency_key", req.IdempotencyKey,
		"run_id", existing.ID,
	)
	return &SubmitResult{Run: existing, Deduplicated: true}
}
