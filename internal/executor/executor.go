package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 50
	defaultPrefetch      = 5
	defaultLeaseDuration = 10 * time.Minute
)

// RunStore — хранилище runs с точки зрения executor'а.
//
// Claim — единственный механизм эксклюзивности: одна условная запись
// переводит run queued→running (или перехватывает running с истёкшим
// lease) и ставит lease_expires_at. Проигранный claim возвращает
// repo.ErrConflict, а не блокируется.
type RunStore interface {
	Claim(ctx context.Context, runID uuid.UUID, lease time.Duration) (*domain.Run, error)
	Finalize(ctx context.Context, runID uuid.UUID, status domain.RunStatus, result *domain.RunResult) error
	ListQueued(ctx context.Context, limit int) ([]domain.Run, error)
}

// SendStore — запись неизменяемых send-записей.
type SendStore interface {
	Create(ctx context.Context, send *domain.Send) error
}

// Resolver — вычисление выборки получателей.
// Должен быть тем же экземпляром, что обслуживает preview.
type Resolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, source domain.RecipientSource) ([]domain.Recipient, error)
}

// Delivery — исход отправки одному получателю.
type Delivery struct {
	// Status — терминальный статус: SENT, FAILED или SUPPRESSED.
	Status domain.SendStatus

	// Error — ошибка провайдера при Status == FAILED.
	Error string
}

// Messenger — коллаборатор доставки сообщений.
//
// Ошибки уровня получателя возвращаются в Delivery и не считаются
// сбоем run. Возврат error означает инфраструктурный отказ транспорта
// — run будет финализирован как FAILED.
type Messenger interface {
	Send(ctx context.Context, run *domain.Run, recipient domain.Recipient) (Delivery, error)
}

// Executor захватывает и выполняет runs.
//
// Источники работы:
//   - Consumer очереди runs.queued (event-driven)
//   - Периодический poll queued runs в БД (fallback)
//
// Экземпляров может быть несколько; эксклюзивность обеспечивает
// только lease claim в БД.
type Executor struct {
	runs     RunStore
	sends    SendStore
	resolver Resolver
	msgr     Messenger
	registry *catalog.Registry

	conn     *mq.Connection
	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int
	lease        time.Duration

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Executor.
type Config struct {
	Runs     RunStore
	Sends    SendStore
	Resolver Resolver
	Msgr     Messenger
	Registry *catalog.Registry

	// Conn — опционально; без него работает только polling.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 50)

	// Lease — срок эксклюзивного захвата. Должен превышать худшее
	// время выполнения (размер выборки × задержка на получателя +
	// запас): заниженный lease даёт ложные "застрявшие" runs и
	// дубли отправок вторым захватчиком.
	Lease time.Duration

	Logger *slog.Logger
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	lease := cfg.Lease
	if lease <= 0 {
		lease = defaultLeaseDuration
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		runs:         cfg.Runs,
		sends:        cfg.Sends,
		resolver:     cfg.Resolver,
		msgr:         cfg.Msgr,
		registry:     cfg.Registry,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		lease:        lease,
		logger:       logger,
	}
}

// Start запускает Executor: consumer runs.queued + polling fallback.
func (e *Executor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting executor",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
		"lease", e.lease,
	)

	if e.conn != nil {
		e.consumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsQueued),
			Handler:  e.handleRunQueued,
			Prefetch: defaultPrefetch,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("executor started")
	return nil
}

// Stop останавливает Executor.
func (e *Executor) Stop() {
	e.logger.Info("stopping executor...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	if e.consumer != nil {
		e.consumer.Stop()
	}

	e.wg.Wait()
	e.logger.Info("executor stopped")
}

// handleRunQueued обрабатывает событие run.queued из очереди.
func (e *Executor) handleRunQueued(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunQueuedPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse run.queued payload", "error", err)
		return err
	}

	e.logger.Debug("received run.queued event", "run_id", payload.RunID)

	if err := e.ExecuteRun(ctx, payload.RunID); err != nil {
		// Проигранный claim и исчезнувший run — ожидаемые ситуации (ack).
		if errors.Is(err, ErrNotClaimable) || errors.Is(err, ErrRunNotFound) {
			e.logger.Debug("run not executed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		e.logger.Error("failed to execute run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// pollLoop — цикл polling для fallback.
func (e *Executor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (e *Executor) poll(ctx context.Context) {
	runs, err := e.runs.ListQueued(ctx, e.batchSize)
	if err != nil {
		e.logger.Error("failed to list queued runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	e.logger.Debug("poll found queued runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := e.ExecuteRun(ctx, run.ID); err != nil {
			if errors.Is(err, ErrNotClaimable) || errors.Is(err, ErrRunNotFound) {
				continue
			}
			e.logger.Error("failed to execute run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}
