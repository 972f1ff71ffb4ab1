package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Outreach/internal/api"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/control"
	"github.com/shaiso/Outreach/internal/digest"
	"github.com/shaiso/Outreach/internal/engine"
	"github.com/shaiso/Outreach/internal/mq"
	"github.com/shaiso/Outreach/internal/recipients"
	"github.com/shaiso/Outreach/internal/repo"
	"github.com/shaiso/Outreach/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_api_http_requests_total",
		Help: "Total HTTP requests handled by outreach_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting outreach-api")

	// Накатываем миграции
	if err := repo.Migrate(repo.DefaultDSN()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	sendRepo := repo.NewSendRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	integrationRepo := repo.NewIntegrationRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)
	digestRepo := repo.NewDigestRepo(pool)

	// Каталог действий и доступность
	registry, err := catalog.NewRegistry()
	if err != nil {
		logger.Error("invalid action catalog", "error", err)
		os.Exit(1)
	}
	resolver := recipients.NewResolver(eventRepo)
	evaluator := catalog.NewEvaluator(integrationRepo, eventRepo, resolver)

	// RabbitMQ — best effort: без него runs подхватит polling executor'а
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, executor will rely on polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		ctx := context.Background()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Gateway и операторский controller
	var queuePublisher engine.QueuePublisher
	if publisher != nil {
		queuePublisher = publisher
	}
	gateway := engine.NewGateway(engine.Config{
		Registry:  registry,
		Evaluator: evaluator,
		Runs:      runRepo,
		Publisher: queuePublisher,
		Logger:    logger,
	})
	controller := control.NewController(runRepo, gateway, auditRepo, logger)

	// Digest scheduler (API использует только UpdateSettings,
	// тики выполняет outreach-scheduler)
	scheduler := digest.New(digest.Config{
		Store:   digestRepo,
		Gateway: gateway,
		Logger:  logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Registry:   registry,
		Evaluator:  evaluator,
		Resolver:   resolver,
		Gateway:    gateway,
		Controller: controller,
		Scheduler:  scheduler,
		RunRepo:    runRepo,
		SendRepo:   sendRepo,
		DigestRepo: digestRepo,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
