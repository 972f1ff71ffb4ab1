// Outreach Executor — выполняет runs.
//
// Executor:
//   - Получает события run.queued из RabbitMQ (+ polling fallback)
//   - Захватывает run условной записью с lease
//   - Вычисляет выборку получателей и отправляет сообщения
//   - Финализирует run с агрегированным результатом
//
// Executors масштабируются горизонтально: эксклюзивность обеспечивает
// lease claim в БД, а не количество экземпляров.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/executor"
	"github.com/shaiso/Outreach/internal/messaging"
	"github.com/shaiso/Outreach/internal/mq"
	"github.com/shaiso/Outreach/internal/recipients"
	"github.com/shaiso/Outreach/internal/repo"
	"github.com/shaiso/Outreach/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting outreach-executor")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории и каталог
	runRepo := repo.NewRunRepo(pool)
	sendRepo := repo.NewSendRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	registry, err := catalog.NewRegistry()
	if err != nil {
		logger.Error("invalid action catalog", "error", err)
		os.Exit(1)
	}
	resolver := recipients.NewResolver(eventRepo)

	// Messenger — HTTP webhook к провайдеру доставки
	messengerURL := os.Getenv("MESSENGER_URL")
	if messengerURL == "" {
		messengerURL = "http://localhost:8090"
	}
	msgr := messaging.NewHTTPMessenger(messengerURL, os.Getenv("MESSENGER_API_KEY"))

	// RabbitMQ
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	// Lease настраивается под худшее время выполнения run
	lease := 10 * time.Minute
	if v := os.Getenv("LEASE_SECONDS"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			lease = time.Duration(sec) * time.Second
		}
	}

	// Создаём executor
	exec := executor.New(executor.Config{
		Runs:     runRepo,
		Sends:    sendRepo,
		Resolver: resolver,
		Msgr:     msgr,
		Registry: registry,
		Conn:     mqConn,
		Lease:    lease,
		Logger:   logger,
	})

	// Запускаем executor
	if err := exec.Start(ctx); err != nil {
		logger.Error("failed to start executor", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("EXECUTOR_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем executor
	exec.Stop()
	logger.Info("outreach-executor stopped")
}
