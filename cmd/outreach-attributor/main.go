// Outreach Attributor — асинхронный расчёт бизнес-результатов runs.
//
// Attributor периодически находит завершённые runs с прошедшим окном
// атрибуции и записывает outcome (last-touch). Расчёт идёт мимо
// горячего пути выполнения: опоздание атрибуции никому не мешает.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Outreach/internal/attribution"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/repo"
	"github.com/shaiso/Outreach/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting outreach-attributor")

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

	registry, err := catalog.NewRegistry()
	if err != nil {
		logger.Error("invalid action catalog", "error", err)
		os.Exit(1)
	}

	calculator := attribution.New(attribution.Config{
		Runs:     repo.NewRunRepo(pool),
		Sends:    repo.NewSendRepo(pool),
		Events:   repo.NewEventRepo(pool),
		Registry: registry,
		Logger:   logger,
	})

	// calculator loop
	go func() {
		tk := time.NewTicker(time.Minute)
		defer tk.Stop()

		for {
			select {
			case <-tk.C:
				if err := calculator.Tick(ctx); err != nil {
					logger.Error("attribution tick failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ATTRIBUTOR_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("outreach-attributor stopped")
}
