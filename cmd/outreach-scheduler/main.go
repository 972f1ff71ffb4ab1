package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/control"
	"github.com/shaiso/Outreach/internal/digest"
	"github.com/shaiso/Outreach/internal/engine"
	"github.com/shaiso/Outreach/internal/recipients"
	"github.com/shaiso/Outreach/internal/repo"
	"github.com/shaiso/Outreach/internal/telemetry"
)

const schedLockKey int64 = 737373

func main() {
	logger := telemetry.SetupLogger()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		log.Fatalf("[scheduler] db connect: %v", err)
	}
	defer pool.Close()
	log.Printf("[scheduler] db connected")

	runRepo := repo.NewRunRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	integrationRepo := repo.NewIntegrationRepo(pool)
	digestRepo := repo.NewDigestRepo(pool)

	registry, err := catalog.NewRegistry()
	if err != nil {
		log.Fatalf("[scheduler] catalog: %v", err)
	}
	resolver := recipients.NewResolver(eventRepo)
	evaluator := catalog.NewEvaluator(integrationRepo, eventRepo, resolver)

	// Digest runs создаются через тот же Gateway, что и обычные submit:
	// дедупликация по ключу работает и для scheduler'а.
	gateway := engine.NewGateway(engine.Config{
		Registry:  registry,
		Evaluator: evaluator,
		Runs:      runRepo,
		Logger:    logger,
	})

	scheduler := digest.New(digest.Config{
		Store:   digestRepo,
		Gateway: gateway,
		Logger:  logger,
	})
	reaper := control.NewReaper(runRepo, logger, 100)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// scheduler loop
	go func() {
		tk := time.NewTicker(15 * time.Second)
		defer tk.Stop()

		// Лидерство держится на выделенном соединении: advisory lock
		// сессионный, и через пул lock и unlock могут попасть в разные
		// сессии.
		var lockConn *pgxpool.Conn
		defer func() {
			if lockConn != nil {
				_, _ = lockConn.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
				lockConn.Release()
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if lockConn == nil {
					conn, err := pool.Acquire(ctx)
					if err != nil {
						log.Printf("[scheduler] acquire lock conn: %v", err)
						continue
					}
					var ok bool
					if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						conn.Release()
						log.Printf("[scheduler] lock err: %v", err)
						continue
					}
					if !ok {
						// не лидер — пропускаем тик
						conn.Release()
						continue
					}
					lockConn = conn
				}

				// Сессия умерла — lock снят сервером, лидерство потеряно
				if err := lockConn.Ping(ctx); err != nil {
					log.Printf("[scheduler] lock conn lost: %v", err)
					lockConn.Release()
					lockConn = nil
					continue
				}

				if err := scheduler.Tick(ctx); err != nil {
					log.Printf("[scheduler] digest tick: %v", err)
				}
				if err := reaper.Tick(ctx); err != nil {
					log.Printf("[scheduler] reaper tick: %v", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// serve
	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}
	log.Printf("[scheduler] listening on %s", port)
	go func() {
		if err := http.ListenAndServe(port, mux); err != nil {
			log.Printf("[scheduler] http error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Printf("[scheduler] stopped")
}
