package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shaiso/Outreach/internal/domain"
)

var stuckRunsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "outreach_stuck_runs",
	Help: "Runs left RUNNING with an expired lease",
})

// StuckLister — выборка застрявших runs.
type StuckLister interface {
	ListStuck(ctx context.Context, now time.Time, limit int) ([]domain.Run, error)
}

// Reaper периодически находит застрявшие runs: RUNNING с истёкшим lease.
//
// Reaper только поднимает их на поверхность — в лог, метрику и API.
// Автоматического retry нет намеренно: отправки не идемпотентны на
// стороне провайдера, повторная рассылка тем же получателям требует
// решения оператора.
type Reaper struct {
	runs      StuckLister
	logger    *slog.Logger
	batchSize int
}

// NewReaper создаёт Reaper.
func NewReaper(runs StuckLister, logger *slog.Logger, batchSize int) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reaper{
		runs:      runs,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один проход reaper'а.
func (r *Reaper) Tick(ctx context.Context) error {
	now := time.Now()

	stuck, err := r.runs.ListStuck(ctx, now, r.batchSize)
	if err != nil {
		return fmt.Errorf("list stuck runs: %w", err)
	}

	stuckRunsGauge.Set(float64(len(stuck)))

	for i := range stuck {
		run := &stuck[i]
		r.logger.Warn("stuck run detected",
			"run_id", run.ID,
			"project_id", run.ProjectID,
			"action_id", run.ActionID,
			"lease_expired_at", run.LeaseExpiresAt,
			"attempts", run.Attempts,
		)
	}

	if len(stuck) > 0 {
		r.logger.Info("reaper tick completed", "stuck", len(stuck))
	}

	return nil
}
