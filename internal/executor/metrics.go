package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики executor'а.
var (
	runsClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_executor_runs_claimed_total",
		Help: "Runs successfully claimed by this executor",
	})

	claimLostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_executor_claim_lost_total",
		Help: "Claim attempts lost to another executor or refused",
	})

	runsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_executor_runs_finalized_total",
		Help: "Runs finalized, by terminal status",
	}, []string{"status"})

	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_executor_sends_total",
		Help: "Per-recipient sends, by delivery status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outreach_executor_run_duration_seconds",
		Help:    "Wall time of run execution after claim",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
