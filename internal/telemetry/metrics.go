// Package telemetry exposes the prometheus collectors and the small
// health/metrics HTTP surface shared across the kernel and controller,
// grounded on the teacher's pkg/metrics package.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HotEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knhk_hot_evaluations_total",
		Help: "Total hot-kernel evaluations by opcode and status.",
	}, []string{"opcode", "status"})

	TicksConsumed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knhk_hot_ticks_consumed",
		Help:    "Ticks consumed per hot evaluation.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
	}, []string{"opcode"})

	EpochOverrunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knhk_epoch_overruns_total",
		Help: "Epochs that exceeded their tick budget in real execution.",
	}, []string{"epoch"})

	LockchainAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knhk_lockchain_appends_total",
		Help: "Total lockchain entries appended.",
	})

	MapekCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knhk_mapek_cycles_total",
		Help: "MAPE-K cycles by outcome.",
	}, []string{"outcome"})

	ByzantineFlaggedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knhk_byzantine_contributors_flagged_total",
		Help: "Contributors flagged Byzantine during aggregation.",
	})

	ColdPlannerProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knhk_cold_planner_proposals_total",
		Help: "Cold planner overlay proposals by outcome.",
	}, []string{"outcome"})

	ColdPlannerBreakerStateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knhk_cold_planner_breaker_state_changes_total",
		Help: "Circuit breaker state transitions guarding the cold planner's analysis client.",
	}, []string{"to"})
)

// RecordHotEvaluation records both the outcome counter and tick histogram
// for a single hot-kernel evaluation.
func RecordHotEvaluation(opcode string, status string, ticks uint32) {
	HotEvaluationsTotal.WithLabelValues(opcode, status).Inc()
	TicksConsumed.WithLabelValues(opcode).Observe(float64(ticks))
}
