package mapek_test

import (
	"context"
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Executor", func() {
	var (
		monitor  *mapek.Monitor
		actionID uuid.UUID
		action   mapek.Action
	)

	BeforeEach(func() {
		monitor = mapek.NewMonitor(10)
		monitor.RegisterMetric("Payment Latency", mapek.MetricPerformance, 100.0, 1000.0, "ms")
		actionID = uuid.New()
		action = mapek.Action{ID: actionID, Description: "Test action"}
	})

	It("executes every action in a plan and records before/after metrics", func() {
		executor := mapek.NewExecutor(monitor, nil, nil)
		plan := mapek.Plan{Actions: []uuid.UUID{actionID}}

		executions, err := executor.ExecutePlan(context.Background(), plan, map[uuid.UUID]mapek.Action{actionID: action})
		Expect(err).NotTo(HaveOccurred())
		Expect(executions).To(HaveLen(1))
		Expect(executions[0].Status).To(Equal(mapek.StatusSuccessful))
		Expect(executions[0].MetricsBefore).To(HaveLen(1))
		Expect(executions[0].MetricsAfter).To(HaveLen(1))
	})

	It("records a failed action without aborting the remaining plan", func() {
		failing := uuid.New()
		succeeding := uuid.New()
		invoke := func(ctx context.Context, a mapek.Action) (mapek.ExecutionStatus, string, error) {
			if a.ID == failing {
				return mapek.StatusFailed, "", errors.New("handler exploded")
			}
			return mapek.StatusSuccessful, "ok", nil
		}
		executor := mapek.NewExecutor(monitor, invoke, nil)
		plan := mapek.Plan{Actions: []uuid.UUID{failing, succeeding}}
		actions := map[uuid.UUID]mapek.Action{
			failing:    {ID: failing, Description: "Fails"},
			succeeding: {ID: succeeding, Description: "Succeeds"},
		}

		executions, err := executor.ExecutePlan(context.Background(), plan, actions)
		Expect(err).NotTo(HaveOccurred())
		Expect(executions).To(HaveLen(2))
		Expect(executions[0].Status).To(Equal(mapek.StatusFailed))
		Expect(executions[0].Error).To(ContainSubstring("handler exploded"))
		Expect(executions[1].Status).To(Equal(mapek.StatusSuccessful))
	})

	It("reports an improvement when a performance metric decreases", func() {
		invoke := func(ctx context.Context, a mapek.Action) (mapek.ExecutionStatus, string, error) {
			Expect(monitor.UpdateMetric("Payment Latency", 50.0)).To(Succeed())
			return mapek.StatusSuccessful, "optimized", nil
		}
		executor := mapek.NewExecutor(monitor, invoke, nil)
		plan := mapek.Plan{Actions: []uuid.UUID{actionID}}

		executions, err := executor.ExecutePlan(context.Background(), plan, map[uuid.UUID]mapek.Action{actionID: action})
		Expect(err).NotTo(HaveOccurred())
		Expect(executions[0].ImpactAnalysis).To(ContainSubstring("improved"))
	})

	It("computes a 0.5 success rate with no history and updates after executions", func() {
		executor := mapek.NewExecutor(monitor, nil, nil)
		Expect(executor.SuccessRate(actionID)).To(Equal(0.5))

		plan := mapek.Plan{Actions: []uuid.UUID{actionID}}
		_, err := executor.ExecutePlan(context.Background(), plan, map[uuid.UUID]mapek.Action{actionID: action})
		Expect(err).NotTo(HaveOccurred())
		Expect(executor.SuccessRate(actionID)).To(Equal(1.0))
	})
})
