package mapek_test

import (
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Planner", func() {
	var planner *mapek.Planner

	BeforeEach(func() {
		planner = mapek.NewPlanner(0.7, mapek.RiskHigh)
	})

	It("creates a plan from a matching policy", func() {
		actionID := planner.RegisterAction(mapek.Action{
			Description: "Retry operation",
			RiskLevel:   mapek.RiskLow,
		})
		planner.RegisterPolicy("Retry on Failure", "HighErrorRate", []uuid.UUID{actionID}, 100)

		analysis := mapek.Analysis{RuleType: mapek.RuleHighErrorRate, Problem: "High error rate"}
		plan, pending, err := planner.CreatePlan(analysis, map[uuid.UUID]float64{actionID: 0.9})

		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
		Expect(plan).NotTo(BeNil())
		Expect(plan.Actions).To(ConsistOf(actionID))
	})

	It("returns no plan when no policy matches", func() {
		analysis := mapek.Analysis{RuleType: mapek.RuleResourceStarvation, Problem: "starved"}
		plan, _, err := planner.CreatePlan(analysis, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan).To(BeNil())
	})

	It("admits a low-risk action even with a poor success rate", func() {
		actionID := planner.RegisterAction(mapek.Action{Description: "Safe retry", RiskLevel: mapek.RiskLow})
		planner.RegisterPolicy("Retry", "HighErrorRate", []uuid.UUID{actionID}, 100)

		analysis := mapek.Analysis{RuleType: mapek.RuleHighErrorRate}
		plan, _, err := planner.CreatePlan(analysis, map[uuid.UUID]float64{actionID: 0.1})

		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Actions).To(ConsistOf(actionID))
	})

	It("rejects a medium-risk action with a poor success rate", func() {
		actionID := planner.RegisterAction(mapek.Action{Description: "Risky retry", RiskLevel: mapek.RiskMedium})
		planner.RegisterPolicy("Retry", "HighErrorRate", []uuid.UUID{actionID}, 100)

		analysis := mapek.Analysis{RuleType: mapek.RuleHighErrorRate}
		plan, _, err := planner.CreatePlan(analysis, map[uuid.UUID]float64{actionID: 0.1})

		Expect(err).NotTo(HaveOccurred())
		Expect(plan).To(BeNil())
	})

	It("defers a high-risk action for human approval instead of admitting it", func() {
		actionID := planner.RegisterAction(mapek.Action{Description: "Restructure", RiskLevel: mapek.RiskHigh})
		planner.RegisterPolicy("Restructure on Failure", "HighErrorRate", []uuid.UUID{actionID}, 100)

		analysis := mapek.Analysis{RuleType: mapek.RuleHighErrorRate}
		plan, pending, err := planner.CreatePlan(analysis, map[uuid.UUID]float64{actionID: 0.95})

		Expect(err).NotTo(HaveOccurred())
		Expect(plan).To(BeNil())
		Expect(pending).To(HaveLen(1))
		Expect(pending[0].Action.ID).To(Equal(actionID))
	})

	It("only pulls actions from the highest-priority policy that admits any", func() {
		lowRiskAction := planner.RegisterAction(mapek.Action{Description: "Low", RiskLevel: mapek.RiskLow})
		highPriorityButRejected := planner.RegisterAction(mapek.Action{Description: "Rejected", RiskLevel: mapek.RiskMedium})

		planner.RegisterPolicy("High priority, rejects", "HighErrorRate", []uuid.UUID{highPriorityButRejected}, 200)
		planner.RegisterPolicy("Low priority, admits", "HighErrorRate", []uuid.UUID{lowRiskAction}, 100)

		analysis := mapek.Analysis{RuleType: mapek.RuleHighErrorRate}
		rates := map[uuid.UUID]float64{highPriorityButRejected: 0.1, lowRiskAction: 0.1}

		plan, _, err := planner.CreatePlan(analysis, rates)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan).NotTo(BeNil())
		Expect(plan.Actions).To(ConsistOf(lowRiskAction))
	})
})
