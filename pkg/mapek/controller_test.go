package mapek_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Controller", func() {
	It("runs a quiet cycle with no anomalies", func() {
		c := mapek.NewController(100, 0.7, mapek.RiskHigh, nil, nil)
		c.Monitor.RegisterMetric("Error Count", mapek.MetricReliability, 0.0, 5.0, "count")

		record, pending, err := c.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
		Expect(record.Outcome).To(Equal("quiet"))
	})

	It("detects a high error rate, plans a retry, executes it, and learns", func() {
		c := mapek.NewController(100, 0.7, mapek.RiskHigh, nil, nil)
		c.Monitor.RegisterMetric("Error Count", mapek.MetricReliability, 0.0, 5.0, "count")
		c.Analyzer.RegisterRule("High Error Rate Detection", mapek.RuleHighErrorRate, "")

		retryAction := mapek.Action{Description: "Retry payment with exponential backoff", RiskLevel: mapek.RiskLow}
		retryID := c.Planner.RegisterAction(retryAction)
		c.Planner.RegisterPolicy("Retry on Failure", "HighErrorRate", []uuid.UUID{retryID}, 100)

		Expect(c.Monitor.UpdateMetric("Error Count", 10.0)).To(Succeed())

		record, pending, err := c.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
		Expect(record.Analyses).To(HaveLen(1))
		Expect(record.Plans).To(HaveLen(1))
		Expect(record.Executions).To(HaveLen(1))
		Expect(record.Executions[0].Status).To(Equal(mapek.StatusSuccessful))
		Expect(record.Outcome).To(Equal("resolved"))

		Expect(c.Knowledge.SuccessRate(retryID)).To(BeNumerically(">", 0.5))
		Expect(c.Knowledge.GetPatterns()).NotTo(BeEmpty())
	})

	It("defers a high-risk restructure action for approval instead of executing it", func() {
		c := mapek.NewController(100, 0.7, mapek.RiskHigh, nil, nil)
		c.Monitor.RegisterMetric("Error Count", mapek.MetricReliability, 0.0, 5.0, "count")
		c.Analyzer.RegisterRule("High Error Rate Detection", mapek.RuleHighErrorRate, "")

		restructureID := c.Planner.RegisterAction(mapek.Action{Description: "Restructure service topology", RiskLevel: mapek.RiskCritical})
		c.Planner.RegisterPolicy("Restructure on Failure", "HighErrorRate", []uuid.UUID{restructureID}, 100)

		Expect(c.Monitor.UpdateMetric("Error Count", 10.0)).To(Succeed())

		record, pending, err := c.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(record.Plans).To(BeEmpty())
		Expect(pending).To(HaveLen(1))
		Expect(pending[0].Action.ID).To(Equal(restructureID))
	})
})
