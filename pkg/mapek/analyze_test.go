package mapek_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Analyzer", func() {
	var analyzer *mapek.Analyzer

	BeforeEach(func() {
		analyzer = mapek.NewAnalyzer()
	})

	It("returns nothing when there are no observations", func() {
		analyzer.RegisterRule("High Error Rate", mapek.RuleHighErrorRate, "")
		analyses := analyzer.Analyze(nil, []mapek.Metric{{Name: "Error Count", IsAnomalous: true}})
		Expect(analyses).To(BeEmpty())
	})

	It("matches a high-error-rate rule against an anomalous error metric", func() {
		analyzer.RegisterRule("High Error Rate", mapek.RuleHighErrorRate, "")

		observations := []mapek.Observation{{ObservedElement: "payment_processor", Severity: mapek.SeverityHigh}}
		metrics := []mapek.Metric{{Name: "Error Count", IsAnomalous: true}}

		analyses := analyzer.Analyze(observations, metrics)
		Expect(analyses).To(HaveLen(1))
		Expect(analyses[0].RuleType).To(Equal(mapek.RuleHighErrorRate))
		Expect(analyses[0].Confidence).To(BeNumerically(">", 0.5))
		Expect(analyses[0].Confidence).To(BeNumerically("<=", 1.0))
	})

	It("does not match a rule whose metric kind is absent", func() {
		analyzer.RegisterRule("Performance Degradation", mapek.RulePerformanceDegrade, "")

		observations := []mapek.Observation{{ObservedElement: "x", Severity: mapek.SeverityLow}}
		metrics := []mapek.Metric{{Name: "Error Count", Type: mapek.MetricReliability, IsAnomalous: true}}

		analyses := analyzer.Analyze(observations, metrics)
		Expect(analyses).To(BeEmpty())
	})

	It("produces one analysis when a single registered rule matches", func() {
		lowID := analyzer.RegisterRule("Low Priority", mapek.RuleHighErrorRate, "")
		Expect(lowID).NotTo(Equal(uuid.Nil))

		observations := []mapek.Observation{{ObservedElement: "x", Severity: mapek.SeverityCritical}}
		metrics := []mapek.Metric{{Name: "error_rate", IsAnomalous: true}}

		analyses := analyzer.Analyze(observations, metrics)
		Expect(analyses).To(HaveLen(1))
	})
})
