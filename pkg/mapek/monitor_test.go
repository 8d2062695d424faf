package mapek_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Monitor", func() {
	var monitor *mapek.Monitor

	BeforeEach(func() {
		monitor = mapek.NewMonitor(10)
	})

	It("flags a metric anomalous once its value exceeds the threshold", func() {
		monitor.RegisterMetric("Test Metric", mapek.MetricPerformance, 100.0, 150.0, "ms")

		Expect(monitor.UpdateMetric("Test Metric", 120.0)).To(Succeed())
		metrics := monitor.CollectMetrics()
		Expect(metrics).To(HaveLen(1))
		Expect(metrics[0].IsAnomalous).To(BeFalse())

		Expect(monitor.UpdateMetric("Test Metric", 200.0)).To(Succeed())
		metrics = monitor.CollectMetrics()
		Expect(metrics[0].IsAnomalous).To(BeTrue())

		anomalies := monitor.DetectAnomalies(metrics)
		Expect(anomalies).To(HaveLen(1))
	})

	It("rejects updates to an unregistered metric", func() {
		err := monitor.UpdateMetric("Unknown", 1.0)
		Expect(err).To(HaveOccurred())
	})

	It("classifies an increasing series as degrading", func() {
		monitor.RegisterMetric("Latency", mapek.MetricPerformance, 100.0, 1000.0, "ms")
		for _, v := range []float64{100, 110, 120, 130, 140} {
			Expect(monitor.UpdateMetric("Latency", v)).To(Succeed())
		}
		metrics := monitor.CollectMetrics()
		Expect(metrics[0].Trend).To(Equal(mapek.TrendDegrading))
	})

	It("classifies a decreasing series as improving", func() {
		monitor.RegisterMetric("Latency", mapek.MetricPerformance, 100.0, 1000.0, "ms")
		for _, v := range []float64{140, 130, 120, 110, 100} {
			Expect(monitor.UpdateMetric("Latency", v)).To(Succeed())
		}
		metrics := monitor.CollectMetrics()
		Expect(metrics[0].Trend).To(Equal(mapek.TrendImproving))
	})

	It("classifies a flat series as stable", func() {
		monitor.RegisterMetric("Latency", mapek.MetricPerformance, 100.0, 1000.0, "ms")
		for i := 0; i < 5; i++ {
			Expect(monitor.UpdateMetric("Latency", 100.0)).To(Succeed())
		}
		metrics := monitor.CollectMetrics()
		Expect(metrics[0].Trend).To(Equal(mapek.TrendStable))
	})

	It("bounds history to max_history_size samples", func() {
		monitor = mapek.NewMonitor(3)
		monitor.RegisterMetric("Bounded", mapek.MetricPerformance, 1.0, 1000.0, "ms")
		for i := 0; i < 20; i++ {
			Expect(monitor.UpdateMetric("Bounded", float64(i))).To(Succeed())
		}
		// no panic and no unbounded growth is the behavior under test; the
		// trend calculation over the most recent window still succeeds.
		metrics := monitor.CollectMetrics()
		Expect(metrics).To(HaveLen(1))
	})
})
