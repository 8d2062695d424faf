package mapek

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/mathutil"
)

// Monitor registers metrics, tracks a bounded history per metric, and
// derives anomaly/trend state on each update (spec §4.8 "Monitor").
//
// Grounded on original_source/rust/knhk-autonomic/src/monitor/mod.rs's
// MonitoringComponent; its pair of Arc<RwLock<HashMap<...>>> becomes two
// plain maps guarded by one sync.RWMutex here, rather than one lock per
// map.
type Monitor struct {
	mu             sync.RWMutex
	metrics        map[string]*Metric
	history        map[string][]float64
	maxHistorySize int
}

// NewMonitor constructs a Monitor with the given bounded history size
// (spec §6 monitor.max_history_size, default 100).
func NewMonitor(maxHistorySize int) *Monitor {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &Monitor{
		metrics:        make(map[string]*Metric),
		history:        make(map[string][]float64),
		maxHistorySize: maxHistorySize,
	}
}

// RegisterMetric adds a metric definition, seeded at its expected value.
func (m *Monitor) RegisterMetric(name string, typ MetricType, expected, anomalyThreshold float64, unit string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.metrics[name] = &Metric{
		ID:               id,
		Name:             name,
		Type:             typ,
		CurrentValue:     expected,
		ExpectedValue:    expected,
		AnomalyThreshold: anomalyThreshold,
		Unit:             unit,
		Trend:            TrendStable,
		Timestamp:        time.Now(),
	}
	m.history[name] = nil
	return id
}

// UpdateMetric records a new sample, recomputes the anomaly flag and
// trend, and appends to the bounded history (oldest sample dropped once
// maxHistorySize is reached).
func (m *Monitor) UpdateMetric(name string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	metric, ok := m.metrics[name]
	if !ok {
		return &kerrors.KernelError{Kind: kerrors.KindValidationFailed, Message: "unknown metric: " + name}
	}

	hist := append(m.history[name], value)
	if len(hist) > m.maxHistorySize {
		hist = hist[len(hist)-m.maxHistorySize:]
	}
	m.history[name] = hist

	metric.CurrentValue = value
	metric.Timestamp = time.Now()
	metric.IsAnomalous = value > metric.AnomalyThreshold
	metric.TrendSlope, metric.Trend = calculateTrend(hist)

	return nil
}

// calculateTrend computes the least-squares slope over the last
// min(len(history),10) samples and classifies it (spec §4.8).
func calculateTrend(history []float64) (float64, TrendDirection) {
	window := history
	if len(window) > 10 {
		window = window[len(window)-10:]
	}
	slope := mathutil.LeastSquaresSlope(window)
	switch {
	case slope > 0.01:
		return slope, TrendDegrading
	case slope < -0.01:
		return slope, TrendImproving
	default:
		return slope, TrendStable
	}
}

// calculateSeverity grades current/threshold drift (spec §4.8: >2x
// critical, >1.5x high, >1.2x medium, else low).
func calculateSeverity(current, threshold float64) Severity {
	if threshold == 0 {
		return SeverityLow
	}
	ratio := current / threshold
	switch {
	case ratio > 2.0:
		return SeverityCritical
	case ratio > 1.5:
		return SeverityHigh
	case ratio > 1.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CollectMetrics returns a snapshot of every registered metric's current
// state, in a stable name-sorted order.
func (m *Monitor) CollectMetrics() []Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Metric, 0, len(m.metrics))
	for _, metric := range m.metrics {
		out = append(out, *metric)
	}
	sortMetricsByName(out)
	return out
}

// DetectAnomalies returns one Observation per anomalous metric in metrics.
func (m *Monitor) DetectAnomalies(metrics []Metric) []Observation {
	out := make([]Observation, 0)
	for _, metric := range metrics {
		if !metric.IsAnomalous {
			continue
		}
		out = append(out, Observation{
			ID:              uuid.New(),
			Timestamp:       metric.Timestamp,
			MetricName:      metric.Name,
			ObservedElement: metric.Name,
			Severity:        calculateSeverity(metric.CurrentValue, metric.AnomalyThreshold),
			Value:           metric.CurrentValue,
			Threshold:       metric.AnomalyThreshold,
		})
	}
	return out
}

func sortMetricsByName(metrics []Metric) {
	for i := 1; i < len(metrics); i++ {
		for j := i; j > 0 && metrics[j].Name < metrics[j-1].Name; j-- {
			metrics[j], metrics[j-1] = metrics[j-1], metrics[j]
		}
	}
}
