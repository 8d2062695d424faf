package mapek

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Analyzer turns observations and metrics into symptoms by matching
// priority-ordered rules (spec §4.8 "Analyze").
//
// Grounded on original_source/rust/knhk-autonomic/src/analyze/mod.rs's
// AnalysisComponent.
type Analyzer struct {
	mu    sync.RWMutex
	rules []AnalysisRule
}

// NewAnalyzer constructs an empty Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// RegisterRule adds a rule at the default priority (100), matching the
// teacher's convention of accreting rules rather than requiring priority
// up front.
func (a *Analyzer) RegisterRule(name string, ruleType RuleType, condition string) uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.New()
	a.rules = append(a.rules, AnalysisRule{
		ID:        id,
		Name:      name,
		RuleType:  ruleType,
		Condition: condition,
		Priority:  100,
	})
	return id
}

// Analyze evaluates every registered rule, highest priority first, and
// returns at most one symptom per matching rule. Returns immediately with
// no analyses if observations is empty — a quiet cycle produces nothing
// to plan against.
func (a *Analyzer) Analyze(observations []Observation, metrics []Metric) []Analysis {
	if len(observations) == 0 {
		return nil
	}

	a.mu.RLock()
	rules := append([]AnalysisRule(nil), a.rules...)
	a.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	var out []Analysis
	for _, rule := range rules {
		if !matchRule(rule.RuleType, metrics) {
			continue
		}
		out = append(out, Analysis{
			ID:                 uuid.New(),
			Timestamp:          time.Now(),
			Problem:            rule.Name,
			RootCause:          identifyRootCause(rule.RuleType, metrics),
			AffectedElements:   affectedElements(observations),
			RecommendedActions: nil, // filled in by the planner
			Confidence:         calculateConfidence(observations, metrics),
			RuleType:           rule.RuleType,
		})
	}
	return out
}

// matchRule is the heuristic per-RuleType matcher: it has no general
// rule engine, only a fixed lookup over the closed RuleType set, mirroring
// the Rust component's match_rule.
func matchRule(ruleType RuleType, metrics []Metric) bool {
	switch ruleType {
	case RuleHighErrorRate:
		for _, m := range metrics {
			if strings.Contains(strings.ToLower(m.Name), "error") && m.IsAnomalous {
				return true
			}
		}
	case RulePerformanceDegrade:
		for _, m := range metrics {
			if m.Type == MetricPerformance && m.IsAnomalous {
				return true
			}
		}
	case RuleResourceStarvation:
		for _, m := range metrics {
			if m.Type == MetricResource && m.IsAnomalous {
				return true
			}
		}
	case RuleResourceExhaustion:
		for _, m := range metrics {
			if m.Type == MetricResource && m.IsAnomalous && m.CurrentValue >= m.AnomalyThreshold {
				return true
			}
		}
	case RuleUnexpected:
		for _, m := range metrics {
			if !m.IsAnomalous {
				continue
			}
			if m.Type == MetricPerformance || m.Type == MetricResource {
				continue
			}
			if strings.Contains(strings.ToLower(m.Name), "error") {
				continue
			}
			return true
		}
	}
	return false
}

func identifyRootCause(ruleType RuleType, metrics []Metric) string {
	switch ruleType {
	case RuleHighErrorRate:
		return "Error rate exceeds acceptable threshold"
	case RulePerformanceDegrade:
		for _, m := range metrics {
			if !m.IsAnomalous {
				continue
			}
			lower := strings.ToLower(m.Name)
			if strings.Contains(lower, "cpu") {
				return "CPU-bound performance degradation"
			}
			if strings.Contains(lower, "memory") {
				return "Memory-bound performance degradation"
			}
		}
		return "Performance degradation detected"
	case RuleResourceStarvation:
		return "Resource utilization exceeds capacity"
	case RuleResourceExhaustion:
		return "Resource fully exhausted, immediate scaling or shedding required"
	case RuleUnexpected:
		return "Anomaly does not match a known symptom pattern"
	default:
		return "Unclassified anomaly"
	}
}

func affectedElements(observations []Observation) []string {
	out := make([]string, 0, len(observations))
	for _, o := range observations {
		out = append(out, o.ObservedElement)
	}
	return out
}

// calculateConfidence combines a baseline with anomaly-count and
// severity-weighted boosts, capped at 1.0 (spec §4.8).
func calculateConfidence(observations []Observation, metrics []Metric) float64 {
	anomalyCount := 0
	for _, m := range metrics {
		if m.IsAnomalous {
			anomalyCount++
		}
	}

	var severitySum float64
	for _, o := range observations {
		severitySum += o.Severity.weight()
	}

	confidence := 0.5 + minF(float64(anomalyCount)*0.1, 0.3) + minF(severitySum*0.05, 0.2)
	return minF(confidence, 1.0)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
