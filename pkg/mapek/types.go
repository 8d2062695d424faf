// Package mapek implements the Monitor-Analyze-Plan-Execute-Knowledge
// autonomic control loop (spec §4.8): it consumes receipts and derived
// metrics, detects symptoms, synthesizes adaptation plans, executes their
// actions, and records what worked so future cycles converge faster.
//
// Grounded on original_source/rust/knhk-autonomic/src/{monitor,analyze,
// planner,execute}/mod.rs, translated from its Arc<RwLock<...>> + tokio
// async style into sync.RWMutex-guarded state with synchronous methods;
// the only genuinely blocking operation (snapshot promotion) takes a
// context.Context.
package mapek

import (
	"time"

	"github.com/google/uuid"
)

// MetricType classifies a registered metric for rule matching and impact
// analysis (performance metrics improve when their value decreases).
type MetricType string

const (
	MetricPerformance  MetricType = "performance"
	MetricReliability  MetricType = "reliability"
	MetricResource     MetricType = "resource"
	MetricAvailability MetricType = "availability"
)

// TrendDirection is the classification of a metric's least-squares slope.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDegrading TrendDirection = "degrading"
)

// Severity grades how far a metric has drifted past its anomaly threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// weight returns the severity's contribution to analysis confidence
// (spec §4.8 "severity-weighted observations").
func (s Severity) weight() float64 {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// Metric is a named observed value with expected/anomaly thresholds and a
// bounded-history-derived trend.
type Metric struct {
	ID               uuid.UUID
	Name             string
	Type             MetricType
	CurrentValue     float64
	ExpectedValue    float64
	AnomalyThreshold float64
	Unit             string
	IsAnomalous      bool
	Trend            TrendDirection
	TrendSlope       float64
	Timestamp        time.Time
}

// Observation is a projection of one receipt plus its surrounding metrics
// (spec §3 "MAPE-K entities"); the monitor emits one per anomalous metric.
type Observation struct {
	ID              uuid.UUID
	Timestamp       time.Time
	MetricName      string
	ObservedElement string
	Severity        Severity
	Value           float64
	Threshold       float64
}

// RuleType is the closed set of symptom kinds the analyzer matches rules
// against.
type RuleType string

const (
	RuleHighErrorRate      RuleType = "HighErrorRate"
	RulePerformanceDegrade RuleType = "PerformanceDegradation"
	RuleResourceStarvation RuleType = "ResourceStarvation"
	RuleUnexpected         RuleType = "Unexpected"
	RuleResourceExhaustion RuleType = "ResourceExhaustion"
)

// AnalysisRule is a registered, priority-ordered matcher that turns
// observations/metrics into a symptom.
type AnalysisRule struct {
	ID        uuid.UUID
	Name      string
	RuleType  RuleType
	Condition string
	Priority  int
}

// Analysis is the symptom an analysis rule produced.
type Analysis struct {
	ID                 uuid.UUID
	Timestamp          time.Time
	Problem            string
	RootCause          string
	AffectedElements   []string
	RecommendedActions []uuid.UUID
	Confidence         float64
	RuleType           RuleType
}

// RiskLevel gates whether an action may be admitted automatically or must
// wait on human approval.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// requiresApproval reports whether r is at or above the configured
// approval gate (spec §4.8 "actions whose risk class is high or critical
// must be deferred for human approval").
func (r RiskLevel) requiresApproval(gate RiskLevel) bool {
	order := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}
	return order[r] >= order[gate]
}

// ActionType is the kind of remediation an Action performs.
type ActionType string

const (
	ActionHeal        ActionType = "heal"
	ActionOptimize    ActionType = "optimize"
	ActionConfigure   ActionType = "configure"
	ActionRestructure ActionType = "restructure"
)

// Action is a registered, invokable remediation.
type Action struct {
	ID              uuid.UUID
	Type            ActionType
	Description     string
	Target          string
	Implementation  string
	EstimatedImpact string
	RiskLevel       RiskLevel
}

// Policy maps a trigger (matched case-insensitively against a RuleType) to
// an ordered list of candidate actions.
type Policy struct {
	ID       uuid.UUID
	Name     string
	Trigger  string
	Actions  []uuid.UUID
	Priority int
}

// Plan is the ordered set of admitted actions produced for one symptom.
type Plan struct {
	ID             uuid.UUID
	Actions        []uuid.UUID
	Rationale      string
	ExpectedOutcome string
	CreatedAt      time.Time
}

// PendingApproval records an action a policy selected but which could not
// be admitted automatically because its risk level requires a human to
// sign off (spec.md §4.8 supplemented feature; see SPEC_FULL.md §3).
type PendingApproval struct {
	Analysis Analysis
	Action   Action
	Policy   Policy
}

// ExecutionStatus is the terminal state of one action execution.
type ExecutionStatus string

const (
	StatusSuccessful ExecutionStatus = "successful"
	StatusFailed     ExecutionStatus = "failed"
	StatusSkipped    ExecutionStatus = "skipped"
)

// ActionExecution records everything observed about running one action.
type ActionExecution struct {
	ID             uuid.UUID
	ActionID       uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Status         ExecutionStatus
	Output         string
	Error          string
	MetricsBefore  []Metric
	MetricsAfter   []Metric
	ImpactAnalysis string
	Promoted       bool
}

// LearnedPattern maps a symptom description to the actions that resolved
// it successfully (SPEC_FULL.md §3 "Learned patterns table").
type LearnedPattern struct {
	Description string
	ActionIDs   []uuid.UUID
}

// SuccessMemory is the per-action exponential moving count of attempts and
// successes (spec §3 "Success memory"). Attempts/Successes are
// exponentially-smoothed (see pkg/mapek.SuccessMemoryAlpha), not raw
// counts. The stored values do not change with age; Knowledge.SuccessRate
// applies the time decay toward the neutral prior when it reads them.
type SuccessMemory struct {
	ActionID    uuid.UUID
	Attempts    float64
	Successes   float64
	LastUpdated time.Time
}

// CycleRecord is the append-only record of one full MAPE-K pass.
type CycleRecord struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Observations  []Observation
	Analyses      []Analysis
	Plans         []Plan
	Executions    []ActionExecution
	Effectiveness float64
	Outcome       string
}
