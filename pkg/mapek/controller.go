package mapek

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/telemetry"
)

// Controller wires Monitor, Analyze, Plan, Execute, and Knowledge into one
// MAPE-K pass over the currently collected metrics (spec §4.8).
type Controller struct {
	Monitor   *Monitor
	Analyzer  *Analyzer
	Planner   *Planner
	Executor  *Executor
	Knowledge *Knowledge
}

// NewController wires the five phases together; promote may be nil if the
// caller never executes promotion-requesting actions.
func NewController(maxHistorySize int, successAdmitThreshold float64, approvalGate RiskLevel, invoke Invoker, promote Promoter) *Controller {
	monitor := NewMonitor(maxHistorySize)
	return &Controller{
		Monitor:   monitor,
		Analyzer:  NewAnalyzer(),
		Planner:   NewPlanner(successAdmitThreshold, approvalGate),
		Executor:  NewExecutor(monitor, invoke, promote),
		Knowledge: NewKnowledge(),
	}
}

// snapshotActions returns a copy of the planner's registered actions,
// keyed by id, for Execute's lookup (Controller lives in the same package
// as Planner so this reads its unexported map directly rather than
// duplicating a public accessor that nothing else needs).
func (p *Planner) snapshotActions() map[uuid.UUID]Action {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[uuid.UUID]Action, len(p.actions))
	for id, a := range p.actions {
		out[id] = a
	}
	return out
}

// RunCycle executes one full Monitor->Analyze->Plan->Execute->Knowledge
// pass: collects metrics, detects anomalies, analyzes symptoms, plans and
// executes admitted actions, and records the cycle and its learned
// patterns. Returns the recorded CycleRecord and any actions that are
// pending human approval across all symptoms this cycle.
func (c *Controller) RunCycle(ctx context.Context) (CycleRecord, []PendingApproval, error) {
	metrics := c.Monitor.CollectMetrics()
	observations := c.Monitor.DetectAnomalies(metrics)
	analyses := c.Analyzer.Analyze(observations, metrics)

	record := CycleRecord{Observations: observations, Analyses: analyses}

	var allPending []PendingApproval
	actions := c.Planner.snapshotActions()

	for _, analysis := range analyses {
		successRates := make(map[uuid.UUID]float64, len(actions))
		for id := range actions {
			successRates[id] = c.Knowledge.SuccessRate(id)
		}

		plan, pending, err := c.Planner.CreatePlan(analysis, successRates)
		if err != nil {
			return record, allPending, err
		}
		allPending = append(allPending, pending...)
		if plan == nil {
			continue
		}
		record.Plans = append(record.Plans, *plan)

		executions, err := c.Executor.ExecutePlan(ctx, *plan, actions)
		if err != nil {
			return record, allPending, err
		}
		record.Executions = append(record.Executions, executions...)

		for _, execution := range executions {
			success := execution.Status == StatusSuccessful
			c.Knowledge.RecordSuccess(analysis.Problem, execution.ActionID, success)
		}
	}

	record.Effectiveness = effectiveness(record.Executions)
	record.Outcome = outcome(record)
	c.Knowledge.RecordCycle(record)

	telemetry.MapekCyclesTotal.WithLabelValues(record.Outcome).Inc()

	return record, allPending, nil
}

// effectiveness is the fraction of executed actions that succeeded; an
// empty execution set is fully effective (nothing needed fixing).
func effectiveness(executions []ActionExecution) float64 {
	if len(executions) == 0 {
		return 1.0
	}
	var successes int
	for _, e := range executions {
		if e.Status == StatusSuccessful {
			successes++
		}
	}
	return float64(successes) / float64(len(executions))
}

func outcome(record CycleRecord) string {
	if len(record.Analyses) == 0 {
		return "quiet"
	}
	if record.Effectiveness >= 1.0 {
		return "resolved"
	}
	if record.Effectiveness > 0 {
		return "partial"
	}
	return fmt.Sprintf("failed (%d executions)", len(record.Executions))
}
