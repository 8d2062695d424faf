package mapek

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/kerrors"
)

// Promoter compiles and atomically publishes a snapshot overlay. Execute
// calls it when an action requests a promotion (spec §4.8 "Promotion
// path"); coldplanner.Planner implements it on top of pkg/overlay and
// pkg/snapshotstore, so this package stays independent of Σ*.
type Promoter interface {
	Promote(ctx context.Context, actionID uuid.UUID) error
}

// Invoker runs one action's implementation and reports its outcome. The
// invoker cmd/knhkd wires dispatches on Action.Type; tests supply a stub.
type Invoker func(ctx context.Context, action Action) (status ExecutionStatus, output string, err error)

// Executor runs a plan's actions in order, capturing before/after metric
// snapshots and impact analysis (spec §4.8 "Execute").
//
// Grounded on original_source/rust/knhk-autonomic/src/execute/mod.rs's
// ExecutionComponent.
type Executor struct {
	mu      sync.RWMutex
	history []ActionExecution
	monitor *Monitor
	invoke  Invoker
	promote Promoter
}

// NewExecutor constructs an Executor. invoke may be nil, in which case
// every action is treated as successful with a generic output message
// (mirrors the Rust original's placeholder invoke_action).
func NewExecutor(monitor *Monitor, invoke Invoker, promote Promoter) *Executor {
	if invoke == nil {
		invoke = func(ctx context.Context, action Action) (ExecutionStatus, string, error) {
			return StatusSuccessful, fmt.Sprintf("action %s executed successfully", action.Description), nil
		}
	}
	return &Executor{monitor: monitor, invoke: invoke, promote: promote}
}

// ExecutePlan runs every action in plan in order. A failed action is
// recorded but does not abort the plan, matching spec §4.8's "a failed
// action does not abort the plan unless the error is declared fatal" —
// this package has no fatal-error classification yet, so every failure is
// non-fatal.
func (e *Executor) ExecutePlan(ctx context.Context, plan Plan, actions map[uuid.UUID]Action) ([]ActionExecution, error) {
	executions := make([]ActionExecution, 0, len(plan.Actions))

	for _, actionID := range plan.Actions {
		action, ok := actions[actionID]
		if !ok {
			return executions, &kerrors.KernelError{Kind: kerrors.KindValidationFailed, Message: "action not found: " + actionID.String()}
		}

		execution := e.executeAction(ctx, action)
		executions = append(executions, execution)
	}

	e.mu.Lock()
	e.history = append(e.history, executions...)
	e.mu.Unlock()

	return executions, nil
}

func (e *Executor) executeAction(ctx context.Context, action Action) ActionExecution {
	start := time.Now()

	before := e.monitor.CollectMetrics()
	status, output, err := e.invoke(ctx, action)
	after := e.monitor.CollectMetrics()

	execution := ActionExecution{
		ID:             uuid.New(),
		ActionID:       action.ID,
		StartTime:      start,
		EndTime:        time.Now(),
		Status:         status,
		Output:         output,
		MetricsBefore:  before,
		MetricsAfter:   after,
		ImpactAnalysis: analyzeImpact(before, after, action),
	}
	if err != nil {
		execution.Status = StatusFailed
		execution.Error = err.Error()
		execution.ImpactAnalysis = fmt.Sprintf("Action %s failed, no impact", action.Description)
		return execution
	}

	if e.promote != nil {
		if perr := e.promote.Promote(ctx, action.ID); perr == nil {
			execution.Promoted = true
		}
	}

	return execution
}

// analyzeImpact compares before/after metrics by name and reports
// percentage-change improvements/degradations for performance metrics
// (negative change = improvement), matching the Rust original's
// analyze_impact.
func analyzeImpact(before, after []Metric, action Action) string {
	beforeByName := make(map[string]Metric, len(before))
	for _, m := range before {
		beforeByName[m.Name] = m
	}

	var improvements, degradations []string
	for _, m := range after {
		prev, ok := beforeByName[m.Name]
		if !ok || prev.CurrentValue == 0 {
			continue
		}
		change := m.CurrentValue - prev.CurrentValue
		changePct := (change / prev.CurrentValue) * 100.0
		if absF(change) <= 0.1 || m.Type != MetricPerformance {
			continue
		}
		if changePct < 0 {
			improvements = append(improvements, fmt.Sprintf("%s: improved by %.1f%%", m.Name, absF(changePct)))
		} else {
			degradations = append(degradations, fmt.Sprintf("%s: degraded by %.1f%%", m.Name, changePct))
		}
	}

	if len(improvements) == 0 && len(degradations) == 0 {
		return fmt.Sprintf("Action %s had minimal impact on metrics", action.Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Action %s impact:", action.Description)
	if len(improvements) > 0 {
		fmt.Fprintf(&b, " Improvements: %s", strings.Join(improvements, ", "))
	}
	if len(degradations) > 0 {
		fmt.Fprintf(&b, " Degradations: %s", strings.Join(degradations, ", "))
	}
	return b.String()
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// History returns every recorded execution, oldest first.
func (e *Executor) History() []ActionExecution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ActionExecution, len(e.history))
	copy(out, e.history)
	return out
}

// SuccessRate returns the fraction of executions of actionID that
// succeeded, or 0.5 (optimistic prior) if actionID has no history.
func (e *Executor) SuccessRate(actionID uuid.UUID) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var attempts, successes int
	for _, ex := range e.history {
		if ex.ActionID != actionID {
			continue
		}
		attempts++
		if ex.Status == StatusSuccessful {
			successes++
		}
	}
	if attempts == 0 {
		return 0.5
	}
	return float64(successes) / float64(attempts)
}
