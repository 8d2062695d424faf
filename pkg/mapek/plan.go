package mapek

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/kerrors"
)

// Planner turns a symptom into an ordered, admitted action plan by
// matching registered policies (spec §4.8 "Plan").
//
// Grounded on original_source/rust/knhk-autonomic/src/planner/mod.rs's
// PlanningComponent, including its "only one policy contributes actions"
// behavior: the highest-priority matching policy that admits any action.
type Planner struct {
	mu                 sync.RWMutex
	policies           []Policy
	actions            map[uuid.UUID]Action
	successAdmitThresh float64
	approvalGate       RiskLevel
}

// NewPlanner constructs a Planner using the configured admission
// threshold and approval gate (spec §6 planner.success_rate_admit_threshold,
// planner.risk_requires_approval).
func NewPlanner(successAdmitThreshold float64, approvalGate RiskLevel) *Planner {
	return &Planner{
		actions:            make(map[uuid.UUID]Action),
		successAdmitThresh: successAdmitThreshold,
		approvalGate:       approvalGate,
	}
}

// RegisterAction adds an invokable action, returning its id if unset.
func (p *Planner) RegisterAction(action Action) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	p.actions[action.ID] = action
	return action.ID
}

// RegisterPolicy adds a policy mapping a trigger string to candidate
// action ids.
func (p *Planner) RegisterPolicy(name, trigger string, actionIDs []uuid.UUID, priority int) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.New()
	p.policies = append(p.policies, Policy{
		ID:       id,
		Name:     name,
		Trigger:  trigger,
		Actions:  actionIDs,
		Priority: priority,
	})
	return id
}

// CreatePlan matches analysis's rule type against registered policies and
// selects actions from the highest-priority policy whose selection is
// non-empty (spec §4.8: "Selects actions from the highest-priority
// matching policy only"). Returns the plan and any actions that were
// selected but require human approval; the plan is nil if nothing was
// admitted, and both are nil if no policy matched.
func (p *Planner) CreatePlan(analysis Analysis, successRates map[uuid.UUID]float64) (*Plan, []PendingApproval, error) {
	p.mu.RLock()
	policies := append([]Policy(nil), p.policies...)
	actions := make(map[uuid.UUID]Action, len(p.actions))
	for k, v := range p.actions {
		actions[k] = v
	}
	p.mu.RUnlock()

	matching := findMatchingPolicies(policies, analysis.RuleType)
	if len(matching) == 0 {
		return nil, nil, nil
	}

	selected, pending, err := p.selectActions(matching, actions, successRates)
	if err != nil {
		return nil, nil, err
	}
	for i := range pending {
		pending[i].Analysis = analysis
	}
	if len(selected) == 0 {
		return nil, pending, nil
	}

	plan := &Plan{
		ID:              uuid.New(),
		Actions:         selected,
		Rationale:       "Responding to " + analysis.Problem + " with " + matching[0].Name + " policy",
		ExpectedOutcome: "Problem resolution and metric normalization",
		CreatedAt:       time.Now(),
	}
	return plan, pending, nil
}

// findMatchingPolicies returns policies whose trigger (lowercased)
// contains the rule type string, highest priority first.
func findMatchingPolicies(policies []Policy, ruleType RuleType) []Policy {
	ruleTypeStr := strings.ToLower(string(ruleType))
	var out []Policy
	for _, pol := range policies {
		if strings.Contains(strings.ToLower(pol.Trigger), ruleTypeStr) {
			out = append(out, pol)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// selectActions walks matching policies in priority order; the first
// policy that yields any admitted action stops the search (the Rust
// original's "limit to top policy's actions for now"). Actions whose risk
// level requires approval are collected as PendingApproval rather than
// admitted directly.
func (p *Planner) selectActions(matching []Policy, actions map[uuid.UUID]Action, successRates map[uuid.UUID]float64) ([]uuid.UUID, []PendingApproval, error) {
	var pending []PendingApproval

	for _, pol := range matching {
		var selected []uuid.UUID
		for _, actionID := range pol.Actions {
			action, ok := actions[actionID]
			if !ok {
				return nil, nil, &kerrors.KernelError{Kind: kerrors.KindValidationFailed, Message: "policy references unknown action"}
			}

			if action.RiskLevel.requiresApproval(p.approvalGate) {
				pending = append(pending, PendingApproval{Action: action, Policy: pol})
				continue
			}

			successRate, ok := successRates[actionID]
			if !ok {
				successRate = 0.5
			}
			if successRate <= p.successAdmitThresh && action.RiskLevel != RiskLow {
				continue
			}
			selected = append(selected, actionID)
		}
		if len(selected) > 0 {
			return selected, pending, nil
		}
	}
	return nil, pending, nil
}
