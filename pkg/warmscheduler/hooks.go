// Package warmscheduler implements μ_warm, the epoch planner (spec §4.4):
// it accepts a hook set and a total-order constraint Λ, rejects an
// infeasible Λ, and greedy-packs an ordered, budget-bounded plan.
//
// Grounded on original_source/rust/knhk-warm/src/scheduler.rs's
// register_hook/schedule_epoch contract.
package warmscheduler

import (
	"sync"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// RunWindowTarget names the pinned run window a hook evaluates over (spec
// §4.4/§4.3): the predicate whose triples populate the window plus the
// offset/length slice of them to pin.
type RunWindowTarget struct {
	Predicate uint64
	Offset    uint32
	Length    uint8
}

// Operands is a hook's opcode-specific argument set (spec §245 "hook
// operand format"): subject id, predicate id, object id, threshold k.
type Operands struct {
	S, P, O, K uint64
	Comparator sigma.Comparator
}

// HookMeta is the registered metadata for one hook: the opcode and operands
// it evaluates, the run window it targets, its estimated tick cost, and the
// ids of hooks it depends on.
type HookMeta struct {
	ID             uint64
	Opcode         sigma.Opcode
	Window         RunWindowTarget
	Operands       Operands
	EstimatedTicks uint32
	Dependencies   []uint64
}

// Scheduler holds the registry of known hooks used to plan epochs.
type Scheduler struct {
	mu    sync.Mutex
	hooks map[uint64]HookMeta
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{hooks: make(map[uint64]HookMeta)}
}

// RegisterHook persists a hook's opcode, run-window target, operands,
// estimate, and dependency metadata (spec §4.4 "register_hook(id,
// estimated_ticks ≤ 8, dependencies)" plus spec §65/§245's hook operand
// format).
func (s *Scheduler) RegisterHook(id uint64, opcode sigma.Opcode, window RunWindowTarget, operands Operands, estimatedTicks uint32, dependencies []uint64) error {
	if estimatedTicks > 8 {
		return &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "hook estimated_ticks exceeds the tick budget ceiling of 8",
			HookID:  id,
		}
	}
	if window.Length > 8 {
		return &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "hook run window length exceeds the 8-lane ceiling",
			HookID:  id,
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deps := make([]uint64, len(dependencies))
	copy(deps, dependencies)
	s.hooks[id] = HookMeta{
		ID:             id,
		Opcode:         opcode,
		Window:         window,
		Operands:       operands,
		EstimatedTicks: estimatedTicks,
		Dependencies:   deps,
	}
	return nil
}

// Hook returns a registered hook's metadata.
func (s *Scheduler) Hook(id uint64) (HookMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hooks[id]
	return h, ok
}

// RegisteredIDs returns every registered hook id. The order is
// unspecified; callers that need a total order supply their own Λ to
// ScheduleEpoch.
func (s *Scheduler) RegisteredIDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.hooks))
	for id := range s.hooks {
		ids = append(ids, id)
	}
	return ids
}
