package warmscheduler

import (
	"github.com/knhk/workflow-kernel/internal/kerrors"
)

// EpochPlan is the ordered, budget-bounded result of ScheduleEpoch.
type EpochPlan struct {
	EpochID       uint64
	Ordered       []uint64
	TotalEstimate uint32
	TauEpoch      uint32
}

// ScheduleEpoch rejects an infeasible Λ (duplicates, or a cycle in the
// dependency graph restricted to Λ's hooks), intersects hookSet with Λ
// preserving Λ's order, and greedy-packs an ordered plan whose summed
// estimate never exceeds tauEpoch (spec §4.4).
func (s *Scheduler) ScheduleEpoch(epochID uint64, hookSet []uint64, tauEpoch uint32, lambda []uint64) (EpochPlan, error) {
	if tauEpoch > 8 {
		return EpochPlan{}, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "epoch_tick_budget exceeds the ceiling of 8",
		}
	}
	if err := rejectDuplicates(lambda); err != nil {
		return EpochPlan{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rejectCycle(lambda, s.hooks); err != nil {
		return EpochPlan{}, err
	}

	inSet := make(map[uint64]struct{}, len(hookSet))
	for _, id := range hookSet {
		inSet[id] = struct{}{}
	}

	plan := EpochPlan{EpochID: epochID, TauEpoch: tauEpoch}
	var remaining uint32 = tauEpoch
	for _, id := range lambda {
		if _, ok := inSet[id]; !ok {
			continue
		}
		h, ok := s.hooks[id]
		if !ok {
			continue
		}
		if h.EstimatedTicks > remaining {
			break
		}
		plan.Ordered = append(plan.Ordered, id)
		plan.TotalEstimate += h.EstimatedTicks
		remaining -= h.EstimatedTicks
	}
	return plan, nil
}

func rejectDuplicates(lambda []uint64) error {
	seen := make(map[uint64]struct{}, len(lambda))
	for _, id := range lambda {
		if _, ok := seen[id]; ok {
			return &kerrors.KernelError{
				Kind:    kerrors.KindValidationFailed,
				Message: "duplicate hook in Λ",
				HookID:  id,
			}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// rejectCycle runs a DFS over the dependency graph restricted to hooks
// appearing in lambda, returning a KindValidationFailed error on a cycle
// (kerrors has no separate invalid-order kind).
func rejectCycle(lambda []uint64, hooks map[uint64]HookMeta) error {
	inLambda := make(map[uint64]struct{}, len(lambda))
	for _, id := range lambda {
		inLambda[id] = struct{}{}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint64]int, len(lambda))

	var visit func(id uint64) error
	visit = func(id uint64) error {
		color[id] = gray
		for _, dep := range hooks[id].Dependencies {
			if _, ok := inLambda[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return &kerrors.KernelError{
					Kind:    kerrors.KindValidationFailed,
					Message: "cycle in Λ-restricted dependency graph",
					HookID:  dep,
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range lambda {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
