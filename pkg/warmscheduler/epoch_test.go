package warmscheduler

import (
	"testing"

	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// registerHook registers a hook with a fixed ask-SP opcode/window/operand
// set; these tests exercise epoch packing and Λ handling, not the opcode
// payload itself.
func registerHook(s *Scheduler, id uint64, estimatedTicks uint32, dependencies []uint64) error {
	return s.RegisterHook(id, sigma.OpAskSP, RunWindowTarget{Predicate: 0xF, Length: 2}, Operands{S: id}, estimatedTicks, dependencies)
}

func TestScheduleEpochGreedyPacksWithinBudget(t *testing.T) {
	s := New()
	registerHook(s, 1, 3, nil)
	registerHook(s, 2, 4, nil)
	registerHook(s, 3, 2, nil)

	// In Λ-order 1,2,3: 3 fits (total 3), 4 fits (total 7), 2 would push
	// the total to 9 > 8 and is truncated — the plan stops at hook 2.
	plan, err := s.ScheduleEpoch(1, []uint64{1, 2, 3}, 8, []uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("ScheduleEpoch() error = %v", err)
	}
	if plan.TotalEstimate > 8 {
		t.Errorf("TotalEstimate = %d, exceeds budget 8", plan.TotalEstimate)
	}
	if len(plan.Ordered) != 2 {
		t.Fatalf("len(Ordered) = %d, want 2 (third hook truncated)", len(plan.Ordered))
	}
	if plan.TotalEstimate != 7 {
		t.Errorf("TotalEstimate = %d, want 7", plan.TotalEstimate)
	}
}

// Scenario from spec §8: epoch budget exactly 8 admits a plan summing to
// 8; a hook that would push the sum to 9 is truncated, not admitted.
func TestScheduleEpochTruncatesAtOverBudgetHook(t *testing.T) {
	s := New()
	registerHook(s, 1, 8, nil)
	registerHook(s, 2, 1, nil)

	plan, err := s.ScheduleEpoch(1, []uint64{1, 2}, 8, []uint64{1, 2})
	if err != nil {
		t.Fatalf("ScheduleEpoch() error = %v", err)
	}
	if plan.TotalEstimate != 8 {
		t.Errorf("TotalEstimate = %d, want 8", plan.TotalEstimate)
	}
	if len(plan.Ordered) != 1 || plan.Ordered[0] != 1 {
		t.Errorf("Ordered = %v, want [1]", plan.Ordered)
	}
}

// Scenario 3 from spec §8: Λ = [h1, h1] is rejected with a
// KindValidationFailed error (kerrors has no separate invalid-order kind)
// and no plan is produced.
func TestScheduleEpochRejectsDuplicateInLambda(t *testing.T) {
	s := New()
	registerHook(s, 1, 1, nil)

	_, err := s.ScheduleEpoch(1, []uint64{1}, 8, []uint64{1, 1})
	if err == nil {
		t.Fatal("expected error for duplicate hook in Λ")
	}
}

func TestScheduleEpochRejectsCycle(t *testing.T) {
	s := New()
	registerHook(s, 1, 1, []uint64{2})
	registerHook(s, 2, 1, []uint64{1})

	_, err := s.ScheduleEpoch(1, []uint64{1, 2}, 8, []uint64{1, 2})
	if err == nil {
		t.Fatal("expected error for cycle in Λ-restricted dependency graph")
	}
}

func TestScheduleEpochIgnoresDependencyOutsideLambda(t *testing.T) {
	s := New()
	registerHook(s, 1, 1, []uint64{99}) // 99 never appears in Λ
	registerHook(s, 2, 1, nil)

	plan, err := s.ScheduleEpoch(1, []uint64{1, 2}, 8, []uint64{1, 2})
	if err != nil {
		t.Fatalf("ScheduleEpoch() error = %v", err)
	}
	if len(plan.Ordered) != 2 {
		t.Errorf("len(Ordered) = %d, want 2", len(plan.Ordered))
	}
}

func TestScheduleEpochIntersectsHookSetWithLambda(t *testing.T) {
	s := New()
	registerHook(s, 1, 1, nil)
	registerHook(s, 2, 1, nil)
	registerHook(s, 3, 1, nil)

	// hookSet excludes hook 2; Λ still lists it — it must be skipped.
	plan, err := s.ScheduleEpoch(1, []uint64{1, 3}, 8, []uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("ScheduleEpoch() error = %v", err)
	}
	for _, id := range plan.Ordered {
		if id == 2 {
			t.Error("expected hook 2 (outside hook_set) to be excluded from the plan")
		}
	}
}

func TestRegisterHookRejectsOversizedEstimate(t *testing.T) {
	s := New()
	if err := registerHook(s, 1, 9, nil); err == nil {
		t.Fatal("expected error for estimated_ticks > 8")
	}
}
