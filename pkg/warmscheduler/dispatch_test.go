package warmscheduler

import (
	"context"
	"errors"
	"testing"
)

func TestDispatchRunsAllWithinBudget(t *testing.T) {
	plan := EpochPlan{EpochID: 1, Ordered: []uint64{1, 2, 3}, TauEpoch: 8}
	eval := func(ctx context.Context, hookID uint64) (uint32, error) {
		return 2, nil
	}
	result, err := Dispatch(context.Background(), plan, 2, eval)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(result.Dispatched) != 3 {
		t.Errorf("len(Dispatched) = %d, want 3", len(result.Dispatched))
	}
	if result.Overran {
		t.Error("did not expect an overrun")
	}
}

func TestDispatchRollsOverAtOverrun(t *testing.T) {
	plan := EpochPlan{EpochID: 1, Ordered: []uint64{1, 2, 3, 4, 5}, TauEpoch: 8}
	eval := func(ctx context.Context, hookID uint64) (uint32, error) {
		return 3, nil // 3*5=15 > 8: only the first two fit (3+3=6; a third makes 9)
	}
	result, err := Dispatch(context.Background(), plan, 1, eval)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(result.Dispatched)+len(result.Rolled) != 5 {
		t.Fatalf("expected every hook accounted for, got dispatched=%d rolled=%d", len(result.Dispatched), len(result.Rolled))
	}
	if !result.Overran {
		t.Error("expected Overran to be true")
	}
	if len(result.Rolled) == 0 {
		t.Error("expected at least one hook rolled to the next epoch")
	}
}

func TestDispatchPropagatesEvalError(t *testing.T) {
	plan := EpochPlan{EpochID: 1, Ordered: []uint64{1}, TauEpoch: 8}
	eval := func(ctx context.Context, hookID uint64) (uint32, error) {
		return 0, errors.New("hot kernel failure")
	}
	if _, err := Dispatch(context.Background(), plan, 1, eval); err == nil {
		t.Fatal("expected Dispatch() to propagate eval error")
	}
}
