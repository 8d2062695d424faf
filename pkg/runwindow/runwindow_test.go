package runwindow

import (
	"testing"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

func buildTestSnapshot(t *testing.T) *sigma.Snapshot {
	t.Helper()
	triples := []sigma.Triple{
		{Subject: 0xA, Predicate: 0xF, Object: 0xB1},
		{Subject: 0xA, Predicate: 0xF, Object: 0xB2},
		{Subject: 0xC, Predicate: 0xF, Object: 0xB3},
	}
	snap, err := sigma.Build(nil, nil, nil, triples, nil)
	if err != nil {
		t.Fatalf("sigma.Build() error = %v", err)
	}
	return snap
}

func TestPinFillsLanesFromTheMatchingPredicate(t *testing.T) {
	snap := buildTestSnapshot(t)
	w, err := Pin(snap, 0xF, 0, 3)
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if w.Length != 3 {
		t.Fatalf("Length = %d, want 3", w.Length)
	}
	if w.Subject[0] != 0xA || w.Object[0] != 0xB1 {
		t.Errorf("lane 0 = (%x, %x), want (0xA, 0xB1)", w.Subject[0], w.Object[0])
	}
	if w.Subject[2] != 0xC || w.Object[2] != 0xB3 {
		t.Errorf("lane 2 = (%x, %x), want (0xC, 0xB3)", w.Subject[2], w.Object[2])
	}
}

func TestPinRejectsLengthAboveMaxLanes(t *testing.T) {
	snap := buildTestSnapshot(t)
	_, err := Pin(snap, 0xF, 0, MaxLanes+1)
	if err == nil {
		t.Fatal("expected error for length exceeding MaxLanes")
	}
	if kind, ok := kerrors.KindOf(err); !ok || kind != kerrors.KindGuardViolation {
		t.Errorf("Kind = %v, want KindGuardViolation", kind)
	}
}

func TestPinClampsLengthToAvailableTriples(t *testing.T) {
	snap := buildTestSnapshot(t)
	w, err := Pin(snap, 0xF, 0, MaxLanes)
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if w.Length != 3 {
		t.Errorf("Length = %d, want 3 (clamped to the 3 matching triples)", w.Length)
	}
}

func TestPinWithOffsetPastEndReturnsAnEmptyWindow(t *testing.T) {
	snap := buildTestSnapshot(t)
	w, err := Pin(snap, 0xF, 10, 4)
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if w.Length != 0 {
		t.Errorf("Length = %d, want 0", w.Length)
	}
}

func TestPinOnUnknownPredicateReturnsAnEmptyWindow(t *testing.T) {
	snap := buildTestSnapshot(t)
	w, err := Pin(snap, 0xDEAD, 0, 4)
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if w.Length != 0 {
		t.Errorf("Length = %d, want 0", w.Length)
	}
}
