package receipt

import (
	"testing"

	"github.com/knhk/workflow-kernel/pkg/runwindow"
)

func testContext() Context {
	var w runwindow.Window
	w.Predicate = 0xF0
	w.Length = 2
	w.Subject[0] = 0xA
	w.Object[0] = 0xB1
	w.Subject[1] = 0xA
	w.Object[1] = 0xB2
	return Context{
		CycleID:      1,
		ShardID:      0,
		HookID:       42,
		Opcode:       0,
		S:            0xA,
		P:            0xF0,
		Window:       w,
		SnapshotHash: [32]byte{0xAB},
		SpanID:       7,
		TimestampMs:  1000,
	}
}

func TestBuildIsValidAndDeterministic(t *testing.T) {
	ctx := testContext()
	r1 := Build(ctx, 1, 8, 3, 2)
	r2 := Build(ctx, 2, 8, 3, 2)

	if !r1.Valid() {
		t.Fatal("expected successful receipt to be valid")
	}
	if r1.AHash != r2.AHash {
		t.Error("expected identical observations to produce identical a_hash")
	}
	if !Verify(r1) {
		t.Error("expected Verify() to succeed on a freshly built receipt")
	}
}

func TestBuildFailedIsInvalid(t *testing.T) {
	ctx := testContext()
	r := BuildFailed(ctx, 1, 8, 9)
	if r.Valid() {
		t.Fatal("expected failed receipt to be invalid")
	}
	if r.AHash != 0 {
		t.Errorf("AHash = %d, want 0 on budget-exceeded failure", r.AHash)
	}
	if r.TicksConsumed != 9 {
		t.Errorf("TicksConsumed = %d, want 9", r.TicksConsumed)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := testContext()
	r := Build(ctx, 1, 8, 3, 2)
	r.MuHash ^= 1
	if Verify(r) {
		t.Fatal("expected Verify() to fail after tampering with MuHash")
	}
}

func TestDifferentObservationsDifferentHash(t *testing.T) {
	ctx1 := testContext()
	ctx2 := testContext()
	ctx2.S = 0xFF

	r1 := Build(ctx1, 1, 8, 3, 2)
	r2 := Build(ctx2, 1, 8, 3, 2)
	if r1.AHash == r2.AHash {
		t.Error("expected different observations to (almost always) produce different a_hash")
	}
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	ctx := testContext()
	r := Build(ctx, 1, 8, 3, 2)
	b1 := CanonicalBytes(r)
	b2 := CanonicalBytes(r)
	if len(b1) != len(b2) {
		t.Fatal("CanonicalBytes should be stable length")
	}
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatal("CanonicalBytes should be byte-identical across calls")
		}
	}
}
