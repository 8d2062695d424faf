package kerrors

import (
	"fmt"
	"testing"
)

func TestOperationErrorFull(t *testing.T) {
	err := &OperationError{
		Operation: "connect to database",
		Component: "postgres",
		Resource:  "user_table",
		Cause:     fmt.Errorf("connection timeout"),
	}
	want := "failed to connect to database, component: postgres, resource: user_table, cause: connection timeout"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOperationErrorMinimal(t *testing.T) {
	err := &OperationError{Operation: "parse config", Cause: fmt.Errorf("invalid yaml")}
	want := "failed to parse config, cause: invalid yaml"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOperationErrorNoCause(t *testing.T) {
	err := &OperationError{Operation: "validate input", Component: "validator"}
	want := "failed to validate input, component: validator"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &OperationError{Operation: "test", Cause: cause}
	if err.Unwrap() != cause {
		t.Error("Unwrap() did not return cause")
	}
	noCause := &OperationError{Operation: "test"}
	if noCause.Unwrap() != nil {
		t.Error("Unwrap() with no cause should be nil")
	}
}

func TestFailedTo(t *testing.T) {
	err := FailedTo("connect to database", fmt.Errorf("connection refused"))
	want := "failed to connect to database: connection refused"
	if err.Error() != want {
		t.Errorf("FailedTo() = %q, want %q", err.Error(), want)
	}
	if err2 := FailedTo("start server", nil); err2.Error() != "failed to start server" {
		t.Errorf("FailedTo() no cause = %q", err2.Error())
	}
}

func TestWrapfNil(t *testing.T) {
	if got := Wrapf(nil, "should not wrap"); got != nil {
		t.Errorf("Wrapf(nil, ...) = %v, want nil", got)
	}
}

func TestWrapf(t *testing.T) {
	got := Wrapf(fmt.Errorf("original error"), "additional context: %s", "test")
	want := "additional context: test: original error"
	if got.Error() != want {
		t.Errorf("Wrapf() = %q, want %q", got.Error(), want)
	}
}

func TestKernelErrorKindOf(t *testing.T) {
	err := New(KindGuardViolation, "run length exceeds 8")
	kind, ok := KindOf(err)
	if !ok || kind != KindGuardViolation {
		t.Fatalf("KindOf() = %v, %v, want KindGuardViolation, true", kind, ok)
	}
}

func TestKernelErrorIs(t *testing.T) {
	a := New(KindBudgetExceeded, "exceeded")
	b := New(KindBudgetExceeded, "also exceeded")
	if !a.Is(b) {
		t.Error("expected same-kind KernelErrors to match Is()")
	}
	c := New(KindChainBroken, "broken")
	if a.Is(c) {
		t.Error("expected different-kind KernelErrors to not match Is()")
	}
}

func TestKernelErrorMessage(t *testing.T) {
	err := &KernelError{
		Kind:        KindBudgetExceeded,
		Message:     "tick budget exceeded",
		HookID:      42,
		CycleID:     7,
		ShardID:     1,
		BudgetTicks: 8,
		UsedTicks:   9,
	}
	got := err.Error()
	if got == "" {
		t.Fatal("expected non-empty error string")
	}
}
