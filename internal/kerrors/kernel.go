package kerrors

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of kernel-level failure modes from spec §7.
type Kind string

const (
	KindGuardViolation          Kind = "guard_violation"
	KindBudgetExceeded          Kind = "budget_exceeded"
	KindHashMismatch            Kind = "hash_mismatch"
	KindChainBroken             Kind = "chain_broken"
	KindValidationFailed        Kind = "validation_failed"
	KindResourceExhausted       Kind = "resource_exhausted"
	KindDownstreamExecuteFailed Kind = "downstream_execute_failed"
)

// KernelError carries every correlation field spec §7 requires: enough
// context to tie the failure back to a receipt or cycle record.
type KernelError struct {
	Kind            Kind
	Message         string
	CycleID         uint64
	ShardID         uint32
	HookID          uint64
	SnapshotHash    [32]byte
	BudgetTicks     uint32
	UsedTicks       uint32
	AffectedElement string
	Cause           error
}

func (e *KernelError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.HookID != 0 {
		s += fmt.Sprintf(" (hook=%d cycle=%d shard=%d)", e.HookID, e.CycleID, e.ShardID)
	}
	if e.BudgetTicks != 0 || e.UsedTicks != 0 {
		s += fmt.Sprintf(" budget=%d used=%d", e.BudgetTicks, e.UsedTicks)
	}
	if e.AffectedElement != "" {
		s += fmt.Sprintf(" element=%s", e.AffectedElement)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %s", e.Cause.Error())
	}
	return s
}

func (e *KernelError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, target) match any *KernelError target of the
// same Kind (e.g. kerrors.New(kerrors.KindGuardViolation, "")); callers
// should prefer kerrors.KindOf(err) == kerrors.KindGuardViolation for
// directness.
func (e *KernelError) Is(target error) bool {
	other, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *KernelError.
func KindOf(err error) (Kind, bool) {
	var ke *KernelError
	if !errors.As(err, &ke) {
		return "", false
	}
	return ke.Kind, true
}

// New constructs a KernelError of the given kind with a message.
func New(kind Kind, message string) *KernelError {
	return &KernelError{Kind: kind, Message: message}
}
