// Package runwindow implements the only shape the hot kernel consumes: a
// pinned, column-oriented 8-lane slice of a snapshot's triple store
// (spec §3 "Run window / SoA lane").
package runwindow

import (
	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// MaxLanes is the hot kernel's fixed lane width (the Chatman Constant's
// companion bound on run length).
const MaxLanes = 8

// Window is the pinned predicate plus the two parallel, fixed 8-entry SoA
// buffers (Subject, Object) the hot kernel evaluates. The buffers are
// declared as [MaxLanes]uint64 arrays (not slices) so a Window
// value is stack-allocatable and reusable without heap allocation.
type Window struct {
	Predicate uint64
	Offset    uint32
	Length    uint8

	Subject [MaxLanes]uint64
	Object  [MaxLanes]uint64
}

// Pin fixes (predicate, offset, length) from snap into a Window. Fails
// with a GuardViolation if length exceeds MaxLanes — this is the only
// validity check the hot path performs on its input shape, and it must
// happen before any evaluation begins (spec §4.3).
func Pin(snap *sigma.Snapshot, predicate uint64, offset uint32, length uint8) (Window, error) {
	if length > MaxLanes {
		return Window{}, &kerrors.KernelError{
			Kind:            kerrors.KindGuardViolation,
			Message:         "run length exceeds max lanes",
			AffectedElement: "run_window",
		}
	}
	triples := snap.TriplesForPredicate(predicate)
	if uint32(len(triples)) < offset {
		offset = uint32(len(triples))
	}
	end := offset + uint32(length)
	if end > uint32(len(triples)) {
		end = uint32(len(triples))
	}

	var w Window
	w.Predicate = predicate
	w.Offset = offset
	slice := triples[offset:end]
	w.Length = uint8(len(slice))
	for i, t := range slice {
		w.Subject[i] = t.Subject
		w.Object[i] = t.Object
	}
	return w, nil
}
