// Package overlay implements the staged, one-shot-commit mutation layer
// over Σ* (spec §4.2): an overlay is built against a base snapshot,
// applies additions and pattern-based removals in isolation, is validated,
// and then committed exactly once into a new immutable snapshot.
//
// Grounded on original_source/rust/knhk-ontology/tests/overlay_tests.rs:
// SigmaOverlay::new/add_triple/remove_pattern/apply/validate/commit, and
// its "commit consumes the overlay" semantics (there enforced by Rust
// ownership, here by a committed flag).
package overlay

import (
	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// Pattern matches triples for removal; a nil field is a wildcard (spec
// §4.2 "remove_pattern(subject?, predicate?, object?)").
type Pattern struct {
	Subject   *uint64
	Predicate *uint64
	Object    *uint64
}

func (p Pattern) matches(t sigma.Triple) bool {
	if p.Subject != nil && *p.Subject != t.Subject {
		return false
	}
	if p.Predicate != nil && *p.Predicate != t.Predicate {
		return false
	}
	if p.Object != nil && *p.Object != t.Object {
		return false
	}
	return true
}

// Overlay stages additions and removals against a base snapshot hash.
// Overlays are not thread-safe; each is owned by a single writer until
// committed.
type Overlay struct {
	ID          uuid.UUID
	BaseHash    [32]byte
	Description string

	additions []sigma.Triple
	removals  []Pattern
	committed bool
}

// New starts a fresh overlay staged against base's current hash.
func New(baseHash [32]byte, description string) *Overlay {
	return &Overlay{
		ID:          uuid.New(),
		BaseHash:    baseHash,
		Description: description,
	}
}

// AddTriple stages a triple for addition.
func (o *Overlay) AddTriple(t sigma.Triple) {
	o.additions = append(o.additions, t)
}

// RemovePattern stages every triple matching p for removal.
func (o *Overlay) RemovePattern(p Pattern) {
	o.removals = append(o.removals, p)
}

// Committed reports whether this overlay has already been committed.
func (o *Overlay) Committed() bool { return o.committed }

// Apply computes the virtual triple set this overlay would produce against
// base, without mutating base or marking the overlay committed (spec §4.2
// "apply is a pure projection; base is never mutated").
func (o *Overlay) Apply(base *sigma.Snapshot) ([]sigma.Triple, error) {
	if base.Hash() != o.BaseHash {
		return nil, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "overlay base hash does not match snapshot",
		}
	}
	baseTriples := base.AllTriples()
	out := make([]sigma.Triple, 0, len(baseTriples)+len(o.additions))
	for _, t := range baseTriples {
		if o.removedBy(t) {
			continue
		}
		out = append(out, t)
	}
	out = append(out, o.additions...)
	return out, nil
}

func (o *Overlay) removedBy(t sigma.Triple) bool {
	for _, p := range o.removals {
		if p.matches(t) {
			return true
		}
	}
	return false
}
