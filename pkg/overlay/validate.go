package overlay

import (
	"github.com/go-playground/validator/v10"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

var structValidate = validator.New(validator.WithRequiredStructEnabled())

// Validator holds the declared, deterministic validation configuration
// (spec §4.2 "min-sectors, max-ticks"). Validation must not depend on any
// process-wide mutable state beyond this struct.
type Validator struct {
	MinSectors int    `validate:"min=0"`
	MaxTicks   uint32 `validate:"min=1"`
}

// NewValidator returns a Validator with the spec-documented defaults.
func NewValidator() *Validator {
	return &Validator{MinSectors: 1, MaxTicks: 8}
}

func (v *Validator) WithMinSectors(n int) *Validator {
	v.MinSectors = n
	return v
}

func (v *Validator) WithMaxTicks(n uint32) *Validator {
	v.MaxTicks = n
	return v
}

// ValidationError is one recorded rule failure.
type ValidationError struct {
	Code    string
	Message string
}

// Results records the outcome of each validation category plus any
// errors/warnings accumulated along the way.
type Results struct {
	StaticChecksPassed     bool
	DynamicChecksPassed    bool
	PerformanceChecksPassed bool
	InvariantsPreserved    bool
	Errors                 []ValidationError
	Warnings               []string
}

// Receipt is the outcome of validating one overlay against one base.
type Receipt struct {
	SnapshotHash [32]byte
	ParentHash   *[32]byte
	Description  string
	Results      Results
	Ticks        uint32
}

// ProductionReady reports whether every validation category passed (spec
// §4.2 "records errors and a boolean production-ready").
func (r Receipt) ProductionReady() bool {
	return r.Results.StaticChecksPassed &&
		r.Results.DynamicChecksPassed &&
		r.Results.PerformanceChecksPassed &&
		r.Results.InvariantsPreserved &&
		len(r.Results.Errors) == 0
}

// Validate runs static, dynamic, performance, and invariant-preservation
// checks over the overlay applied to base, and returns a receipt
// recording the outcome. Deterministic: depends only on base, the
// overlay's staged additions/removals, and v.
func (o *Overlay) Validate(base *sigma.Snapshot, v *Validator) (Receipt, error) {
	if err := structValidate.Struct(v); err != nil {
		return Receipt{}, kerrors.FailedTo("validate overlay validator config", err)
	}

	results := Results{}
	var errs []ValidationError

	merged, applyErr := o.Apply(base)
	results.StaticChecksPassed = applyErr == nil
	if applyErr != nil {
		errs = append(errs, ValidationError{Code: "base_mismatch", Message: applyErr.Error()})
	}

	// Dynamic: the candidate triple set must compile into a sealed
	// snapshot without error (spec §4.2 "dynamic checks").
	results.DynamicChecksPassed = true
	if applyErr == nil {
		if _, err := sigma.Build(base.Tasks(), base.Guards(), base.Patterns(), merged, nil); err != nil {
			results.DynamicChecksPassed = false
			errs = append(errs, ValidationError{Code: "compile_failed", Message: err.Error()})
		}
	}

	// Performance: the number of removal patterns plus additions is the
	// proxy for the tick cost this overlay will add to the hot path the
	// next time its predicates are pinned.
	ticks := uint32(len(o.additions) + len(o.removals))
	results.PerformanceChecksPassed = ticks <= v.MaxTicks
	if !results.PerformanceChecksPassed {
		errs = append(errs, ValidationError{Code: "ticks_exceeded", Message: "overlay cost exceeds max_ticks"})
	}

	// Invariant preservation: the merged set must still reference at
	// least min_sectors distinct predicates (spec's "min_sectors" bound,
	// generalized here from the original's domain-specific sector count
	// to distinct predicate coverage — the Σ* analogue of "sector").
	results.InvariantsPreserved = true
	if applyErr == nil {
		distinct := distinctPredicates(merged)
		if distinct < v.MinSectors {
			results.InvariantsPreserved = false
			errs = append(errs, ValidationError{Code: "min_sectors", Message: "merged triple set has too few distinct predicates"})
		}
	}

	results.Errors = errs
	parent := base.Hash()
	return Receipt{
		SnapshotHash: base.Hash(),
		ParentHash:   &parent,
		Description:  o.Description,
		Results:      results,
		Ticks:        ticks,
	}, nil
}

func distinctPredicates(triples []sigma.Triple) int {
	seen := make(map[uint64]struct{})
	for _, t := range triples {
		seen[t.Predicate] = struct{}{}
	}
	return len(seen)
}
