// Package coldplanner implements the unbounded off-path analysis stage
// (spec §4.5 "μ_cold"): given a symptom, it calls out to an external
// analysis service for root-cause/plan synthesis and proposes a Σ* overlay.
// It never touches the live snapshot directly — the only way a proposal
// reaches production is through pkg/overlay's commit path (spec §4.2).
//
// Grounded on original_source/rust/knhk-autonomic/src/planner/mod.rs's
// policy/action shape (reused conceptually by pkg/mapek's Planner) plus
// spec.md §4.5's "no τ budget, commits only via §4.2" constraint; the
// circuit breaker and retry wiring follow jordigilh-kubernaut's
// pkg/shared/circuitbreaker + sony/gobreaker usage in
// test/integration/notification/suite_test.go.
package coldplanner

import "github.com/knhk/workflow-kernel/pkg/sigma"

// RootCauseRequest is the symptom context handed to the external analysis
// client.
type RootCauseRequest struct {
	Problem          string
	RootCause        string
	AffectedElements []string
	Context          map[string]string
}

// ProposedOverlay is the analysis client's recommendation: triples to add
// and subject/predicate/object patterns to remove, expressed directly in
// Σ*'s addressing so the planner can stage them without reinterpretation.
type ProposedOverlay struct {
	Description    string
	AddTriples     []sigma.Triple
	RemovePatterns []Pattern
}

// Pattern mirrors pkg/overlay.Pattern's wildcard semantics; kept distinct
// so this package has no compile-time dependency on overlay's internal
// layout beyond what Propose needs to hand back.
type Pattern struct {
	Subject   *uint64
	Predicate *uint64
	Object    *uint64
}

// AnalysisResult is what the external service returns: a human-readable
// summary plus the overlay it recommends committing.
type AnalysisResult struct {
	Summary string
	Overlay ProposedOverlay
}

func triple(subject, predicate, object uint64) sigma.Triple {
	return sigma.Triple{Subject: subject, Predicate: predicate, Object: object}
}
