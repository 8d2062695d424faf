package coldplanner

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/telemetry"
	"github.com/knhk/workflow-kernel/pkg/overlay"
	"github.com/knhk/workflow-kernel/pkg/snapshotstore"
)

// Planner is the cold path's entry point: it turns a symptom into a
// proposed overlay via the (circuit-breaker-guarded) analysis client, and
// stages proposals for later promotion through pkg/overlay's one-shot
// commit. Planner itself holds no reference to the live snapshot beyond
// what it needs to stage and commit — it cannot mutate Σ* by any other
// path (spec §4.5).
type Planner struct {
	mu       sync.Mutex
	client   AnalysisClient
	store    *snapshotstore.Store
	v        *overlay.Validator
	attempts uint

	staged map[uuid.UUID]*overlay.Overlay
}

// NewPlanner wires client behind a circuit breaker named name, so a
// flapping analysis service degrades gracefully
// instead of retrying into it indefinitely.
func NewPlanner(name string, client AnalysisClient, breaker BreakerSettings, store *snapshotstore.Store, v *overlay.Validator, maxCommitAttempts uint) *Planner {
	return &Planner{
		client:   newBreakerClient(name, client, breaker),
		store:    store,
		v:        v,
		attempts: maxCommitAttempts,
		staged:   make(map[uuid.UUID]*overlay.Overlay),
	}
}

// Propose asks the analysis client for a root-cause-driven overlay and
// stages it under actionID, ready for Promote to commit. Transient client
// errors (anything the client doesn't mark kerrors.KindValidationFailed)
// are retried with backoff; a validation-kind error is treated as
// permanent since retrying won't change the service's answer.
func (p *Planner) Propose(ctx context.Context, actionID uuid.UUID, baseHash [32]byte, req RootCauseRequest) (AnalysisResult, error) {
	operation := func() (AnalysisResult, error) {
		result, err := p.client.Analyze(ctx, req)
		if err != nil {
			if kind, ok := kerrors.KindOf(err); ok && kind == kerrors.KindValidationFailed {
				return AnalysisResult{}, backoff.Permanent(err)
			}
			return AnalysisResult{}, err
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(3),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		telemetry.ColdPlannerProposalsTotal.WithLabelValues("failed").Inc()
		return AnalysisResult{}, err
	}

	ov := overlay.New(baseHash, result.Overlay.Description)
	for _, t := range result.Overlay.AddTriples {
		ov.AddTriple(t)
	}
	for _, pat := range result.Overlay.RemovePatterns {
		ov.RemovePattern(overlay.Pattern{Subject: pat.Subject, Predicate: pat.Predicate, Object: pat.Object})
	}

	p.mu.Lock()
	p.staged[actionID] = ov
	p.mu.Unlock()

	telemetry.ColdPlannerProposalsTotal.WithLabelValues("staged").Inc()
	return result, nil
}

// Promote commits the overlay staged under actionID, satisfying
// pkg/mapek.Promoter so the execute phase can request promotion without
// depending on pkg/coldplanner directly (spec §4.8 "promotion path").
// An actionID with no staged overlay (Propose was never called for it, or
// its overlay was already promoted) promotes as a no-op success.
func (p *Planner) Promote(ctx context.Context, actionID uuid.UUID) error {
	p.mu.Lock()
	ov, ok := p.staged[actionID]
	if ok {
		delete(p.staged, actionID)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}

	_, err := ov.CommitWithRetry(ctx, p.store, p.v, p.attempts)
	if err != nil {
		telemetry.ColdPlannerProposalsTotal.WithLabelValues("promote_failed").Inc()
		return err
	}
	telemetry.ColdPlannerProposalsTotal.WithLabelValues("promoted").Inc()
	return nil
}

// Pending reports whether actionID has a staged overlay awaiting Promote.
func (p *Planner) Pending(actionID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.staged[actionID]
	return ok
}

// DefaultBreakerSettings mirrors the teacher's ReadyToTrip-on-3-consecutive-
// failures shape, expressed as a failure ratio over a small request window.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureRatio: 0.6, MinRequests: 3, OpenTimeout: 30 * time.Second}
}
