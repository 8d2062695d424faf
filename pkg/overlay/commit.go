package overlay

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/sigma"
	"github.com/knhk/workflow-kernel/pkg/snapshotstore"
)

// Commit seals a production-ready receipt into a new snapshot and marks
// the overlay consumed; a second call fails (spec §4.2 "one-shot"). The
// new snapshot carries base's hash as its logical parent via receipt
// metadata; Σ* itself has no parent field, so the lockchain/overlay
// receipt is the durable record of lineage.
func (o *Overlay) Commit(base *sigma.Snapshot, receipt Receipt) (*sigma.Snapshot, error) {
	if o.committed {
		return nil, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "overlay already committed",
		}
	}
	if !receipt.ProductionReady() {
		return nil, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "overlay receipt is not production-ready",
		}
	}
	if receipt.SnapshotHash != base.Hash() {
		return nil, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "overlay receipt does not match base snapshot",
		}
	}

	merged, err := o.Apply(base)
	if err != nil {
		return nil, err
	}
	snap, err := sigma.Build(base.Tasks(), base.Guards(), base.Patterns(), merged, nil)
	if err != nil {
		return nil, kerrors.FailedTo("compile committed overlay snapshot", err)
	}
	o.committed = true
	return snap, nil
}

// CommitWithRetry validates and commits the overlay against whatever
// snapshot is current in store, then publishes it — retrying the whole
// cycle against a freshly re-read current snapshot if store's pointer
// moved between the read and the publish (spec §9 open question: "whether
// the planner must reject out-of-date overlays" — resolved here as
// optimistic-concurrency retry rather than outright rejection). The
// overlay is only marked committed once a publish actually lands.
func (o *Overlay) CommitWithRetry(ctx context.Context, store *snapshotstore.Store, v *Validator, maxAttempts uint) (*sigma.Snapshot, error) {
	operation := func() (*sigma.Snapshot, error) {
		ref, ok := store.Current()
		if !ok {
			return nil, backoff.Permanent(&kerrors.KernelError{
				Kind:    kerrors.KindValidationFailed,
				Message: "no current snapshot to commit overlay against",
			})
		}
		baseAtRead := ref.Snapshot()
		o.BaseHash = baseAtRead.Hash()

		receipt, err := o.Validate(baseAtRead, v)
		if err != nil {
			ref.Release()
			return nil, backoff.Permanent(err)
		}
		if !receipt.ProductionReady() {
			ref.Release()
			return nil, backoff.Permanent(&kerrors.KernelError{
				Kind:    kerrors.KindValidationFailed,
				Message: "overlay failed validation",
			})
		}
		merged, err := o.Apply(baseAtRead)
		ref.Release()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		snap, err := sigma.Build(baseAtRead.Tasks(), baseAtRead.Guards(), baseAtRead.Patterns(), merged, nil)
		if err != nil {
			return nil, backoff.Permanent(kerrors.FailedTo("compile committed overlay snapshot", err))
		}

		if curHash, ok := store.Hash(); ok && curHash != baseAtRead.Hash() {
			// Not wrapped in backoff.Permanent: this is the one retryable
			// condition CommitWithRetry exists for.
			return nil, &kerrors.KernelError{
				Kind:    kerrors.KindValidationFailed,
				Message: "store advanced past overlay base before publish",
			}
		}
		store.Publish(snap)
		o.committed = true
		return snap, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithMaxTries(maxAttempts),
		backoff.WithBackOff(backoff.NewConstantBackOff(0)),
	)
}
