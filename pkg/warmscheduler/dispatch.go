package warmscheduler

import (
	"context"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/knhk/workflow-kernel/internal/telemetry"
)

// Eval dispatches one hook's hot-kernel evaluation and reports the actual
// ticks it consumed (which may differ from its registered estimate).
type Eval func(ctx context.Context, hookID uint64) (ticksUsed uint32, err error)

// DispatchResult records what actually ran in an epoch versus what was
// rolled to the next one because real execution would have overrun
// tauEpoch (spec §4.4 "Cancellation/timeout").
type DispatchResult struct {
	Dispatched []uint64
	Rolled     []uint64
	Overran    bool
}

// Dispatch runs plan's ordered hooks concurrently, bounded by
// concurrency, against eval. A shared atomic budget gate enforces the
// plan's tauEpoch even under concurrent completion order: a hook is only
// actually charged if the budget has room left when its result lands;
// otherwise it is rolled to the next epoch and the overrun counter fires.
// Dispatch preserves plan.Ordered's order in the returned Dispatched
// slice regardless of completion order.
func Dispatch(ctx context.Context, plan EpochPlan, concurrency int, eval Eval) (DispatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	type outcome struct {
		hookID  uint64
		ticks   uint32
		charged bool
	}
	outcomes := make([]outcome, len(plan.Ordered))

	var used atomic.Uint32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range plan.Ordered {
		i, id := i, id
		g.Go(func() error {
			ticks, err := eval(gctx, id)
			if err != nil {
				return err
			}
			for {
				cur := used.Load()
				next := cur + ticks
				if next > plan.TauEpoch {
					outcomes[i] = outcome{hookID: id, ticks: ticks, charged: false}
					return nil
				}
				if used.CompareAndSwap(cur, next) {
					outcomes[i] = outcome{hookID: id, ticks: ticks, charged: true}
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return DispatchResult{}, err
	}

	var result DispatchResult
	for _, o := range outcomes {
		if o.charged {
			result.Dispatched = append(result.Dispatched, o.hookID)
		} else {
			result.Rolled = append(result.Rolled, o.hookID)
		}
	}
	if len(result.Rolled) > 0 {
		result.Overran = true
		telemetry.EpochOverrunsTotal.WithLabelValues(strconv.FormatUint(plan.EpochID, 10)).Inc()
	}
	return result, nil
}
