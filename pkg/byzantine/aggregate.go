// Package byzantine implements coordinate-wise median aggregation over
// distributed contributions (spec §4.9): a quorum of contributors submit
// d-dimensional vectors, the aggregator reports the per-coordinate median,
// and flags contributors whose distance from it looks like a Byzantine
// fault rather than honest noise.
//
// Grounded on original_source/rust/knhk-byzantine/src/network/mod.rs's
// node-state model (Active/Suspected/Byzantine/Offline) and spec.md §4.9;
// the Rust network module simulates message delivery, not aggregation
// itself, so the median/outlier math here follows spec.md's statistical
// rule directly (DESIGN.md open question 4).
package byzantine

import (
	"math"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/mathutil"
	"github.com/knhk/workflow-kernel/internal/telemetry"
)

// NodeState mirrors the teacher's ByzantineNetwork node lifecycle.
type NodeState string

const (
	NodeActive    NodeState = "active"
	NodeSuspected NodeState = "suspected"
	NodeByzantine NodeState = "byzantine"
	NodeOffline   NodeState = "offline"
)

// Contribution is one node's d-dimensional vector submitted for
// aggregation.
type Contribution struct {
	NodeID string
	Vector []float64
}

// Result is the outcome of aggregating a round of contributions.
type Result struct {
	Median    []float64
	States    map[string]NodeState
	Byzantine []string
	Tolerated bool // true iff len(Byzantine) < n/3 (spec §4.9 "f < n/3")
}

// Aggregator holds the quorum and outlier-detection configuration.
type Aggregator struct {
	QuorumSize      int
	ThresholdFactor float64
}

// NewAggregator constructs an Aggregator. thresholdFactor defaults to 3.0
// (DESIGN.md open question 4) if zero.
func NewAggregator(quorumSize int, thresholdFactor float64) *Aggregator {
	if thresholdFactor == 0 {
		thresholdFactor = 3.0
	}
	return &Aggregator{QuorumSize: quorumSize, ThresholdFactor: thresholdFactor}
}

// Aggregate computes the coordinate-wise median over contributions and
// flags outliers. Fails if quorum is not met or contributors disagree on
// dimension d (spec §4.9 preconditions).
func (a *Aggregator) Aggregate(contributions []Contribution) (Result, error) {
	n := len(contributions)
	if n < a.QuorumSize {
		return Result{}, &kerrors.KernelError{
			Kind:    kerrors.KindResourceExhausted,
			Message: "quorum not met",
		}
	}

	d := len(contributions[0].Vector)
	for _, c := range contributions {
		if len(c.Vector) != d {
			return Result{}, &kerrors.KernelError{
				Kind:    kerrors.KindValidationFailed,
				Message: "contributors disagree on dimension d",
			}
		}
	}

	median := coordinateMedian(contributions, d)
	distances := make([]float64, n)
	for i, c := range contributions {
		distances[i] = l2Distance(c.Vector, median)
	}

	mad := mathutil.MedianAbsoluteDeviation(distances)
	states := make(map[string]NodeState, n)
	var flagged []string
	for i, c := range contributions {
		if mad > 0 && distances[i] > a.ThresholdFactor*mad {
			states[c.NodeID] = NodeByzantine
			flagged = append(flagged, c.NodeID)
			telemetry.ByzantineFlaggedTotal.Inc()
			continue
		}
		states[c.NodeID] = NodeActive
	}

	return Result{
		Median:    median,
		States:    states,
		Byzantine: flagged,
		Tolerated: len(flagged)*3 < n,
	}, nil
}

// coordinateMedian computes the median independently per dimension.
func coordinateMedian(contributions []Contribution, d int) []float64 {
	median := make([]float64, d)
	column := make([]float64, len(contributions))
	for dim := 0; dim < d; dim++ {
		for i, c := range contributions {
			column[i] = c.Vector[dim]
		}
		median[dim] = mathutil.Median(column)
	}
	return median
}

func l2Distance(a, b []float64) float64 {
	var sumSq float64
	for i := range a {
		diff := a[i] - b[i]
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq)
}
