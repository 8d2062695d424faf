package coldplanner

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/knhk/workflow-kernel/internal/telemetry"
)

// breakerClient wraps an AnalysisClient in a per-target gobreaker circuit
// breaker, following jordigilh-kubernaut's circuitbreaker.Manager pattern
// plus a state-change metric. It trips once at least MinRequests calls
// have been counted and the share of them that failed reaches
// FailureRatio.
type breakerClient struct {
	inner   AnalysisClient
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures when the breaker trips open and how long it
// stays open before going half-open to probe the service again.
type BreakerSettings struct {
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
}

func newBreakerClient(name string, inner AnalysisClient, s BreakerSettings) *breakerClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= s.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			telemetry.ColdPlannerBreakerStateChangesTotal.WithLabelValues(to.String()).Inc()
		},
	})
	return &breakerClient{inner: inner, breaker: breaker}
}

func (b *breakerClient) Analyze(ctx context.Context, req RootCauseRequest) (AnalysisResult, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Analyze(ctx, req)
	})
	if err != nil {
		return AnalysisResult{}, err
	}
	return result.(AnalysisResult), nil
}
