package coldplanner

import "context"

// NullClient is the local default analysis client: it proposes no overlay
// changes and reports back that nothing could be synthesized without a
// real analysis service configured. Used when no API key is wired so the
// controller still has something to call for Propose instead of nil.
type NullClient struct{}

func (NullClient) Analyze(_ context.Context, req RootCauseRequest) (AnalysisResult, error) {
	return AnalysisResult{
		Summary: "no analysis service configured; proposing no changes for: " + req.Problem,
	}, nil
}
