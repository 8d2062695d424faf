package coldplanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/knhk/workflow-kernel/internal/kerrors"
)

// AnalysisClient is the one real external service the cold planner may
// call (spec §4.5); everything else in this package is local bookkeeping
// around it.
type AnalysisClient interface {
	Analyze(ctx context.Context, req RootCauseRequest) (AnalysisResult, error)
}

// AnthropicClient synthesizes root-cause analysis and overlay proposals by
// asking a Claude model for a structured JSON recommendation.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient wires an Anthropic client from the standard
// ANTHROPIC_API_KEY environment variable (picked up by option.WithAPIKey's
// default resolution) under the given model.
func NewAnthropicClient(model string, opts ...option.RequestOption) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// analysisPrompt frames the symptom and asks for a JSON-only reply shaped
// like AnalysisResult so Analyze can decode it without a parsing layer.
func analysisPrompt(req RootCauseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Problem: %s\nRoot cause hypothesis: %s\nAffected elements: %s\n",
		req.Problem, req.RootCause, strings.Join(req.AffectedElements, ", "))
	for k, v := range req.Context {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	b.WriteString("Respond with a single JSON object: " +
		`{"summary": string, "overlay": {"description": string, ` +
		`"add_triples": [{"subject": uint64, "predicate": uint64, "object": uint64}], ` +
		`"remove_patterns": [{"subject": uint64|null, "predicate": uint64|null, "object": uint64|null}]}}. ` +
		"No prose outside the JSON object.")
	return b.String()
}

func (c *AnthropicClient) Analyze(ctx context.Context, req RootCauseRequest) (AnalysisResult, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(analysisPrompt(req))),
		},
	})
	if err != nil {
		return AnalysisResult{}, kerrors.FailedTo("call analysis service", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	var wire wireAnalysisResult
	if err := json.Unmarshal([]byte(text.String()), &wire); err != nil {
		return AnalysisResult{}, kerrors.FailedToWithDetails("decode analysis response", "coldplanner", "analysis_client", err)
	}
	return wire.toAnalysisResult(), nil
}

// wireAnalysisResult is the JSON shape requested of the model; Object/
// Subject/Predicate use pointers so a "remove_patterns" entry's wildcard
// fields round-trip through JSON null correctly.
type wireAnalysisResult struct {
	Summary string `json:"summary"`
	Overlay struct {
		Description string `json:"description"`
		AddTriples  []struct {
			Subject   uint64 `json:"subject"`
			Predicate uint64 `json:"predicate"`
			Object    uint64 `json:"object"`
		} `json:"add_triples"`
		RemovePatterns []struct {
			Subject   *uint64 `json:"subject"`
			Predicate *uint64 `json:"predicate"`
			Object    *uint64 `json:"object"`
		} `json:"remove_patterns"`
	} `json:"overlay"`
}

func (w wireAnalysisResult) toAnalysisResult() AnalysisResult {
	result := AnalysisResult{
		Summary: w.Summary,
		Overlay: ProposedOverlay{Description: w.Overlay.Description},
	}
	for _, t := range w.Overlay.AddTriples {
		result.Overlay.AddTriples = append(result.Overlay.AddTriples, triple(t.Subject, t.Predicate, t.Object))
	}
	for _, p := range w.Overlay.RemovePatterns {
		result.Overlay.RemovePatterns = append(result.Overlay.RemovePatterns, Pattern{
			Subject: p.Subject, Predicate: p.Predicate, Object: p.Object,
		})
	}
	return result
}
