package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thrryv/engine/internal/capability"
)

const textSystemPrompt = `You are a content quality evaluator for a discussion platform.
Score the submitted content on five axes from 0 to 100:
- clarity_score: how clearly the idea is expressed
- originality_score: how novel the framing or idea is
- relevance_score: how relevant the content is to its stated domain
- effort_score: how much substantive effort the content shows
- evidentiary_value_score: how well the content is supported by evidence

Respond with only a JSON object:
{"clarity_score": N, "originality_score": N, "relevance_score": N, "effort_score": N, "evidentiary_value_score": N, "summary": "one sentence"}`

const mediaSystemPrompt = `You are evaluating whether attached media adds informational value
to a piece of discussion-platform content. Given the content text and the media type,
score the media's informational contribution from 0 to 100.

Respond with only a JSON object:
{"media_value_score": N}`

type textPayload struct {
	ClarityScore          float64 `json:"clarity_score"`
	OriginalityScore      float64 `json:"originality_score"`
	RelevanceScore        float64 `json:"relevance_score"`
	EffortScore           float64 `json:"effort_score"`
	EvidentiaryValueScore float64 `json:"evidentiary_value_score"`
	Summary               string  `json:"summary"`
}

type mediaPayload struct {
	MediaValueScore float64 `json:"media_value_score"`
}

// SemanticEvaluator scores content through the external capability.
type SemanticEvaluator struct {
	completer capability.Completer
}

// NewSemanticEvaluator creates a capability-backed evaluator.
func NewSemanticEvaluator(completer capability.Completer) *SemanticEvaluator {
	return &SemanticEvaluator{completer: completer}
}

func clampAxis(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Evaluate scores the input via the capability. Any call or parse failure is
// returned to the caller; the Service handles the fallback.
func (s *SemanticEvaluator) Evaluate(ctx context.Context, in Input) (Axes, error) {
	prompt := in.Text
	if in.Domain != "" {
		prompt = fmt.Sprintf("Domain: %s\n\n%s", in.Domain, in.Text)
	}

	raw, err := s.completer.Complete(ctx, textSystemPrompt, prompt)
	if err != nil {
		return Axes{}, fmt.Errorf("semantic evaluation: %w", err)
	}

	var payload textPayload
	if err := capability.ParsePayload(raw, &payload); err != nil {
		return Axes{}, fmt.Errorf("semantic evaluation: %w", err)
	}

	axes := Axes{
		Clarity:          clampAxis(payload.ClarityScore),
		Originality:      clampAxis(payload.OriginalityScore),
		Relevance:        clampAxis(payload.RelevanceScore),
		Effort:           clampAxis(payload.EffortScore),
		EvidentiaryValue: clampAxis(payload.EvidentiaryValueScore),
		Summary:          payload.Summary,
	}

	if len(in.MediaTypes) > 0 {
		mv := s.evaluateMedia(ctx, in)
		axes.MediaValue = &mv
	}
	return axes, nil
}

// evaluateMedia scores the first attached media item. A media-path failure
// degrades to the neutral score instead of failing the whole evaluation.
func (s *SemanticEvaluator) evaluateMedia(ctx context.Context, in Input) float64 {
	prompt := fmt.Sprintf("Media type: %s\n\nContent text:\n%s", in.MediaTypes[0], in.Text)
	raw, err := s.completer.Complete(ctx, mediaSystemPrompt, prompt)
	if err != nil {
		slog.Warn("media evaluation failed, using neutral score", "error", err)
		return NeutralMediaValue
	}

	var payload mediaPayload
	if err := capability.ParsePayload(raw, &payload); err != nil {
		slog.Warn("media evaluation unparsable, using neutral score", "error", err)
		return NeutralMediaValue
	}
	return clampAxis(payload.MediaValueScore)
}
