package evaluate

import (
	"context"
	"strings"
)

// Phrase lists for the deterministic axis rules. Matching is
// case-insensitive substring matching.
var (
	evidentiaryKeywords = []string{"study", "research", "according to", "data", "report"}
	genericPhrases      = []string{"thoughts?", "what do you think", "agree?", "am i right", "hot take"}
)

// HeuristicEvaluator scores content with deterministic text statistics.
// It never fails and serves as the fallback for the semantic path, which
// also makes it the target for exact-value tests.
type HeuristicEvaluator struct{}

// NewHeuristicEvaluator creates a heuristic evaluator.
func NewHeuristicEvaluator() *HeuristicEvaluator {
	return &HeuristicEvaluator{}
}

// NeutralMediaValue is the media axis score when the media cannot be judged.
const NeutralMediaValue = 50.0

// Evaluate scores the input. The returned error is always nil.
func (h *HeuristicEvaluator) Evaluate(_ context.Context, in Input) (Axes, error) {
	lower := strings.ToLower(in.Text)
	wordCount := len(strings.Fields(in.Text))

	clarity := 50.0
	if wordCount >= 30 && wordCount <= 150 {
		clarity += 20
	}
	if strings.ContainsAny(in.Text, ".!?") {
		clarity += 10
	}
	if clarity > 100 {
		clarity = 100
	}

	originality := 60.0
	if wordCount < 10 {
		originality -= 20
	}
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			originality -= 10
			break
		}
	}
	if originality < 0 {
		originality = 0
	}
	if originality > 100 {
		originality = 100
	}

	relevance := 55.0
	if in.Domain != "" {
		relevance += 10
	}

	effort := 45.0
	if wordCount >= 50 {
		effort += 15
	}
	if wordCount >= 100 {
		effort += 15
	}
	if effort > 100 {
		effort = 100
	}

	evidentiary := 50.0
	for _, kw := range evidentiaryKeywords {
		if strings.Contains(lower, kw) {
			evidentiary += 20
			break
		}
	}
	if evidentiary > 100 {
		evidentiary = 100
	}

	axes := Axes{
		Clarity:          clarity,
		Originality:      originality,
		Relevance:        relevance,
		Effort:           effort,
		EvidentiaryValue: evidentiary,
		Summary:          "Automated evaluation unavailable",
	}
	if len(in.MediaTypes) > 0 {
		mv := NeutralMediaValue
		axes.MediaValue = &mv
	}
	return axes, nil
}
