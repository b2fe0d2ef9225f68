package originality

import (
	"context"
	"fmt"
	"strings"

	"github.com/thrryv/engine/internal/capability"
)

// stopWords are excluded from the keyword-overlap fallback.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "that": {}, "this": {},
	"it": {}, "to": {}, "for": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {},
	"with": {}, "from": {}, "as": {}, "about": {}, "into": {}, "through": {},
	"during": {}, "can": {}, "could": {}, "would": {}, "should": {}, "may": {},
	"might": {}, "must": {},
}

// KeywordComparator approximates semantic similarity with stop-word-filtered
// keyword overlap. It is the deterministic fallback for the semantic path
// and never fails.
type KeywordComparator struct{}

// NewKeywordComparator creates a keyword comparator.
func NewKeywordComparator() *KeywordComparator {
	return &KeywordComparator{}
}

// Compare returns |intersection| / max(|A|, |B|) over stop-word-filtered
// keyword sets. The returned error is always nil.
func (k *KeywordComparator) Compare(_ context.Context, a, b string) (float64, error) {
	ka := filterStopWords(tokenize(a))
	kb := filterStopWords(tokenize(b))
	if len(ka) == 0 || len(kb) == 0 {
		return 0, nil
	}

	overlap := 0
	for w := range ka {
		if _, ok := kb[w]; ok {
			overlap++
		}
	}
	maxLen := len(ka)
	if len(kb) > maxLen {
		maxLen = len(kb)
	}
	return float64(overlap) / float64(maxLen), nil
}

func filterStopWords(tokens map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for w := range tokens {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

const similaritySystemPrompt = `You are a semantic similarity analyzer.
Compare two text snippets and determine how similar they are semantically (0-1 scale).
Consider:
- Same topic/subject
- Same perspective or viewpoint
- Similar claims or arguments
- Paraphrasing vs original

Respond ONLY with JSON:
{"similarity": <0.0-1.0>, "reasoning": "brief explanation"}`

// comparePromptLimit bounds how much of each text is sent to the capability.
const comparePromptLimit = 200

// SemanticComparator scores similarity through the external capability.
type SemanticComparator struct {
	completer capability.Completer
}

// NewSemanticComparator creates a capability-backed comparator.
func NewSemanticComparator(completer capability.Completer) *SemanticComparator {
	return &SemanticComparator{completer: completer}
}

type similarityPayload struct {
	Similarity float64 `json:"similarity"`
	Reasoning  string  `json:"reasoning"`
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Compare asks the capability for a similarity judgement. Failures are
// returned to the caller; the Detector handles the fallback.
func (s *SemanticComparator) Compare(ctx context.Context, a, b string) (float64, error) {
	prompt := fmt.Sprintf("Text 1: %s\n\nText 2: %s", truncate(a, comparePromptLimit), truncate(b, comparePromptLimit))

	raw, err := s.completer.Complete(ctx, similaritySystemPrompt, prompt)
	if err != nil {
		return 0, fmt.Errorf("semantic comparison: %w", err)
	}

	var payload similarityPayload
	if err := capability.ParsePayload(strings.TrimSpace(raw), &payload); err != nil {
		return 0, fmt.Errorf("semantic comparison: %w", err)
	}

	sim := payload.Similarity
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}
