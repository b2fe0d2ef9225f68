// Package classify assigns a stance to annotation text relative to its
// claim. Classification prefers the external capability and degrades to
// keyword heuristics, so it is always available.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thrryv/engine/internal/capability"
	"github.com/thrryv/engine/internal/claim"
)

// minClassifiableLength is the annotation length below which classification
// is not attempted at all.
const minClassifiableLength = 10

// Classification is the stance decision for one annotation.
type Classification struct {
	Stance     claim.Stance `json:"annotation_type"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
}

// Classifier assigns a stance to annotation text.
type Classifier interface {
	Classify(ctx context.Context, claimText, annotationText string) (Classification, error)
}

// Heuristic marker lists, checked in order: contradiction wins ties.
var (
	contradictMarkers = []string{"not", "false", "wrong", "debunk", "no evidence", "misleading", "incorrect", "myth"}
	supportMarkers    = []string{"evidence", "study", "research", "confirms", "supports", "shows", "data", "according to"}
)

// HeuristicClassifier classifies with keyword markers. It never errors.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates a heuristic classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify applies the marker heuristics. The returned error is always nil.
func (h *HeuristicClassifier) Classify(_ context.Context, _ string, annotationText string) (Classification, error) {
	if len(annotationText) < minClassifiableLength {
		return Classification{
			Stance:     claim.StanceContext,
			Confidence: 0.4,
			Reasoning:  "Too short to classify",
		}, nil
	}

	text := strings.ToLower(annotationText)
	for _, m := range contradictMarkers {
		if strings.Contains(text, m) {
			return Classification{
				Stance:     claim.StanceContradict,
				Confidence: 0.6,
				Reasoning:  "Heuristic contradict markers",
			}, nil
		}
	}
	for _, m := range supportMarkers {
		if strings.Contains(text, m) {
			return Classification{
				Stance:     claim.StanceSupport,
				Confidence: 0.6,
				Reasoning:  "Heuristic support markers",
			}, nil
		}
	}

	return Classification{
		Stance:     claim.StanceContext,
		Confidence: 0.5,
		Reasoning:  "Heuristic default",
	}, nil
}

const classifySystemPrompt = `Classify the annotation as one of: support, contradict, context.

Definitions:
- support: Agrees with or validates the claim; adds supporting evidence
- contradict: Challenges or disputes the claim; adds counter-evidence
- context: Neutral info, clarification, or background without taking a stance

Respond ONLY with JSON:
{"annotation_type": "support|contradict|context", "confidence": 0.0-1.0, "reasoning": "brief"}`

// CapabilityClassifier classifies through the external capability.
type CapabilityClassifier struct {
	completer capability.Completer
}

// NewCapabilityClassifier creates a capability-backed classifier.
func NewCapabilityClassifier(completer capability.Completer) *CapabilityClassifier {
	return &CapabilityClassifier{completer: completer}
}

type classifyPayload struct {
	AnnotationType string  `json:"annotation_type"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// Classify asks the capability for a stance decision. Unknown stance values
// in the response read as context.
func (c *CapabilityClassifier) Classify(ctx context.Context, claimText, annotationText string) (Classification, error) {
	prompt := fmt.Sprintf("Claim: %q\nAnnotation: %q", claimText, annotationText)

	raw, err := c.completer.Complete(ctx, classifySystemPrompt, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("stance classification: %w", err)
	}

	var payload classifyPayload
	if err := capability.ParsePayload(raw, &payload); err != nil {
		return Classification{}, fmt.Errorf("stance classification: %w", err)
	}

	stance := claim.Stance(payload.AnnotationType)
	if !claim.ValidStance(stance) {
		stance = claim.StanceContext
	}

	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return Classification{
		Stance:     stance,
		Confidence: confidence,
		Reasoning:  payload.Reasoning,
	}, nil
}

// Service combines a primary classifier with the heuristic fallback.
// Classify is total.
type Service struct {
	primary  Classifier
	fallback *HeuristicClassifier
	metrics  *capability.Metrics
}

// NewService creates a classification service. primary may be nil, in which
// case every classification uses the heuristics. metrics may be nil.
func NewService(primary Classifier, metrics *capability.Metrics) *Service {
	return &Service{
		primary:  primary,
		fallback: NewHeuristicClassifier(),
		metrics:  metrics,
	}
}

// Classify assigns a stance, degrading to the heuristics on any primary
// failure. Very short annotations skip the capability entirely.
func (s *Service) Classify(ctx context.Context, claimText, annotationText string) Classification {
	if len(annotationText) < minClassifiableLength {
		result, _ := s.fallback.Classify(ctx, claimText, annotationText)
		return result
	}

	if s.primary != nil {
		result, err := s.primary.Classify(ctx, claimText, annotationText)
		if err == nil {
			return result
		}
		slog.Warn("stance classification failed, falling back to heuristics", "error", err)
		if s.metrics != nil {
			s.metrics.IncFallback("classify")
		}
	}

	result, _ := s.fallback.Classify(ctx, claimText, annotationText)
	return result
}
