// Package postscore aggregates a content item's baseline evaluation with its
// weighted, evidence-gated community annotations into the mutable post score.
package postscore

import (
	"math"

	"github.com/thrryv/engine/internal/claim"
)

// Aggregation constants.
const (
	// MinWeight is the floor for a single annotation's weight.
	MinWeight = 0.2
	// GatedScale is the weight multiplier for annotations that fail the
	// evidence gate.
	GatedScale = 0.25
	// StanceAdjustBound clamps the stance adjustment to [-bound, +bound].
	StanceAdjustBound = 5.0
	// EngagementCap caps the engagement contribution.
	EngagementCap = 5.0
)

// WeightedAnnotation is an immutable enriched view of an annotation: the
// stored annotation joined with its author's current reputation. Values are
// produced by Enrich and never mutated.
type WeightedAnnotation struct {
	AuthorID         string
	Stance           claim.Stance
	HelpfulVotes     int
	NotHelpfulVotes  int
	Confidence       float64
	AuthorReputation float64
}

// Weight computes the annotation's aggregation weight before gating.
func (a WeightedAnnotation) Weight() float64 {
	votes := 1 + float64(a.HelpfulVotes)*0.2 - float64(a.NotHelpfulVotes)*0.1
	repFactor := clamp(a.AuthorReputation/10, 0.6, 2.0)
	confFactor := 0.6 + 0.4*clamp(a.Confidence, 0, 1)
	return math.Max(MinWeight, votes*repFactor*confFactor)
}

// PassesEvidenceGate reports whether the annotation's stance counts at full
// weight. A single low-confidence, low-reputation annotation without
// community validation only counts at GatedScale.
func (a WeightedAnnotation) PassesEvidenceGate() bool {
	return a.HelpfulVotes >= 2 || a.AuthorReputation >= 15 || a.Confidence >= 0.7
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Compute derives the post score from the baseline axis average (0-100) and
// the full current annotation set. Self-annotations by the content author are
// excluded from every term. The function is pure: recomputing from the same
// inputs always yields the same score.
func Compute(baselineAvg float64, annotations []WeightedAnnotation, contentAuthorID string) float64 {
	base := baselineAvg / 10

	var supportWeight, contradictWeight float64
	var validCount, totalHelpful int

	for _, a := range annotations {
		if a.AuthorID == contentAuthorID {
			continue
		}
		validCount++
		totalHelpful += a.HelpfulVotes

		weight := a.Weight()
		if !a.PassesEvidenceGate() {
			weight *= GatedScale
		}

		switch a.Stance {
		case claim.StanceSupport:
			supportWeight += weight
		case claim.StanceContradict:
			contradictWeight += weight
		}
	}

	stanceAdjust := clamp((supportWeight-contradictWeight)*0.4, -StanceAdjustBound, StanceAdjustBound)
	engagement := math.Min(EngagementCap, float64(validCount)*0.3+float64(totalHelpful)*0.15)

	return math.Max(0, base+engagement+stanceAdjust)
}

// Enrich joins stored annotations with their authors' current reputation.
func Enrich(annotations []*claim.Annotation, stats claim.StatsStore) ([]WeightedAnnotation, error) {
	out := make([]WeightedAnnotation, 0, len(annotations))
	for _, a := range annotations {
		st, err := stats.Get(a.AuthorID)
		if err != nil {
			return nil, err
		}
		out = append(out, WeightedAnnotation{
			AuthorID:         a.AuthorID,
			Stance:           a.Stance,
			HelpfulVotes:     a.HelpfulVotes,
			NotHelpfulVotes:  a.NotHelpfulVotes,
			Confidence:       a.Confidence,
			AuthorReputation: st.Reputation,
		})
	}
	return out, nil
}
