package originality

import (
	"context"
	"log/slog"

	"github.com/thrryv/engine/internal/capability"
)

// Detector analyzes candidate content against a corpus. The semantic leg of
// the similarity combination uses the primary comparator when configured and
// degrades to the keyword fallback on any failure, so analysis is total.
type Detector struct {
	primary  Comparator
	fallback *KeywordComparator
	metrics  *capability.Metrics
}

// NewDetector creates a detector. primary may be nil, in which case every
// comparison uses the keyword fallback. metrics may be nil.
func NewDetector(primary Comparator, metrics *capability.Metrics) *Detector {
	return &Detector{
		primary:  primary,
		fallback: NewKeywordComparator(),
		metrics:  metrics,
	}
}

// semantic runs the primary comparator with fallback on failure.
func (d *Detector) semantic(ctx context.Context, a, b string) float64 {
	if d.primary != nil {
		sim, err := d.primary.Compare(ctx, a, b)
		if err == nil {
			return sim
		}
		slog.Warn("semantic comparison failed, falling back to keyword overlap", "error", err)
		if d.metrics != nil {
			d.metrics.IncFallback("originality")
		}
	}
	sim, _ := d.fallback.Compare(ctx, a, b)
	return sim
}

// similarity combines the semantic and token legs. Either text tokenizing
// to nothing means there is nothing to compare.
func (d *Detector) similarity(ctx context.Context, a, b string) float64 {
	if len(tokenize(a)) == 0 || len(tokenize(b)) == 0 {
		return 0
	}

	token := TokenSimilarity(a, b)
	combined := d.semantic(ctx, a, b)*0.6 + token*0.4
	if combined < 0 {
		return 0
	}
	if combined > 1 {
		return 1
	}
	return combined
}

// Analyze assesses the candidate text against the corpus. The candidate
// itself must not be part of the corpus. With an empty corpus or no match at
// the moderate threshold the score is 100.
func (d *Detector) Analyze(ctx context.Context, contentID, text string, corpus []Item) Analysis {
	var matches []Match
	for _, item := range corpus {
		if item.ID == contentID {
			continue
		}
		sim := d.similarity(ctx, text, item.Text)
		if sim < ModerateThreshold {
			continue
		}
		matches = append(matches, Match{
			ContentID:       item.ID,
			AuthorID:        item.AuthorID,
			TextPreview:     preview(item.Text),
			Similarity:      sim,
			CreatedAt:       item.CreatedAt,
			AnnotationCount: item.AnnotationCount,
		})
	}

	sortMatches(matches)

	score := 100.0
	if len(matches) > 0 {
		score = 100 - matches[0].Similarity*100
		if score < 0 {
			score = 0
		}
	}

	level := noveltyLevel(score, matches)

	flagged := score < 30
	for _, m := range matches {
		if m.Similarity > SimilarityThreshold {
			flagged = true
			break
		}
	}

	boostEligible := score >= 75 && (level == NoveltyHighlyOriginal || level == NoveltyOriginal)

	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	return Analysis{
		ContentID:        contentID,
		Score:            score,
		NoveltyLevel:     level,
		Matches:          matches,
		FlaggedForReview: flagged,
		BoostEligible:    boostEligible,
	}
}
