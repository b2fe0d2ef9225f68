// Package originality detects near-duplicate content by combining token
// similarity with semantic similarity and classifies a novelty level.
package originality

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Similarity thresholds.
const (
	// SimilarityThreshold marks a likely duplicate.
	SimilarityThreshold = 0.75
	// ModerateThreshold is the floor for keeping a match at all.
	ModerateThreshold = 0.55
	// highSimilarity separates derivative work from original work.
	highSimilarity = 0.70
)

// Novelty levels, from most to least original.
const (
	NoveltyHighlyOriginal = "highly_original"
	NoveltyOriginal       = "original"
	NoveltySemiOriginal   = "semi_original"
	NoveltyDerivative     = "derivative"
	NoveltyDuplicate      = "duplicate"
)

// maxMatches limits how many similar items an analysis retains.
const maxMatches = 5

// previewLength bounds the text preview carried on a match.
const previewLength = 150

// Item is a corpus entry the candidate is compared against.
type Item struct {
	ID              string
	AuthorID        string
	Text            string
	CreatedAt       time.Time
	AnnotationCount int
}

// Match describes one similar corpus item.
type Match struct {
	ContentID       string    `json:"content_id"`
	AuthorID        string    `json:"author_id"`
	TextPreview     string    `json:"text_preview"`
	Similarity      float64   `json:"similarity"`
	CreatedAt       time.Time `json:"created_at"`
	AnnotationCount int       `json:"annotation_count"`
}

// Analysis is the full originality assessment for one content item.
type Analysis struct {
	ContentID        string  `json:"content_id"`
	Score            float64 `json:"originality_score"`
	NoveltyLevel     string  `json:"novelty_level"`
	Matches          []Match `json:"similarity_matches"`
	FlaggedForReview bool    `json:"flagged_for_review"`
	BoostEligible    bool    `json:"boost_eligible"`
}

// Comparator computes semantic similarity between two texts in [0, 1].
type Comparator interface {
	Compare(ctx context.Context, a, b string) (float64, error)
}

// tokenize lowercases, strips ASCII punctuation, and splits on whitespace.
func tokenize(text string) map[string]struct{} {
	const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(b.String()) {
		tokens[w] = struct{}{}
	}
	return tokens
}

// TokenSimilarity is the Jaccard index over punctuation-stripped lowercase
// token sets.
func TokenSimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// preview truncates text to the match preview length.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}

// noveltyLevel applies the classification rules in order.
func noveltyLevel(score float64, matches []Match) string {
	for _, m := range matches {
		if m.Similarity > SimilarityThreshold {
			return NoveltyDuplicate
		}
	}

	hasHigh := false
	for _, m := range matches {
		if m.Similarity > highSimilarity {
			hasHigh = true
			break
		}
	}

	switch {
	case score >= 85:
		return NoveltyHighlyOriginal
	case score >= 70 && !hasHigh:
		return NoveltyOriginal
	case score >= 50 && !hasHigh:
		return NoveltySemiOriginal
	case hasHigh:
		return NoveltyDerivative
	default:
		return NoveltyOriginal
	}
}

// sortMatches orders matches by similarity descending with content id as the
// tie-break so repeated analyses are deterministic.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ContentID < matches[j].ContentID
	})
}

// DiscoveryBoost converts an analysis into the soft ranking boost applied to
// boost-eligible content. Ineligible content gets no boost.
func DiscoveryBoost(a Analysis) float64 {
	if !a.BoostEligible {
		return 0
	}
	return (a.Score / 100) * 25
}
