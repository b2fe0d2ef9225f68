package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Algorithm selects how signals combine into a composite score.
type Algorithm string

// Discovery algorithm variants.
const (
	AlgorithmRelevance     Algorithm = "relevance"
	AlgorithmDiversity     Algorithm = "diversity"
	AlgorithmEmergent      Algorithm = "emergent"
	AlgorithmStandingAware Algorithm = "standing_aware"
)

// ParseAlgorithm validates an algorithm name, defaulting empty to relevance.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmRelevance, AlgorithmDiversity, AlgorithmEmergent, AlgorithmStandingAware:
		return Algorithm(s), nil
	case "":
		return AlgorithmRelevance, nil
	default:
		return "", fmt.Errorf("unknown discovery algorithm %q", s)
	}
}

// Ranking defaults.
const (
	DefaultLimit               = 20
	DefaultDiversityPreference = 0.3
	titleLength                = 100
	diverseDiscussionThreshold = 70.0
)

// Result is one ranked item with its signals and score breakdown.
type Result struct {
	ContentID           string   `json:"content_id"`
	AuthorID            string   `json:"author_id"`
	AuthorStanding      float64  `json:"author_standing"`
	Title               string   `json:"title"`
	Signals             Signals  `json:"signals"`
	CompositeScore      float64  `json:"composite_score"`
	MatchExplanation    string   `json:"relevance_match_explanation"`
	DiversityIndicators []string `json:"diversity_indicators"`
	PerspectiveType     string   `json:"perspective_type"`
}

// Options tune a single ranking pass.
type Options struct {
	Algorithm Algorithm
	Limit     int
	// DiversityPreference scales the overrepresentation penalty of the
	// diversity algorithm, 0-1. Zero means the default 0.3.
	DiversityPreference float64
	// Now anchors recency; zero means time.Now().
	Now time.Time
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o Options) diversityPreference() float64 {
	if o.DiversityPreference <= 0 {
		return DefaultDiversityPreference
	}
	return o.DiversityPreference
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// variant picks the weight set for the algorithm.
func (w *Weights) variant(alg Algorithm) VariantWeights {
	switch alg {
	case AlgorithmDiversity:
		return w.Diversity
	case AlgorithmEmergent:
		return w.Emergent
	case AlgorithmStandingAware:
		return w.StandingAware
	default:
		return w.Relevance
	}
}

// composite combines signals under the variant's weights.
func composite(s Signals, w VariantWeights) float64 {
	return s.Relevance*w.Relevance +
		s.Diversity*w.Diversity +
		s.Originality*w.Originality +
		s.EngagementQuality*w.Engagement +
		s.AuthorStanding*w.Standing +
		s.Recency*w.Recency +
		s.Clarity*w.Clarity
}

func title(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLength {
		return text
	}
	return string(runes[:titleLength])
}

// diversityIndicators lists qualitative diversity markers for an item.
func diversityIndicators(item Item) []string {
	var indicators []string
	if item.PerspectiveType == "contrarian" {
		indicators = append(indicators, "contrarian_view")
	}
	if item.PerspectiveType == "emerging" {
		indicators = append(indicators, "emerging_perspective")
	}
	if item.HasSources {
		indicators = append(indicators, "evidence_based")
	}
	if item.AnnotationDiversity > diverseDiscussionThreshold {
		indicators = append(indicators, "diverse_discussion")
	}
	return indicators
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})
}

// applyStandingAdjustment softly boosts high-standing authors without
// letting standing override relevance.
func applyStandingAdjustment(results []Result) {
	for i := range results {
		results[i].CompositeScore += (results[i].AuthorStanding / 100) * 15
	}
	sortResults(results)
}

// applyDiversityAdjustment penalizes overrepresented perspectives so the
// result set spreads across viewpoints.
func applyDiversityAdjustment(results []Result, preference float64) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.PerspectiveType]++
	}
	for i := range results {
		penalty := float64(counts[results[i].PerspectiveType]-1) * 5 * preference
		results[i].CompositeScore -= penalty
	}
	sortResults(results)
}

// applyEmergentAdjustment further boosts novel content.
func applyEmergentAdjustment(results []Result) {
	for i := range results {
		results[i].CompositeScore += (results[i].Signals.Originality / 100) * 20
	}
	sortResults(results)
}

// Rank scores and orders items against an already-parsed intent. It never
// mutates the input items, and equal scores keep their input order.
func Rank(items []Item, intent Intent, weights *Weights, opts Options) []Result {
	if weights == nil {
		weights = DefaultWeights()
	}
	vw := weights.variant(opts.Algorithm)
	now := opts.now()

	results := make([]Result, 0, len(items))
	for _, item := range items {
		signals := ComputeSignals(item, intent, now)
		results = append(results, Result{
			ContentID:           item.ID,
			AuthorID:            item.AuthorID,
			AuthorStanding:      item.AuthorStanding,
			Title:               title(item.Text),
			Signals:             signals,
			CompositeScore:      composite(signals, vw),
			MatchExplanation:    intent.QueryAnalysis,
			DiversityIndicators: diversityIndicators(item),
			PerspectiveType:     item.PerspectiveType,
		})
	}

	sortResults(results)

	switch opts.Algorithm {
	case AlgorithmStandingAware:
		applyStandingAdjustment(results)
	case AlgorithmDiversity:
		applyDiversityAdjustment(results, opts.diversityPreference())
	case AlgorithmEmergent:
		applyEmergentAdjustment(results)
	}

	if limit := opts.limit(); len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Engine ties intent parsing and ranking together.
type Engine struct {
	parser  *ParserService
	weights *Weights
}

// NewEngine creates a discovery engine. weights may be nil for defaults.
func NewEngine(parser *ParserService, weights *Weights) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{parser: parser, weights: weights}
}

// Discover parses the query and ranks the items against it.
func (e *Engine) Discover(ctx context.Context, query string, items []Item, opts Options) ([]Result, Intent) {
	intent := e.parser.Parse(ctx, query)
	return Rank(items, intent, e.weights, opts), intent
}
