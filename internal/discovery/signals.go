package discovery

import (
	"math"
	"strings"
	"time"
)

// Defaults applied when an item is missing a stored score.
const (
	NeutralOriginality = 50.0
	NeutralClarity     = 50.0
	NeutralDiversity   = 50.0
)

// Item is one candidate piece of content to rank.
type Item struct {
	ID              string
	AuthorID        string
	Text            string
	Domain          string
	PerspectiveType string
	HasSources      bool

	// Stored scores, already defaulted by the caller when absent.
	OriginalityScore float64
	ClarityScore     float64

	AnnotationCount     int
	HelpfulVotes        int
	ControversialVotes  int
	AnnotationDiversity float64

	// AuthorStanding is the author's reach multiplier, roughly 0.8-1.6.
	AuthorStanding float64

	CreatedAt time.Time
}

// Signals are the per-item scores feeding the composite, all on 0-100.
type Signals struct {
	Relevance         float64 `json:"relevance_score"`
	Diversity         float64 `json:"diversity_score"`
	Originality       float64 `json:"originality_score"`
	EngagementQuality float64 `json:"engagement_quality"`
	AuthorStanding    float64 `json:"author_standing"`
	Recency           float64 `json:"recency_weight"`
	Clarity           float64 `json:"clarity_signal"`
}

func clamp100(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// relevance scores keyword, domain, and entity match against the intent.
func relevance(item Item, intent Intent) float64 {
	textLower := strings.ToLower(item.Text)

	matches := 0
	for _, kw := range intent.Keywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			matches++
		}
	}
	denom := len(intent.Keywords)
	if denom < 1 {
		denom = 1
	}
	keywordScore := math.Min(100, float64(matches)/float64(denom)*100)

	domainScore := 70.0
	if len(intent.Domains) > 0 {
		domainScore = 40.0
		for _, d := range intent.Domains {
			if item.Domain == d {
				domainScore = 100.0
				break
			}
		}
	}

	entityScore := 50.0
	if len(intent.KeyEntities) > 0 {
		words := make(map[string]struct{})
		for _, w := range strings.Fields(textLower) {
			words[w] = struct{}{}
		}
		entityMatches := 0
		for _, e := range intent.KeyEntities {
			if _, ok := words[strings.ToLower(e)]; ok {
				entityMatches++
			}
		}
		entityScore = math.Min(100, float64(entityMatches)/float64(len(intent.KeyEntities))*100)
	}

	return clamp100(keywordScore*0.4 + domainScore*0.35 + entityScore*0.25)
}

// diversity scores perspectives that differ from the mainstream, blended
// with the discussion's annotation diversity.
func diversity(item Item, intent Intent) float64 {
	base := 50.0

	if intent.HasPerspective(PerspectiveDiverse) &&
		item.PerspectiveType != "mainstream" && item.PerspectiveType != "consensus" {
		base = 80.0
	}
	if intent.HasPerspective(PerspectiveExpert) && item.HasSources {
		base = math.Min(100, base+20)
	}

	return base*0.6 + item.AnnotationDiversity*0.4
}

// engagementQuality scores the helpful-vote ratio per annotation, with a
// source bonus and a controversy penalty. Unannotated content scores low.
func engagementQuality(item Item) float64 {
	if item.AnnotationCount == 0 {
		if item.HasSources {
			return 55.0
		}
		return 40.0
	}

	qualityRatio := float64(item.HelpfulVotes) / float64(item.AnnotationCount)

	sourceBoost := 0.0
	if item.HasSources {
		sourceBoost = 15.0
	}

	controversyPenalty := math.Min(30, float64(item.ControversialVotes)*2)

	return clamp100(qualityRatio*70 + sourceBoost - controversyPenalty)
}

// recency weights content age according to the intent's time preference.
func recency(createdAt time.Time, timePref string, now time.Time) float64 {
	if createdAt.IsZero() {
		return 50.0
	}

	ageHours := now.Sub(createdAt).Hours()
	yearDecay := math.Min(50, ageHours/(365*24)*50)

	switch timePref {
	case TimeRecent:
		switch {
		case ageHours < 24:
			return 100.0
		case ageHours < 168:
			return 80.0 - (ageHours / 168 * 20)
		default:
			return 40.0
		}
	case TimeHistorical:
		if ageHours > 30*24 {
			return 100.0 - yearDecay
		}
		return 50.0
	default:
		return 100.0 - yearDecay
	}
}

// standingSignal normalizes the author's reach multiplier onto 0-100.
func standingSignal(multiplier float64) float64 {
	return math.Min(100, multiplier*20)
}

// ComputeSignals derives all discovery signals for one item.
func ComputeSignals(item Item, intent Intent, now time.Time) Signals {
	return Signals{
		Relevance:         relevance(item, intent),
		Diversity:         diversity(item, intent),
		Originality:       item.OriginalityScore,
		EngagementQuality: engagementQuality(item),
		AuthorStanding:    standingSignal(item.AuthorStanding),
		Recency:           recency(item.CreatedAt, intent.TimePreference, now),
		Clarity:           item.ClarityScore,
	}
}
