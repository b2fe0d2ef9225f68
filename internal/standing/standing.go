// Package standing derives user standing signals from contribution history.
//
// Standing is not a ranking: it is a descriptive tier plus a transparent set
// of weighted metrics reflecting consistency, effort, and contribution
// quality over time.
package standing

import (
	"math"
	"time"
)

// Tier is a descriptive standing level, not a position against other users.
type Tier string

// Standing tiers from newest to most established.
const (
	TierEmerging    Tier = "emerging"
	TierConsistent  Tier = "consistent"
	TierEstablished Tier = "established"
	TierExpert      Tier = "expert"
	TierTrusted     Tier = "trusted"
)

// Metric weights; they sum to 1.
const (
	WeightContentQuality        = 0.35
	WeightEngagementConsistency = 0.25
	WeightOriginality           = 0.15
	WeightCommunityFeedback     = 0.15
	WeightTenure                = 0.10
)

// Metric names.
const (
	MetricContentQuality        = "Content Quality"
	MetricEngagementConsistency = "Engagement Consistency"
	MetricOriginality           = "Originality"
	MetricCommunityFeedback     = "Community Feedback"
	MetricTenure                = "Tenure"
)

// Trend values.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// emergingAgeDays is the account age below which the tier is always emerging.
const emergingAgeDays = 7

// Metric is one weighted standing component.
type Metric struct {
	Name         string  `json:"name"`
	Value        float64 `json:"current_value"`
	Weight       float64 `json:"weight"`
	Trend        string  `json:"trend"`
	Contribution float64 `json:"contribution"`
}

// NextTier describes what it takes to reach the next tier.
type NextTier struct {
	Tier          Tier     `json:"next_tier"`
	ScoreNeeded   float64  `json:"score_needed"`
	CurrentScore  float64  `json:"current_score"`
	FocusAreas    []string `json:"focus_areas"`
	EstimateWeeks int      `json:"estimate_weeks"`
}

// Signal is the complete standing assessment for a user.
type Signal struct {
	UserID       string    `json:"user_id"`
	Tier         Tier      `json:"tier"`
	OverallScore float64   `json:"overall_score"`
	Metrics      []Metric  `json:"metrics"`
	TenureMonths int       `json:"tenure_months"`
	NextTier     *NextTier `json:"next_tier_requirements,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Input carries everything standing computation needs.
type Input struct {
	UserID           string
	AccountCreatedAt time.Time
	ClaimsPosted     int
	AnnotationsAdded int
	HelpfulVotes     int
	UnhelpfulVotes   int
	OriginalClaims   int
	// AvgContentQuality is the mean baseline axis average across the
	// user's claims, on the 0-100 scale.
	AvgContentQuality float64
	// Trends maps metric keys ("quality", "engagement", "feedback") to a
	// signed trend value; |v| <= 0.1 reads as stable. Optional.
	Trends map[string]float64
	// Now anchors age computations; zero means time.Now().
	Now time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

func (in Input) ageDays() int {
	return int(in.now().Sub(in.AccountCreatedAt).Hours() / 24)
}

// contentQuality converts average content quality with a slight lift.
func contentQuality(avg float64) float64 {
	return math.Min(100, math.Max(0, avg*1.2))
}

// engagementConsistency scores participation volume and the balance between
// claims and annotations.
func engagementConsistency(claims, annotations int) float64 {
	total := claims + annotations
	if total == 0 {
		return 30.0
	}

	score := 0.0
	switch {
	case total >= 50:
		score += 40
	case total >= 20:
		score += 30
	case total >= 10:
		score += 20
	case total >= 5:
		score += 15
	default:
		score += 5
	}

	if claims > 0 && annotations > 0 {
		score += 30
		ratio := float64(min(claims, annotations)) / float64(max(claims, annotations))
		score += ratio * 20
	} else if annotations > 0 {
		score += 15
	}

	return math.Min(100, score)
}

// originalityIndex scores the share of the user's claims that earned an
// originality boost.
func originalityIndex(originalClaims, totalClaims int) float64 {
	if totalClaims == 0 {
		return 50.0
	}

	ratio := float64(originalClaims) / float64(totalClaims)
	score := ratio * 80
	if ratio > 0.8 {
		score += 15
	} else if ratio > 0.6 {
		score += 10
	}
	return math.Min(100, score)
}

// communityFeedback scores the helpful-vote ratio with an engagement bonus.
func communityFeedback(helpful, unhelpful, annotations int) float64 {
	if annotations == 0 {
		return 50.0
	}
	total := helpful + unhelpful
	if total == 0 {
		return 50.0
	}

	score := float64(helpful) / float64(total) * 100
	if total >= 50 {
		score = math.Min(100, score+10)
	} else if total >= 20 {
		score = math.Min(100, score+5)
	}
	return score
}

// tenureFactor bands account age into a 0-100 score.
func tenureFactor(ageDays int) float64 {
	switch {
	case ageDays < 7:
		return 20
	case ageDays < 30:
		return 30
	case ageDays < 90:
		return 50
	case ageDays < 180:
		return 70
	case ageDays < 365:
		return 85
	default:
		return 95 + math.Min(5, float64(ageDays)/365)
	}
}

// trend interprets an optional signed trend value.
func trend(trends map[string]float64, key string) string {
	v, ok := trends[key]
	if !ok {
		return TrendStable
	}
	switch {
	case v > 0.1:
		return TrendImproving
	case v < -0.1:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// determineTier maps an overall score and account age to a tier. Accounts
// younger than 7 days are always emerging.
func determineTier(score float64, ageDays int) Tier {
	if ageDays < emergingAgeDays {
		return TierEmerging
	}
	switch {
	case score >= 85 && ageDays >= 365:
		return TierTrusted
	case score >= 85:
		return TierExpert
	case score >= 70:
		return TierEstablished
	case score >= 50:
		return TierConsistent
	default:
		return TierEmerging
	}
}

// nextTierThresholds holds the score needed to reach the tier after the key.
var nextTierThresholds = map[Tier]struct {
	next      Tier
	threshold float64
}{
	TierEmerging:    {TierConsistent, 50},
	TierConsistent:  {TierEstablished, 70},
	TierEstablished: {TierExpert, 80},
	TierExpert:      {TierTrusted, 90},
}

// nextTierRequirements reports the gap to the next tier, or nil at the top.
func nextTierRequirements(current Tier, score float64, metrics []Metric) *NextTier {
	step, ok := nextTierThresholds[current]
	if !ok {
		return nil
	}

	gap := step.threshold - score

	var focus []string
	for _, m := range metrics {
		if m.Value < 70 {
			focus = append(focus, m.Name)
		}
	}

	weeks := 0
	if gap > 0 {
		weeks = int(gap / 10)
		if weeks < 1 {
			weeks = 1
		}
	}

	return &NextTier{
		Tier:          step.next,
		ScoreNeeded:   math.Max(0, gap),
		CurrentScore:  score,
		FocusAreas:    focus,
		EstimateWeeks: weeks,
	}
}

// Compute derives the full standing signal from the input.
func Compute(in Input) Signal {
	ageDays := in.ageDays()

	quality := contentQuality(in.AvgContentQuality)
	engagement := engagementConsistency(in.ClaimsPosted, in.AnnotationsAdded)
	orig := originalityIndex(in.OriginalClaims, in.ClaimsPosted)
	feedback := communityFeedback(in.HelpfulVotes, in.UnhelpfulVotes, in.AnnotationsAdded)
	tenure := tenureFactor(ageDays)

	metrics := []Metric{
		{MetricContentQuality, quality, WeightContentQuality, trend(in.Trends, "quality"), quality * WeightContentQuality},
		{MetricEngagementConsistency, engagement, WeightEngagementConsistency, trend(in.Trends, "engagement"), engagement * WeightEngagementConsistency},
		{MetricOriginality, orig, WeightOriginality, TrendStable, orig * WeightOriginality},
		{MetricCommunityFeedback, feedback, WeightCommunityFeedback, trend(in.Trends, "feedback"), feedback * WeightCommunityFeedback},
		{MetricTenure, tenure, WeightTenure, TrendStable, tenure * WeightTenure},
	}

	overall := 0.0
	for _, m := range metrics {
		overall += m.Contribution
	}

	tier := determineTier(overall, ageDays)

	tenureMonths := ageDays / 30
	if tenureMonths < 0 {
		tenureMonths = 0
	}

	return Signal{
		UserID:       in.UserID,
		Tier:         tier,
		OverallScore: overall,
		Metrics:      metrics,
		TenureMonths: tenureMonths,
		NextTier:     nextTierRequirements(tier, overall, metrics),
		LastUpdated:  in.now(),
	}
}

// tierMultipliers for soft reach weighting.
var tierMultipliers = map[Tier]float64{
	TierEmerging:    0.8,
	TierConsistent:  0.95,
	TierEstablished: 1.1,
	TierExpert:      1.25,
	TierTrusted:     1.4,
}

// ReachMultiplier converts a signal into the soft content-reach multiplier.
// It is probabilistic weighting, never a hard rank.
func ReachMultiplier(s Signal) float64 {
	base, ok := tierMultipliers[s.Tier]
	if !ok {
		base = 1.0
	}
	return base + (s.OverallScore/100)*0.2
}
