package standing

import (
	"math"
	"sort"
)

// tierDescriptions for public profile display.
var tierDescriptions = map[Tier]string{
	TierEmerging:    "New contributor - building their track record",
	TierConsistent:  "Regular contributor with consistent participation",
	TierEstablished: "Proven contributor with established track record",
	TierExpert:      "Highly respected for quality contributions",
	TierTrusted:     "Long-term trusted member of community",
}

// ProfileMetric is one metric as shown on a profile.
type ProfileMetric struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Trend string  `json:"trend"`
}

// Profile is the public, user-friendly rendering of a standing signal.
type Profile struct {
	StandingTier    Tier            `json:"standing_tier"`
	TierDescription string          `json:"tier_description"`
	OverallScore    float64         `json:"overall_score"`
	TenureMonths    int             `json:"tenure_months"`
	StrengthAreas   []string        `json:"strength_areas"`
	GrowthAreas     []string        `json:"growth_areas"`
	KeyMetrics      []ProfileMetric `json:"key_metrics"`
	NextMilestone   *NextTier       `json:"next_milestone,omitempty"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// FormatProfile renders a signal for profile display: top contributing
// metrics first, strengths at >= 70, growth areas below 60.
func FormatProfile(s Signal) Profile {
	sorted := append([]Metric(nil), s.Metrics...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Contribution > sorted[j].Contribution
	})

	var strengths []string
	for _, m := range sorted[:min(2, len(sorted))] {
		if m.Value >= 70 {
			strengths = append(strengths, m.Name)
		}
	}

	var growth []string
	for _, m := range sorted {
		if m.Value < 60 {
			growth = append(growth, m.Name)
		}
	}

	key := make([]ProfileMetric, 0, 3)
	for _, m := range sorted[:min(3, len(sorted))] {
		key = append(key, ProfileMetric{Name: m.Name, Score: round1(m.Value), Trend: m.Trend})
	}

	return Profile{
		StandingTier:    s.Tier,
		TierDescription: tierDescriptions[s.Tier],
		OverallScore:    round1(s.OverallScore),
		TenureMonths:    s.TenureMonths,
		StrengthAreas:   strengths,
		GrowthAreas:     growth,
		KeyMetrics:      key,
		NextMilestone:   s.NextTier,
	}
}
