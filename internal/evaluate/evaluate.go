// Package evaluate scores raw content on five quality axes and converts the
// result into a bounded one-time reputation boost.
//
// Scoring is total: the semantic path may fail or be unconfigured, but
// Service.Evaluate always returns a usable result by degrading to the
// deterministic heuristic.
package evaluate

import (
	"context"
	"fmt"
	"math"
)

// Boost constants. A boost is awarded only when the axis average clears
// the threshold, and is always within [MinBoost, MaxBoost].
const (
	MinBoost       = 5.0
	MaxBoost       = 15.0
	BoostThreshold = 50.0
)

// Input is the content to evaluate.
type Input struct {
	Text   string
	Domain string
	// MediaTypes holds the MIME types of attached media. When non-empty, a
	// media value axis participates in the average at equal weight.
	MediaTypes []string
}

// Axes holds the five 0-100 quality axis scores plus the optional media axis.
type Axes struct {
	Clarity          float64
	Originality      float64
	Relevance        float64
	Effort           float64
	EvidentiaryValue float64
	MediaValue       *float64
	Summary          string
}

// Average returns the mean of the axes, including the media axis at equal
// weight when present.
func (a Axes) Average() float64 {
	sum := a.Clarity + a.Originality + a.Relevance + a.Effort + a.EvidentiaryValue
	n := 5.0
	if a.MediaValue != nil {
		sum += *a.MediaValue
		n++
	}
	return sum / n
}

// Result is the complete evaluation outcome.
type Result struct {
	Axes
	AvgScore  float64
	Boost     float64
	Qualifies bool
}

// Evaluator scores content on the five quality axes.
type Evaluator interface {
	Evaluate(ctx context.Context, in Input) (Axes, error)
}

// ComputeBoost converts an axis average into a reputation boost.
// Below the threshold the boost is 0; at and above it the boost scales
// linearly from MinBoost to MaxBoost, rounded to 2 decimals.
func ComputeBoost(avgScore float64) (float64, bool) {
	if avgScore < BoostThreshold {
		return 0, false
	}
	normalized := (avgScore - BoostThreshold) / (100 - BoostThreshold)
	boost := MinBoost + normalized*(MaxBoost-MinBoost)
	boost = math.Min(math.Max(boost, MinBoost), MaxBoost)
	return math.Round(boost*100) / 100, true
}

// Summary produces the human-readable evaluation summary.
func Summary(qualifies bool, boost, avgScore float64, axisSummary string, mediaScore *float64) string {
	if !qualifies {
		return fmt.Sprintf("Content evaluated (avg score: %.1f/100). No baseline boost applied - content meets platform standards but doesn't exceed value threshold for reputation reward.", avgScore)
	}

	boostLevel := "modest"
	switch {
	case boost >= 12:
		boostLevel = "excellent"
	case boost >= 8:
		boostLevel = "good"
	}

	mediaNote := ""
	if mediaScore != nil {
		mediaQuality := "limited"
		switch {
		case *mediaScore >= 70:
			mediaQuality = "high"
		case *mediaScore >= 40:
			mediaQuality = "moderate"
		}
		mediaNote = fmt.Sprintf(" Media provides %s informational value.", mediaQuality)
	}

	caser := boostLevel[:1]
	capitalized := string(caser[0]-'a'+'A') + boostLevel[1:]
	return fmt.Sprintf("Content adds clear value to the platform. %s baseline reputation boost of +%.1f awarded.%s %s", capitalized, boost, mediaNote, axisSummary)
}
