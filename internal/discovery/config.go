package discovery

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// VariantWeights defines how one algorithm variant combines the signals.
// Unused signals carry a zero weight.
type VariantWeights struct {
	Relevance   float64 `json:"relevance"`
	Diversity   float64 `json:"diversity"`
	Originality float64 `json:"originality"`
	Engagement  float64 `json:"engagement"`
	Standing    float64 `json:"standing"`
	Recency     float64 `json:"recency"`
	Clarity     float64 `json:"clarity"`
}

// Weights holds the signal weights for every algorithm variant.
type Weights struct {
	Relevance     VariantWeights `json:"relevance"`
	Diversity     VariantWeights `json:"diversity"`
	Emergent      VariantWeights `json:"emergent"`
	StandingAware VariantWeights `json:"standing_aware"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default discovery weight configuration.
//
// relevance:      relevance 0.5 + engagement 0.2 + clarity 0.15 + originality 0.1 + recency 0.05
// diversity:      diversity 0.4 + relevance 0.35 + engagement 0.15 + originality 0.1
// emergent:       originality 0.4 + recency 0.25 + relevance 0.2 + clarity 0.15
// standing_aware: relevance 0.35 + standing 0.3 + engagement 0.2 + originality 0.1 + diversity 0.05
func DefaultWeights() *Weights {
	return &Weights{
		Relevance: VariantWeights{
			Relevance:   0.5,
			Engagement:  0.2,
			Clarity:     0.15,
			Originality: 0.1,
			Recency:     0.05,
		},
		Diversity: VariantWeights{
			Diversity:   0.4,
			Relevance:   0.35,
			Engagement:  0.15,
			Originality: 0.1,
		},
		Emergent: VariantWeights{
			Originality: 0.4,
			Recency:     0.25,
			Relevance:   0.2,
			Clarity:     0.15,
		},
		StandingAware: VariantWeights{
			Relevance:   0.35,
			Standing:    0.3,
			Engagement:  0.2,
			Originality: 0.1,
			Diversity:   0.05,
		},
	}
}

// LoadCalibration loads discovery weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation;
// on any error the defaults are returned alongside the error.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with default weights. Only
// non-zero values from the override are applied, so the calibration file can
// stay partial.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	result.Relevance = mergeVariant(base.Relevance, override.Relevance)
	result.Diversity = mergeVariant(base.Diversity, override.Diversity)
	result.Emergent = mergeVariant(base.Emergent, override.Emergent)
	result.StandingAware = mergeVariant(base.StandingAware, override.StandingAware)
	return &result
}

func mergeVariant(base, override VariantWeights) VariantWeights {
	result := base
	if override.Relevance != 0 {
		result.Relevance = override.Relevance
	}
	if override.Diversity != 0 {
		result.Diversity = override.Diversity
	}
	if override.Originality != 0 {
		result.Originality = override.Originality
	}
	if override.Engagement != 0 {
		result.Engagement = override.Engagement
	}
	if override.Standing != 0 {
		result.Standing = override.Standing
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.Clarity != 0 {
		result.Clarity = override.Clarity
	}
	return result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string
	overrides = append(overrides, variantOverrides("relevance", defaults.Relevance, loaded.Relevance)...)
	overrides = append(overrides, variantOverrides("diversity", defaults.Diversity, loaded.Diversity)...)
	overrides = append(overrides, variantOverrides("emergent", defaults.Emergent, loaded.Emergent)...)
	overrides = append(overrides, variantOverrides("standing_aware", defaults.StandingAware, loaded.StandingAware)...)

	if len(overrides) > 0 {
		slog.Info("loaded discovery calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded discovery calibration (using all defaults)")
	}
}

func variantOverrides(prefix string, defaults, loaded VariantWeights) []string {
	var overrides []string
	diff := func(name string, d, l float64) {
		if l != d {
			overrides = append(overrides, fmt.Sprintf("%s.%s: %.2f -> %.2f", prefix, name, d, l))
		}
	}
	diff("relevance", defaults.Relevance, loaded.Relevance)
	diff("diversity", defaults.Diversity, loaded.Diversity)
	diff("originality", defaults.Originality, loaded.Originality)
	diff("engagement", defaults.Engagement, loaded.Engagement)
	diff("standing", defaults.Standing, loaded.Standing)
	diff("recency", defaults.Recency, loaded.Recency)
	diff("clarity", defaults.Clarity, loaded.Clarity)
	return overrides
}
