package discovery

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	variants := map[string]VariantWeights{
		"relevance":      w.Relevance,
		"diversity":      w.Diversity,
		"emergent":       w.Emergent,
		"standing_aware": w.StandingAware,
	}
	for name, vw := range variants {
		sum := vw.Relevance + vw.Diversity + vw.Originality + vw.Engagement +
			vw.Standing + vw.Recency + vw.Clarity
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s weights sum to %v, want 1.0", name, sum)
		}
	}
}

func TestLoadCalibrationEmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("LoadCalibration(\"\") error: %v", err)
	}
	if *w != *DefaultWeights() {
		t.Error("empty path should return defaults")
	}
}

func TestLoadCalibrationMissingFile(t *testing.T) {
	w, err := LoadCalibration(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if *w != *DefaultWeights() {
		t.Error("missing file should still return defaults")
	}
}

func TestLoadCalibrationMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadCalibration(path)
	if err == nil {
		t.Fatal("expected error for malformed file")
	}
	if *w != *DefaultWeights() {
		t.Error("malformed file should still return defaults")
	}
}

func TestLoadCalibrationPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	content := `{
		"version": "1",
		"weights": {
			"relevance": {"relevance": 0.6, "engagement": 0.1}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if w.Relevance.Relevance != 0.6 {
		t.Errorf("relevance.relevance = %v, want override 0.6", w.Relevance.Relevance)
	}
	if w.Relevance.Engagement != 0.1 {
		t.Errorf("relevance.engagement = %v, want override 0.1", w.Relevance.Engagement)
	}
	// Untouched fields keep their defaults.
	if w.Relevance.Clarity != 0.15 {
		t.Errorf("relevance.clarity = %v, want default 0.15", w.Relevance.Clarity)
	}
	if w.Diversity != DefaultWeights().Diversity {
		t.Error("diversity variant should be untouched")
	}
}

func TestMergeCalibrationNilHandling(t *testing.T) {
	defaults := DefaultWeights()

	if got := MergeCalibration(nil, nil); *got != *defaults {
		t.Error("nil base should fall back to defaults")
	}
	if got := MergeCalibration(defaults, nil); *got != *defaults {
		t.Error("nil override should copy the base")
	}
}
