package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/thrryv/engine/internal/standing"
)

func TestGetStandingFreshUser(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/users/u-new/standing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var signal standing.Signal
	if err := json.NewDecoder(rec.Body).Decode(&signal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signal.UserID != "u-new" {
		t.Errorf("user ID = %q, want u-new", signal.UserID)
	}
	// A brand new account is always emerging.
	if signal.Tier != standing.TierEmerging {
		t.Errorf("tier = %q, want emerging", signal.Tier)
	}
	if len(signal.Metrics) != 5 {
		t.Errorf("metrics = %d, want 5", len(signal.Metrics))
	}
	if signal.NextTier == nil {
		t.Error("emerging tier should report next tier requirements")
	}
}

func TestGetStandingReflectsActivity(t *testing.T) {
	stack := newTestStack(t)
	stack.createClaim(t, "u-active", "According to the annual report, recycling rates "+
		"improved in every district measured by the survey data collected last year.")

	rec := stack.do(t, http.MethodGet, "/users/u-active/standing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var signal standing.Signal
	if err := json.NewDecoder(rec.Body).Decode(&signal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signal.OverallScore <= 0 {
		t.Errorf("overall score = %v, want > 0", signal.OverallScore)
	}

	var quality float64
	for _, m := range signal.Metrics {
		if m.Name == standing.MetricContentQuality {
			quality = m.Value
		}
	}
	if quality <= 0 {
		t.Errorf("content quality = %v, want > 0 after posting a claim", quality)
	}
}

func TestGetProfile(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/users/u-new/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var profile standing.Profile
	if err := json.NewDecoder(rec.Body).Decode(&profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.StandingTier != standing.TierEmerging {
		t.Errorf("tier = %q, want emerging", profile.StandingTier)
	}
	if profile.TierDescription == "" {
		t.Error("profile missing tier description")
	}
	if len(profile.KeyMetrics) == 0 {
		t.Error("profile missing key metrics")
	}
}

func TestUserRoutesRejectUnknownSubresource(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/users/u-1/reputation", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
