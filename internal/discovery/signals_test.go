package discovery

import (
	"math"
	"testing"
	"time"
)

func TestRelevanceKeywordMatching(t *testing.T) {
	intent := Intent{Keywords: []string{"solar", "storage"}}
	item := Item{Text: "Grid-scale solar with battery storage is now cheaper than gas peakers"}

	// Both keywords match: keyword 100*0.4, domain default 70*0.35, entity default 50*0.25.
	want := 100*0.4 + 70*0.35 + 50*0.25
	if got := relevance(item, intent); math.Abs(got-want) > 1e-6 {
		t.Errorf("relevance = %v, want %v", got, want)
	}
}

func TestRelevanceDomainMatch(t *testing.T) {
	intent := Intent{Domains: []string{"energy"}}

	match := Item{Text: "x", Domain: "energy"}
	miss := Item{Text: "x", Domain: "health"}

	wantMatch := 0*0.4 + 100*0.35 + 50*0.25
	wantMiss := 0*0.4 + 40*0.35 + 50*0.25
	if got := relevance(match, intent); math.Abs(got-wantMatch) > 1e-6 {
		t.Errorf("matching domain = %v, want %v", got, wantMatch)
	}
	if got := relevance(miss, intent); math.Abs(got-wantMiss) > 1e-6 {
		t.Errorf("missing domain = %v, want %v", got, wantMiss)
	}
}

func TestRelevanceEntityMatch(t *testing.T) {
	intent := Intent{KeyEntities: []string{"tokamak", "iter"}}
	item := Item{Text: "The ITER tokamak achieved first plasma"}

	// Entity matching is against whole words of the lowercased text.
	want := 0*0.4 + 70*0.35 + 100*0.25
	if got := relevance(item, intent); math.Abs(got-want) > 1e-6 {
		t.Errorf("relevance = %v, want %v", got, want)
	}
}

func TestDiversityScore(t *testing.T) {
	tests := []struct {
		name   string
		item   Item
		intent Intent
		want   float64
	}{
		{
			"neutral baseline",
			Item{PerspectiveType: "neutral", AnnotationDiversity: 50},
			Intent{},
			50*0.6 + 50*0.4,
		},
		{
			"diverse request boosts non-mainstream",
			Item{PerspectiveType: "contrarian", AnnotationDiversity: 50},
			Intent{Perspectives: []string{PerspectiveDiverse}},
			80*0.6 + 50*0.4,
		},
		{
			"diverse request skips mainstream",
			Item{PerspectiveType: "mainstream", AnnotationDiversity: 50},
			Intent{Perspectives: []string{PerspectiveDiverse}},
			50*0.6 + 50*0.4,
		},
		{
			"expert request rewards sources",
			Item{PerspectiveType: "contrarian", HasSources: true, AnnotationDiversity: 60},
			Intent{Perspectives: []string{PerspectiveDiverse, PerspectiveExpert}},
			100*0.6 + 60*0.4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diversity(tt.item, tt.intent); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("diversity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngagementQuality(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want float64
	}{
		{"unannotated without sources", Item{}, 40},
		{"unannotated with sources", Item{HasSources: true}, 55},
		{"healthy discussion", Item{AnnotationCount: 10, HelpfulVotes: 8}, 0.8 * 70},
		{"sources add fifteen", Item{AnnotationCount: 10, HelpfulVotes: 8, HasSources: true}, 0.8*70 + 15},
		{"controversy penalty", Item{AnnotationCount: 10, HelpfulVotes: 8, ControversialVotes: 5}, 0.8*70 - 10},
		{"penalty caps at thirty", Item{AnnotationCount: 10, HelpfulVotes: 10, ControversialVotes: 50}, 70 - 30},
		{"caps at one hundred", Item{AnnotationCount: 2, HelpfulVotes: 10, HasSources: true}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engagementQuality(tt.item); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("engagement = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecency(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	hoursAgo := func(h float64) time.Time {
		return now.Add(-time.Duration(h * float64(time.Hour)))
	}

	tests := []struct {
		name     string
		created  time.Time
		timePref string
		want     float64
	}{
		{"missing timestamp", time.Time{}, TimeRecent, 50},
		{"recent fresh", hoursAgo(2), TimeRecent, 100},
		{"recent mid-week", hoursAgo(84), TimeRecent, 80 - (84.0 / 168 * 20)},
		{"recent stale", hoursAgo(1000), TimeRecent, 40},
		{"historical young", hoursAgo(100), TimeHistorical, 50},
		{"historical aged", hoursAgo(365 * 24), TimeHistorical, 100 - 50},
		{"anytime fresh", hoursAgo(0), TimeAnytime, 100},
		{"anytime half year", hoursAgo(182.5 * 24), TimeAnytime, 100 - 25},
		{"anytime decay floors", hoursAgo(10 * 365 * 24), TimeAnytime, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recency(tt.created, tt.timePref, now)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("recency = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStandingSignal(t *testing.T) {
	tests := []struct {
		multiplier float64
		want       float64
	}{
		{0.8, 16},
		{1.0, 20},
		{1.4, 28},
		{6.0, 100}, // capped
	}
	for _, tt := range tests {
		if got := standingSignal(tt.multiplier); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("standingSignal(%v) = %v, want %v", tt.multiplier, got, tt.want)
		}
	}
}

func TestComputeSignalsCarriesStoredScores(t *testing.T) {
	now := time.Now()
	item := Item{
		ID:               "c1",
		Text:             "some claim",
		OriginalityScore: 83,
		ClarityScore:     64,
		AuthorStanding:   1.1,
		CreatedAt:        now.Add(-time.Hour),
	}
	s := ComputeSignals(item, Intent{}, now)
	if s.Originality != 83 {
		t.Errorf("originality = %v, want stored 83", s.Originality)
	}
	if s.Clarity != 64 {
		t.Errorf("clarity = %v, want stored 64", s.Clarity)
	}
	if math.Abs(s.AuthorStanding-22) > 1e-6 {
		t.Errorf("standing = %v, want 22", s.AuthorStanding)
	}
}
