package discovery

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmRelevance, false},
		{"relevance", AlgorithmRelevance, false},
		{"diversity", AlgorithmDiversity, false},
		{"emergent", AlgorithmEmergent, false},
		{"standing_aware", AlgorithmStandingAware, false},
		{"viral", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompositeWeightsPerVariant(t *testing.T) {
	s := Signals{
		Relevance:         90,
		Diversity:         60,
		Originality:       80,
		EngagementQuality: 70,
		AuthorStanding:    40,
		Recency:           100,
		Clarity:           50,
	}
	w := DefaultWeights()

	tests := []struct {
		alg  Algorithm
		want float64
	}{
		{AlgorithmRelevance, 90*0.5 + 70*0.2 + 50*0.15 + 80*0.1 + 100*0.05},
		{AlgorithmDiversity, 60*0.4 + 90*0.35 + 70*0.15 + 80*0.1},
		{AlgorithmEmergent, 80*0.4 + 100*0.25 + 90*0.2 + 50*0.15},
		{AlgorithmStandingAware, 90*0.35 + 40*0.3 + 70*0.2 + 80*0.1 + 60*0.05},
	}
	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			got := composite(s, w.variant(tt.alg))
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("composite = %v, want %v", got, tt.want)
			}
		})
	}
}

func fixedItems(now time.Time) []Item {
	return []Item{
		{
			ID: "c1", AuthorID: "a1", Text: "solar storage breakthrough announced",
			Domain: "energy", PerspectiveType: "mainstream",
			OriginalityScore: 60, ClarityScore: 70, AnnotationDiversity: 50,
			AnnotationCount: 10, HelpfulVotes: 8,
			AuthorStanding: 1.0, CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID: "c2", AuthorID: "a2", Text: "why solar subsidies are a mistake",
			Domain: "energy", PerspectiveType: "contrarian", HasSources: true,
			OriginalityScore: 85, ClarityScore: 60, AnnotationDiversity: 80,
			AnnotationCount: 4, HelpfulVotes: 3,
			AuthorStanding: 1.25, CreatedAt: now.Add(-48 * time.Hour),
		},
		{
			ID: "c3", AuthorID: "a3", Text: "gardening tips for spring",
			Domain: "lifestyle", PerspectiveType: "neutral",
			OriginalityScore: 50, ClarityScore: 50, AnnotationDiversity: 50,
			AuthorStanding: 0.8, CreatedAt: now.Add(-24 * 200 * time.Hour),
		},
	}
}

func TestRankOrdersByComposite(t *testing.T) {
	now := time.Now()
	intent := Intent{Keywords: []string{"solar"}, QueryAnalysis: "solar content"}

	results := Rank(fixedItems(now), intent, nil, Options{Algorithm: AlgorithmRelevance, Now: now})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].CompositeScore > results[i-1].CompositeScore {
			t.Errorf("results not in descending order at %d", i)
		}
	}
	// The off-topic item ranks last.
	if results[len(results)-1].ContentID != "c3" {
		t.Errorf("last = %q, want the off-topic item", results[len(results)-1].ContentID)
	}
	if results[0].MatchExplanation != "solar content" {
		t.Errorf("explanation = %q", results[0].MatchExplanation)
	}
}

func TestRankIsDeterministicAndStable(t *testing.T) {
	now := time.Now()
	// Identical items score identically; stable sort must preserve input order.
	items := []Item{
		{ID: "first", Text: "same text", AuthorStanding: 1, CreatedAt: now},
		{ID: "second", Text: "same text", AuthorStanding: 1, CreatedAt: now},
		{ID: "third", Text: "same text", AuthorStanding: 1, CreatedAt: now},
	}
	intent := Intent{Keywords: []string{"same"}}

	var prev []string
	for run := 0; run < 5; run++ {
		results := Rank(items, intent, nil, Options{Now: now})
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ContentID
		}
		if prev != nil && !reflect.DeepEqual(ids, prev) {
			t.Fatalf("run %d order %v differs from %v", run, ids, prev)
		}
		prev = ids
	}
	if !reflect.DeepEqual(prev, []string{"first", "second", "third"}) {
		t.Errorf("tied items reordered: %v", prev)
	}
}

func TestRankDoesNotMutateItems(t *testing.T) {
	now := time.Now()
	items := fixedItems(now)
	before := make([]Item, len(items))
	copy(before, items)

	Rank(items, Intent{Keywords: []string{"solar"}}, nil, Options{Algorithm: AlgorithmDiversity, Now: now})

	if !reflect.DeepEqual(items, before) {
		t.Error("ranking mutated its input items")
	}
}

func TestRankLimit(t *testing.T) {
	now := time.Now()
	items := make([]Item, 30)
	for i := range items {
		items[i] = Item{ID: string(rune('a' + i)), Text: "text", CreatedAt: now}
	}

	if got := len(Rank(items, Intent{}, nil, Options{Now: now})); got != DefaultLimit {
		t.Errorf("default limit = %d results, want %d", got, DefaultLimit)
	}
	if got := len(Rank(items, Intent{}, nil, Options{Limit: 5, Now: now})); got != 5 {
		t.Errorf("limit 5 = %d results", got)
	}
}

func TestStandingAwareAdjustment(t *testing.T) {
	now := time.Now()
	// Same content, different author standing: the stronger author must win
	// under standing_aware.
	items := []Item{
		{ID: "weak", Text: "identical claim", AuthorStanding: 0.8, CreatedAt: now},
		{ID: "strong", Text: "identical claim", AuthorStanding: 1.4, CreatedAt: now},
	}
	results := Rank(items, Intent{}, nil, Options{Algorithm: AlgorithmStandingAware, Now: now})
	if results[0].ContentID != "strong" {
		t.Errorf("top = %q, want the high-standing author", results[0].ContentID)
	}
}

func TestDiversityAdjustmentPenalizesOverrepresentation(t *testing.T) {
	now := time.Now()
	// Three mainstream items against one contrarian with otherwise equal
	// signals: the perspective penalty should lift the contrarian.
	items := []Item{
		{ID: "m1", Text: "claim", PerspectiveType: "mainstream", AnnotationDiversity: 50, CreatedAt: now},
		{ID: "m2", Text: "claim", PerspectiveType: "mainstream", AnnotationDiversity: 50, CreatedAt: now},
		{ID: "m3", Text: "claim", PerspectiveType: "mainstream", AnnotationDiversity: 50, CreatedAt: now},
		{ID: "alt", Text: "claim", PerspectiveType: "contrarian", AnnotationDiversity: 50, CreatedAt: now},
	}
	results := Rank(items, Intent{}, nil, Options{
		Algorithm:           AlgorithmDiversity,
		DiversityPreference: 1.0,
		Now:                 now,
	})
	if results[0].ContentID != "alt" {
		t.Errorf("top = %q, want the underrepresented perspective", results[0].ContentID)
	}
}

func TestEmergentAdjustmentBoostsNovelty(t *testing.T) {
	now := time.Now()
	items := []Item{
		{ID: "stale", Text: "claim", OriginalityScore: 20, ClarityScore: 50, CreatedAt: now},
		{ID: "novel", Text: "claim", OriginalityScore: 95, ClarityScore: 50, CreatedAt: now},
	}
	results := Rank(items, Intent{}, nil, Options{Algorithm: AlgorithmEmergent, Now: now})
	if results[0].ContentID != "novel" {
		t.Errorf("top = %q, want the novel item", results[0].ContentID)
	}
	if results[0].CompositeScore <= results[1].CompositeScore {
		t.Error("novelty boost did not separate the scores")
	}
}

func TestDiversityIndicators(t *testing.T) {
	item := Item{
		PerspectiveType:     "contrarian",
		HasSources:          true,
		AnnotationDiversity: 80,
	}
	got := diversityIndicators(item)
	want := []string{"contrarian_view", "evidence_based", "diverse_discussion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("indicators = %v, want %v", got, want)
	}

	if got := diversityIndicators(Item{PerspectiveType: "emerging"}); !reflect.DeepEqual(got, []string{"emerging_perspective"}) {
		t.Errorf("emerging indicators = %v", got)
	}
	if got := diversityIndicators(Item{PerspectiveType: "neutral"}); got != nil {
		t.Errorf("neutral indicators = %v, want none", got)
	}
}

func TestTitleTruncation(t *testing.T) {
	long := strings.Repeat("long claim text ", 20)
	results := Rank([]Item{{ID: "c1", Text: long}}, Intent{}, nil, Options{Now: time.Now()})
	if got := len([]rune(results[0].Title)); got != titleLength {
		t.Errorf("title length = %d, want %d", got, titleLength)
	}
}

func TestEngineDiscover(t *testing.T) {
	now := time.Now()
	engine := NewEngine(NewParserService(nil, nil), nil)

	results, intent := engine.Discover(context.Background(), "recent solar news", fixedItems(now), Options{Now: now})
	if intent.TimePreference != TimeRecent {
		t.Errorf("time = %q, want %q", intent.TimePreference, TimeRecent)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ContentID == "c3" {
		t.Error("off-topic item ranked first")
	}
}
