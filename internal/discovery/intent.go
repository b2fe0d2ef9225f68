// Package discovery ranks content against a free-text query. A query is
// first parsed into structured intent, then every candidate item is scored
// on a set of signals and combined under one of four algorithm variants.
//
// Ranking is read-only: it never mutates the items it ranks.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thrryv/engine/internal/capability"
)

// Time preferences.
const (
	TimeRecent     = "recent"
	TimeHistorical = "historical"
	TimeAnytime    = "anytime"
)

// Depth preferences.
const (
	DepthSurface = "surface"
	DepthMedium  = "medium"
	DepthDeep    = "deep"
)

// Perspective preferences.
const (
	PerspectiveDiverse    = "diverse"
	PerspectiveMainstream = "mainstream"
	PerspectiveCritical   = "critical"
	PerspectiveExpert     = "expert"
)

// Intent is the structured form of a free-text discovery query.
type Intent struct {
	CoreTopic      string   `json:"core_topic"`
	TimePreference string   `json:"time_preference"`
	Perspectives   []string `json:"perspective_preference"`
	Depth          string   `json:"depth_preference"`
	Domains        []string `json:"related_domains"`
	KeyEntities    []string `json:"key_entities"`
	Keywords       []string `json:"keywords"`
	QueryAnalysis  string   `json:"query_analysis"`
}

// HasPerspective reports whether the intent requests the given perspective.
func (i Intent) HasPerspective(p string) bool {
	for _, pref := range i.Perspectives {
		if pref == p {
			return true
		}
	}
	return false
}

// IntentParser converts a query into structured intent.
type IntentParser interface {
	Parse(ctx context.Context, query string) (Intent, error)
}

// Keyword lists for the fallback parser.
var (
	recentWords     = []string{"recent", "lately", "today", "this week", "new"}
	historicalWords = []string{"historical", "history", "past", "old", "ancient", "during"}
	diverseWords    = []string{"different", "diverse", "other", "various", "perspectives", "viewpoints"}
	mainstreamWords = []string{"mainstream", "popular", "common", "consensus"}
	criticalWords   = []string{"critical", "against", "opposition", "disagree"}
	expertWords     = []string{"expert", "research", "study", "scientific", "evidence"}
	surfaceWords    = []string{"briefly", "quick", "simple", "basics", "overview"}
	deepWords       = []string{"deep", "detail", "comprehensive", "thorough", "explain"}
)

func containsAny(haystack string, words []string) bool {
	for _, w := range words {
		if strings.Contains(haystack, w) {
			return true
		}
	}
	return false
}

// FallbackParser derives intent from keyword patterns. It never fails and
// defaults perspective preference to [diverse, mainstream].
type FallbackParser struct{}

// NewFallbackParser creates a fallback parser.
func NewFallbackParser() *FallbackParser {
	return &FallbackParser{}
}

// Parse analyzes the query with keyword matching. The returned error is
// always nil.
func (f *FallbackParser) Parse(_ context.Context, query string) (Intent, error) {
	lower := strings.ToLower(query)

	timePref := TimeAnytime
	if containsAny(lower, recentWords) {
		timePref = TimeRecent
	} else if containsAny(lower, historicalWords) {
		timePref = TimeHistorical
	}

	var perspectives []string
	if containsAny(lower, diverseWords) {
		perspectives = append(perspectives, PerspectiveDiverse)
	}
	if containsAny(lower, mainstreamWords) {
		perspectives = append(perspectives, PerspectiveMainstream)
	}
	if containsAny(lower, criticalWords) {
		perspectives = append(perspectives, PerspectiveCritical)
	}
	if containsAny(lower, expertWords) {
		perspectives = append(perspectives, PerspectiveExpert)
	}
	if len(perspectives) == 0 {
		perspectives = []string{PerspectiveDiverse, PerspectiveMainstream}
	}

	depth := DepthMedium
	if containsAny(lower, surfaceWords) {
		depth = DepthSurface
	} else if containsAny(lower, deepWords) {
		depth = DepthDeep
	}

	return Intent{
		CoreTopic:      query,
		TimePreference: timePref,
		Perspectives:   perspectives,
		Depth:          depth,
		Domains:        []string{},
		KeyEntities:    []string{},
		Keywords:       strings.Fields(query),
		QueryAnalysis:  "Analyzed with fallback keyword matching",
	}, nil
}

const intentSystemPrompt = `You are an expert query analyzer for a content discovery engine.
Analyze user queries to extract:
1. Core topic/question they're asking about
2. Time preferences (recent/historical/anytime)
3. Perspective preferences (diverse/mainstream/critical/expert)
4. Depth preferences (surface/medium/deep)
5. Related domains or contexts
6. Key entities or keywords

Respond in JSON format:
{
  "core_topic": "main topic",
  "time_preference": "recent|historical|anytime",
  "perspective_preference": ["diverse", "mainstream", "critical", "expert"],
  "depth_preference": "surface|medium|deep",
  "related_domains": ["domain1", "domain2"],
  "key_entities": ["entity1", "entity2"],
  "keywords": ["keyword1", "keyword2"],
  "query_analysis": "brief explanation of what user is looking for"
}`

// CapabilityParser parses intent through the external capability.
type CapabilityParser struct {
	completer capability.Completer
}

// NewCapabilityParser creates a capability-backed intent parser.
func NewCapabilityParser(completer capability.Completer) *CapabilityParser {
	return &CapabilityParser{completer: completer}
}

// Parse asks the capability for structured intent. Failures are returned to
// the caller; the ParserService handles the fallback.
func (p *CapabilityParser) Parse(ctx context.Context, query string) (Intent, error) {
	raw, err := p.completer.Complete(ctx, intentSystemPrompt, "Query: "+query)
	if err != nil {
		return Intent{}, fmt.Errorf("intent parsing: %w", err)
	}

	var intent Intent
	if err := capability.ParsePayload(raw, &intent); err != nil {
		return Intent{}, fmt.Errorf("intent parsing: %w", err)
	}
	return intent, nil
}

// ParserService combines a primary parser with the keyword fallback.
// Parse is total.
type ParserService struct {
	primary  IntentParser
	fallback *FallbackParser
	metrics  *capability.Metrics
}

// NewParserService creates a parser service. primary may be nil, in which
// case every parse uses the fallback. metrics may be nil.
func NewParserService(primary IntentParser, metrics *capability.Metrics) *ParserService {
	return &ParserService{
		primary:  primary,
		fallback: NewFallbackParser(),
		metrics:  metrics,
	}
}

// Parse converts the query into intent, degrading to the keyword fallback
// on any primary failure.
func (s *ParserService) Parse(ctx context.Context, query string) Intent {
	if s.primary != nil {
		intent, err := s.primary.Parse(ctx, query)
		if err == nil {
			return intent
		}
		slog.Warn("intent parsing failed, falling back to keyword matching", "error", err)
		if s.metrics != nil {
			s.metrics.IncFallback("intent")
		}
	}
	intent, _ := s.fallback.Parse(ctx, query)
	return intent
}
