package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/standing"
	"github.com/thrryv/engine/internal/validate"
)

// stanceCount is the number of distinct stance values an annotation can take.
const stanceCount = 3

// DiscoveryHandlers holds dependencies for the discovery endpoint.
type DiscoveryHandlers struct {
	repo     claim.Repository
	standing *standing.Service
	engine   *discovery.Engine
}

// NewDiscoveryHandlers creates a new DiscoveryHandlers instance.
func NewDiscoveryHandlers(repo claim.Repository, standingSvc *standing.Service, engine *discovery.Engine) *DiscoveryHandlers {
	return &DiscoveryHandlers{
		repo:     repo,
		standing: standingSvc,
		engine:   engine,
	}
}

// DiscoveryResponse is the ranked result set for a discovery query.
type DiscoveryResponse struct {
	Query   string             `json:"query"`
	Intent  discovery.Intent   `json:"intent"`
	Results []discovery.Result `json:"results"`
	Count   int                `json:"count"`
}

// annotationDiversity scores how many distinct stances a claim's annotation
// set covers, neutral when there are no annotations yet.
func annotationDiversity(annotations []*claim.Annotation) float64 {
	if len(annotations) == 0 {
		return discovery.NeutralDiversity
	}
	stances := make(map[claim.Stance]struct{})
	for _, a := range annotations {
		stances[a.Stance] = struct{}{}
	}
	return float64(len(stances)) / stanceCount * 100
}

// buildItems converts stored claims into discovery candidates, enriching each
// with annotation-derived engagement counters and the author's reach
// multiplier. Standing lookups are cached per request per author.
func (h *DiscoveryHandlers) buildItems(claims []*claim.Claim) ([]discovery.Item, error) {
	standingCache := make(map[string]float64)

	items := make([]discovery.Item, 0, len(claims))
	for _, c := range claims {
		annotations, err := h.repo.ListAnnotationsByClaim(c.ID)
		if err != nil {
			return nil, err
		}

		var helpful, controversial int
		for _, a := range annotations {
			switch {
			case a.HelpfulVotes > a.NotHelpfulVotes:
				helpful++
			case a.NotHelpfulVotes > a.HelpfulVotes:
				controversial++
			}
		}

		reach, ok := standingCache[c.AuthorID]
		if !ok {
			signal, err := h.standing.Standing(c.AuthorID)
			if err != nil {
				// Standing is an enrichment signal; degrade to neutral reach.
				slog.Warn("standing lookup failed, using neutral reach", "user_id", c.AuthorID, "error", err)
				reach = 1.0
			} else {
				reach = standing.ReachMultiplier(signal)
			}
			standingCache[c.AuthorID] = reach
		}

		originalityScore := discovery.NeutralOriginality
		if c.OriginalityScore != nil {
			originalityScore = *c.OriginalityScore
		}

		items = append(items, discovery.Item{
			ID:                  c.ID,
			AuthorID:            c.AuthorID,
			Text:                c.Text,
			Domain:              c.Domain,
			PerspectiveType:     c.PerspectiveType,
			HasSources:          c.HasSources(),
			OriginalityScore:    originalityScore,
			ClarityScore:        c.Baseline.Clarity,
			AnnotationCount:     len(annotations),
			HelpfulVotes:        helpful,
			ControversialVotes:  controversial,
			AnnotationDiversity: annotationDiversity(annotations),
			AuthorStanding:      reach,
			CreatedAt:           c.CreatedAt,
		})
	}
	return items, nil
}

// Discover handles GET /discovery - parses the natural language query and
// returns ranked content.
//
// Query parameters:
//   - q: the discovery query (required)
//   - algorithm: relevance (default), diversity, emergent, standing_aware
//   - limit: maximum results (default 20)
//   - diversity_preference: 0-1 scale for the overrepresentation penalty
func (h *DiscoveryHandlers) Discover(w http.ResponseWriter, r *http.Request) {
	query, err := validate.DiscoveryQuery(r.URL.Query().Get("q"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Query parameter q must be 1-500 characters")
		return
	}

	algorithm, err := discovery.ParseAlgorithm(r.URL.Query().Get("algorithm"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidAlgorithm)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidAlgorithm, "algorithm must be one of: relevance, diversity, emergent, standing_aware")
		return
	}

	opts := discovery.Options{Algorithm: algorithm}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	if raw := r.URL.Query().Get("diversity_preference"); raw != "" {
		pref, err := strconv.ParseFloat(raw, 64)
		if err != nil || pref < 0 || pref > 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "diversity_preference must be between 0 and 1")
			return
		}
		opts.DiversityPreference = pref
	}

	claims, err := h.repo.ListClaims()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list claims for discovery", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load content")
		return
	}

	items, err := h.buildItems(claims)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build discovery candidates", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load content")
		return
	}

	results, intent := h.engine.Discover(r.Context(), query, items, opts)
	if results == nil {
		results = []discovery.Result{}
	}

	writeJSON(w, r.Context(), http.StatusOK, DiscoveryResponse{
		Query:   query,
		Intent:  intent,
		Results: results,
		Count:   len(results),
	})
}
