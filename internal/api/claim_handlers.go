package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/classify"
	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/evaluate"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/postscore"
	"github.com/thrryv/engine/internal/validate"
)

// Claim submission constraints.
const (
	MaxMediaRefs = 6
	MaxSources   = 10
)

// CreateClaimRequest represents the request body for submitting a claim.
type CreateClaimRequest struct {
	AuthorID        string           `json:"author_id"`
	Text            string           `json:"text"`
	Domain          string           `json:"domain,omitempty"`
	Media           []claim.MediaRef `json:"media,omitempty"`
	PerspectiveType string           `json:"perspective_type,omitempty"`
	Sources         []string         `json:"sources,omitempty"`
}

// CreateAnnotationRequest represents the request body for annotating a claim.
// Stance is optional; when omitted the annotation is classified automatically.
type CreateAnnotationRequest struct {
	AuthorID string `json:"author_id"`
	Text     string `json:"text"`
	Stance   string `json:"stance,omitempty"`
}

// VoteRequest represents the request body for voting on an annotation.
type VoteRequest struct {
	VoterID string `json:"voter_id"`
	Helpful bool   `json:"helpful"`
}

// ClaimResponse is a created or fetched claim plus its originality analysis.
type ClaimResponse struct {
	Claim       *claim.Claim          `json:"claim"`
	Originality *originality.Analysis `json:"originality,omitempty"`
}

// ClaimDetailResponse is a claim together with its annotations.
type ClaimDetailResponse struct {
	Claim       *claim.Claim        `json:"claim"`
	Annotations []*claim.Annotation `json:"annotations"`
}

// AnnotationResponse is a created annotation plus the recomputed post score.
type AnnotationResponse struct {
	Annotation *claim.Annotation `json:"annotation"`
	PostScore  float64           `json:"post_score"`
}

// ClaimHandlers holds dependencies for claim and annotation HTTP handlers.
type ClaimHandlers struct {
	repo       claim.Repository
	stats      claim.StatsStore
	evaluator  *evaluate.Service
	detector   *originality.Detector
	classifier *classify.Service
	recomputer *postscore.Recomputer
}

// NewClaimHandlers creates a new ClaimHandlers instance.
func NewClaimHandlers(
	repo claim.Repository,
	stats claim.StatsStore,
	evaluator *evaluate.Service,
	detector *originality.Detector,
	classifier *classify.Service,
	recomputer *postscore.Recomputer,
) *ClaimHandlers {
	return &ClaimHandlers{
		repo:       repo,
		stats:      stats,
		evaluator:  evaluator,
		detector:   detector,
		classifier: classifier,
		recomputer: recomputer,
	}
}

// extractPathID extracts the resource ID from a URL path of the form
// /{prefix}/{id}[/...]. Returns the ID and any trailing path segments.
func extractPathID(r *http.Request, prefix string) (string, []string, error) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, fmt.Errorf("resource ID is required")
	}
	return parts[0], parts[1:], nil
}

// mediaTypes collects the MIME types of attached media.
func mediaTypes(media []claim.MediaRef) []string {
	if len(media) == 0 {
		return nil
	}
	types := make([]string, 0, len(media))
	for _, m := range media {
		types = append(types, m.Type)
	}
	return types
}

// corpusFor builds the originality comparison corpus from stored claims,
// counting annotations per item for the duplicate-timing heuristics.
func (h *ClaimHandlers) corpusFor(claims []*claim.Claim) ([]originality.Item, error) {
	corpus := make([]originality.Item, 0, len(claims))
	for _, c := range claims {
		annotations, err := h.repo.ListAnnotationsByClaim(c.ID)
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, originality.Item{
			ID:              c.ID,
			AuthorID:        c.AuthorID,
			Text:            c.Text,
			CreatedAt:       c.CreatedAt,
			AnnotationCount: len(annotations),
		})
	}
	return corpus, nil
}

// CreateClaim handles POST /claims - evaluates and stores a new claim.
//
// The claim is scored on the five quality axes at publish time, assessed for
// originality against the stored corpus, and given its initial post score.
func (h *ClaimHandlers) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.AuthorID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author_id is required")
		return
	}

	text, err := validate.ClaimText(req.Text)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "text must be 1-5000 characters")
		return
	}

	domain, err := validate.DomainName(req.Domain)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid domain name")
		return
	}

	if len(req.Media) > MaxMediaRefs {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Maximum %d media attachments allowed", MaxMediaRefs))
		return
	}
	for i, m := range req.Media {
		normalized, err := validate.MIMEType(m.Type, validate.AllowedImageTypes)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Unsupported media type %q", m.Type))
			return
		}
		req.Media[i].Type = normalized
	}

	if len(req.Sources) > MaxSources {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Maximum %d sources allowed", MaxSources))
		return
	}
	for _, src := range req.Sources {
		if _, err := validate.SourceURL(src); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Invalid source URL %q", src))
			return
		}
	}

	// Publish-time quality evaluation. Evaluate is total: it degrades to the
	// heuristic internally, so it cannot fail the request.
	res := h.evaluator.Evaluate(r.Context(), evaluate.Input{
		Text:       text,
		Domain:     domain,
		MediaTypes: mediaTypes(req.Media),
	})

	newClaim := &claim.Claim{
		AuthorID: req.AuthorID,
		Text:     text,
		Domain:   domain,
		Media:    req.Media,
		Baseline: claim.BaselineEvaluation{
			Clarity:          res.Clarity,
			Originality:      res.Originality,
			Relevance:        res.Relevance,
			Effort:           res.Effort,
			EvidentiaryValue: res.EvidentiaryValue,
			MediaValue:       res.MediaValue,
			ReputationBoost:  res.Boost,
			Qualifies:        res.Qualifies,
			Summary:          res.Summary,
		},
		PerspectiveType: strings.TrimSpace(req.PerspectiveType),
		Sources:         req.Sources,
	}

	if err := h.repo.CreateClaim(newClaim); err != nil {
		slog.ErrorContext(r.Context(), "failed to create claim", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create claim")
		return
	}

	if err := h.stats.RecordClaim(req.AuthorID); err != nil {
		slog.ErrorContext(r.Context(), "failed to record claim stat", "error", err, "user_id", req.AuthorID)
	}
	if res.Qualifies {
		if err := h.stats.AddReputation(req.AuthorID, res.Boost); err != nil {
			slog.ErrorContext(r.Context(), "failed to apply reputation boost", "error", err, "user_id", req.AuthorID)
		}
	}

	analysis := h.analyzeOriginality(r, newClaim)

	if _, err := h.recomputer.Recompute(newClaim.ID); err != nil {
		slog.ErrorContext(r.Context(), "failed to compute initial post score", "error", err, "claim_id", newClaim.ID)
	}

	stored, err := h.repo.GetClaim(newClaim.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to reload claim", "error", err, "claim_id", newClaim.ID)
		stored = newClaim
	}

	writeJSON(w, r.Context(), http.StatusCreated, ClaimResponse{Claim: stored, Originality: analysis})
}

// analyzeOriginality runs originality detection for a claim and persists the
// outcome. Failures are logged, not surfaced: originality is derived state.
func (h *ClaimHandlers) analyzeOriginality(r *http.Request, c *claim.Claim) *originality.Analysis {
	claims, err := h.repo.ListClaims()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load originality corpus", "error", err)
		return nil
	}
	corpus, err := h.corpusFor(claims)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build originality corpus", "error", err)
		return nil
	}

	analysis := h.detector.Analyze(r.Context(), c.ID, c.Text, corpus)
	if err := h.repo.SetOriginality(c.ID, analysis.Score, analysis.NoveltyLevel, analysis.FlaggedForReview); err != nil {
		slog.ErrorContext(r.Context(), "failed to store originality", "error", err, "claim_id", c.ID)
	}
	if analysis.BoostEligible {
		if err := h.stats.RecordOriginalClaim(c.AuthorID); err != nil {
			slog.ErrorContext(r.Context(), "failed to record original claim", "error", err, "user_id", c.AuthorID)
		}
	}
	return &analysis
}

// GetClaim handles GET /claims/{id} - returns a claim and its annotations.
func (h *ClaimHandlers) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID, _, err := extractPathID(r, "/claims/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	c, err := h.repo.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve claim", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve claim")
		return
	}

	annotations, err := h.repo.ListAnnotationsByClaim(claimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list annotations", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve annotations")
		return
	}
	if annotations == nil {
		annotations = []*claim.Annotation{}
	}

	writeJSON(w, r.Context(), http.StatusOK, ClaimDetailResponse{Claim: c, Annotations: annotations})
}

// ListClaims handles GET /claims - returns all claims, newest first.
func (h *ClaimHandlers) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.repo.ListClaims()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list claims", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list claims")
		return
	}
	if claims == nil {
		claims = []*claim.Claim{}
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetOriginality handles GET /claims/{id}/originality - re-runs originality
// analysis for a claim against the current corpus and returns the assessment.
func (h *ClaimHandlers) GetOriginality(w http.ResponseWriter, r *http.Request) {
	claimID, _, err := extractPathID(r, "/claims/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	c, err := h.repo.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve claim", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve claim")
		return
	}

	analysis := h.analyzeOriginality(r, c)
	if analysis == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to analyze originality")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, analysis)
}

// CreateAnnotation handles POST /claims/{id}/annotations - adds an annotation
// and recomputes the claim's post score.
func (h *ClaimHandlers) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	claimID, _, err := extractPathID(r, "/claims/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	var req CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.AuthorID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author_id is required")
		return
	}

	text, err := validate.AnnotationText(req.Text)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "text must be 1-2000 characters")
		return
	}

	c, err := h.repo.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve claim", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve claim")
		return
	}

	// Stance: trust an explicitly supplied valid stance, otherwise classify.
	var stance claim.Stance
	var confidence float64
	if req.Stance != "" {
		stance = claim.Stance(req.Stance)
		if !claim.ValidStance(stance) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidStance)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidStance, "stance must be one of: support, contradict, context")
			return
		}
		confidence = 1.0
	} else {
		classification := h.classifier.Classify(r.Context(), c.Text, text)
		stance = classification.Stance
		confidence = classification.Confidence
	}

	annotation := &claim.Annotation{
		ClaimID:    claimID,
		AuthorID:   req.AuthorID,
		Text:       text,
		Stance:     stance,
		Confidence: confidence,
	}

	if err := h.repo.CreateAnnotation(annotation); err != nil {
		slog.ErrorContext(r.Context(), "failed to create annotation", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create annotation")
		return
	}

	if err := h.stats.RecordAnnotation(req.AuthorID); err != nil {
		slog.ErrorContext(r.Context(), "failed to record annotation stat", "error", err, "user_id", req.AuthorID)
	}

	score, err := h.recomputer.Recompute(claimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to recompute post score", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recompute post score")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, AnnotationResponse{Annotation: annotation, PostScore: score})
}

// VoteAnnotation handles POST /annotations/{id}/vote - records a helpful or
// not-helpful vote and recomputes the affected claim's post score.
func (h *ClaimHandlers) VoteAnnotation(w http.ResponseWriter, r *http.Request) {
	annotationID, _, err := extractPathID(r, "/annotations/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Annotation ID is required")
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.VoterID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "voter_id is required")
		return
	}

	annotation, err := h.repo.VoteAnnotation(annotationID, req.VoterID, req.Helpful)
	if err != nil {
		switch {
		case errors.Is(err, claim.ErrAnnotationNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Annotation not found")
		case errors.Is(err, claim.ErrAlreadyVoted):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadyVoted)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadyVoted, "Voter has already voted on this annotation")
		default:
			slog.ErrorContext(r.Context(), "failed to record vote", "error", err, "annotation_id", annotationID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record vote")
		}
		return
	}

	if err := h.stats.RecordVoteReceived(annotation.AuthorID, req.Helpful); err != nil {
		slog.ErrorContext(r.Context(), "failed to record vote stat", "error", err, "user_id", annotation.AuthorID)
	}

	score, err := h.recomputer.Recompute(annotation.ClaimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to recompute post score", "error", err, "claim_id", annotation.ClaimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recompute post score")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, AnnotationResponse{Annotation: annotation, PostScore: score})
}
