package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/classify"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/evaluate"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/postscore"
	"github.com/thrryv/engine/internal/standing"
)

// testStack bundles the handler wiring shared across API tests. All services
// run on their deterministic fallbacks and in-memory stores.
type testStack struct {
	handler http.Handler
	repo    *claim.InMemoryRepository
	stats   *claim.InMemoryStatsStore
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	repo := claim.NewInMemoryRepository()
	stats := claim.NewInMemoryStatsStore()

	evaluator := evaluate.NewService(nil, nil)
	detector := originality.NewDetector(nil, nil)
	classifier := classify.NewService(nil, nil)
	recomputer := postscore.NewRecomputer(repo, stats, nil)
	standingSvc := standing.NewService(repo, stats)
	engine := discovery.NewEngine(discovery.NewParserService(nil, nil), nil)

	router := &Router{
		Claims:    NewClaimHandlers(repo, stats, evaluator, detector, classifier, recomputer),
		Discovery: NewDiscoveryHandlers(repo, standingSvc, engine),
		Standing:  NewStandingHandlers(standingSvc),
		Health:    NewHealthHandlers(HealthHandlersConfig{MetricsEnabled: true}),
	}

	return &testStack{
		handler: router.Handler(),
		repo:    repo,
		stats:   stats,
	}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// createClaim posts a valid claim and returns its decoded response.
func (s *testStack) createClaim(t *testing.T, authorID, text string) ClaimResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/claims", CreateClaimRequest{
		AuthorID: authorID,
		Text:     text,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create claim status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ClaimResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode claim response: %v", err)
	}
	return resp
}

func TestCreateClaim(t *testing.T) {
	stack := newTestStack(t)

	text := "According to a recent water quality report, the new filtration method " +
		"reduced contaminant levels by forty percent across all monitored sites. " +
		"The measurements were repeated monthly over a full year."
	resp := stack.createClaim(t, "u-1", text)

	if resp.Claim == nil {
		t.Fatal("response missing claim")
	}
	if resp.Claim.ID == "" {
		t.Error("claim ID not generated")
	}
	if resp.Claim.AuthorID != "u-1" {
		t.Errorf("author = %q, want u-1", resp.Claim.AuthorID)
	}
	if resp.Claim.Baseline.Clarity == 0 {
		t.Error("baseline evaluation not populated")
	}
	if resp.Originality == nil {
		t.Fatal("response missing originality analysis")
	}
	// First claim in an empty corpus is fully original.
	if resp.Originality.Score != 100 {
		t.Errorf("originality score = %v, want 100 for empty corpus", resp.Originality.Score)
	}

	// Author stats must reflect the new claim.
	st, err := stack.stats.Get("u-1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if st.ClaimsPosted != 1 {
		t.Errorf("claims posted = %d, want 1", st.ClaimsPosted)
	}

	// Initial post score is stored.
	stored, err := stack.repo.GetClaim(resp.Claim.ID)
	if err != nil {
		t.Fatalf("reload claim: %v", err)
	}
	if stored.PostScore <= 0 {
		t.Errorf("post score = %v, want > 0", stored.PostScore)
	}
}

func TestCreateClaimAwardsReputationBoost(t *testing.T) {
	stack := newTestStack(t)

	// Long, evidence-bearing text clears the heuristic boost threshold.
	text := strings.Repeat("According to the research data, the study observed a measurable effect. ", 10)
	resp := stack.createClaim(t, "u-boost", text)

	if !resp.Claim.Baseline.Qualifies {
		t.Fatal("expected baseline evaluation to qualify for boost")
	}
	if resp.Claim.Baseline.ReputationBoost < evaluate.MinBoost {
		t.Errorf("boost = %v, want >= %v", resp.Claim.Baseline.ReputationBoost, evaluate.MinBoost)
	}

	st, err := stack.stats.Get("u-boost")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if st.Reputation != resp.Claim.Baseline.ReputationBoost {
		t.Errorf("reputation = %v, want %v", st.Reputation, resp.Claim.Baseline.ReputationBoost)
	}
}

func TestCreateClaimValidation(t *testing.T) {
	stack := newTestStack(t)

	tests := []struct {
		name     string
		req      CreateClaimRequest
		wantCode string
	}{
		{
			name:     "missing author",
			req:      CreateClaimRequest{Text: "some claim"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "empty text",
			req:      CreateClaimRequest{AuthorID: "u-1"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "text too long",
			req:      CreateClaimRequest{AuthorID: "u-1", Text: strings.Repeat("a", 5001)},
			wantCode: ErrCodeValidation,
		},
		{
			name: "bad source URL",
			req: CreateClaimRequest{
				AuthorID: "u-1",
				Text:     "a claim with a bad source",
				Sources:  []string{"http://example.com/insecure"},
			},
			wantCode: ErrCodeValidation,
		},
		{
			name: "unsupported media type",
			req: CreateClaimRequest{
				AuthorID: "u-1",
				Text:     "a claim with odd media",
				Media:    []claim.MediaRef{{Key: "k", Type: "application/pdf"}},
			},
			wantCode: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := stack.do(t, http.MethodPost, "/claims", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", errResp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestCreateClaimFlagsDuplicate(t *testing.T) {
	stack := newTestStack(t)

	text := "The municipal water treatment upgrade reduced lead contamination " +
		"substantially according to the annual infrastructure report."
	stack.createClaim(t, "u-original", text)
	dup := stack.createClaim(t, "u-copy", text)

	if dup.Originality == nil {
		t.Fatal("duplicate missing originality analysis")
	}
	if dup.Originality.Score > 30 {
		t.Errorf("duplicate originality score = %v, want <= 30", dup.Originality.Score)
	}
	if !dup.Originality.FlaggedForReview {
		t.Error("identical text should be flagged for review")
	}
	if len(dup.Originality.Matches) == 0 {
		t.Error("duplicate should carry at least one similarity match")
	}
}

func TestGetClaim(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "a perfectly ordinary claim about local transit schedules")

	rec := stack.do(t, http.MethodGet, "/claims/"+created.Claim.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ClaimDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Claim.ID != created.Claim.ID {
		t.Errorf("claim ID = %q, want %q", resp.Claim.ID, created.Claim.ID)
	}
	if resp.Annotations == nil {
		t.Error("annotations should be an empty list, not null")
	}
}

func TestGetClaimNotFound(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/claims/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", errResp.Error.Code, ErrCodeNotFound)
	}
}

func TestListClaims(t *testing.T) {
	stack := newTestStack(t)
	stack.createClaim(t, "u-1", "first claim about the harbor expansion project")
	stack.createClaim(t, "u-2", "second claim about the library renovation budget")

	rec := stack.do(t, http.MethodGet, "/claims", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Claims []*claim.Claim `json:"claims"`
		Count  int            `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Claims) != 2 {
		t.Errorf("count = %d, claims = %d, want 2", resp.Count, len(resp.Claims))
	}
}

func TestCreateAnnotationClassifiesStance(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "the new policy reduced commute times in the city center")

	rec := stack.do(t, http.MethodPost, fmt.Sprintf("/claims/%s/annotations", created.Claim.ID), CreateAnnotationRequest{
		AuthorID: "u-2",
		Text:     "A peer-reviewed study confirms this with supporting data.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AnnotationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Annotation.Stance != claim.StanceSupport {
		t.Errorf("stance = %q, want support", resp.Annotation.Stance)
	}
	if resp.Annotation.Confidence <= 0 || resp.Annotation.Confidence > 1 {
		t.Errorf("confidence = %v, want (0, 1]", resp.Annotation.Confidence)
	}
	if resp.PostScore <= 0 {
		t.Errorf("post score = %v, want > 0", resp.PostScore)
	}

	st, err := stack.stats.Get("u-2")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if st.AnnotationsAdded != 1 {
		t.Errorf("annotations added = %d, want 1", st.AnnotationsAdded)
	}
}

func TestCreateAnnotationExplicitStance(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "the bridge retrofit finished ahead of schedule")

	rec := stack.do(t, http.MethodPost, fmt.Sprintf("/claims/%s/annotations", created.Claim.ID), CreateAnnotationRequest{
		AuthorID: "u-2",
		Text:     "Here is some background on the contractor selection.",
		Stance:   "context",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp AnnotationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Annotation.Stance != claim.StanceContext {
		t.Errorf("stance = %q, want context", resp.Annotation.Stance)
	}
	if resp.Annotation.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for explicit stance", resp.Annotation.Confidence)
	}
}

func TestCreateAnnotationInvalidStance(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "a claim that will receive a bad annotation")

	rec := stack.do(t, http.MethodPost, fmt.Sprintf("/claims/%s/annotations", created.Claim.ID), CreateAnnotationRequest{
		AuthorID: "u-2",
		Text:     "this stance does not exist",
		Stance:   "disagree",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Code != ErrCodeInvalidStance {
		t.Errorf("error code = %q, want %q", errResp.Error.Code, ErrCodeInvalidStance)
	}
}

func TestCreateAnnotationClaimNotFound(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodPost, "/claims/missing/annotations", CreateAnnotationRequest{
		AuthorID: "u-2",
		Text:     "an annotation for nothing",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVoteAnnotation(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "the stadium noise ordinance passed last week")

	rec := stack.do(t, http.MethodPost, fmt.Sprintf("/claims/%s/annotations", created.Claim.ID), CreateAnnotationRequest{
		AuthorID: "u-2",
		Text:     "City council records show the vote tally.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create annotation status = %d", rec.Code)
	}
	var annResp AnnotationResponse
	if err := json.NewDecoder(rec.Body).Decode(&annResp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	votePath := fmt.Sprintf("/annotations/%s/vote", annResp.Annotation.ID)

	rec = stack.do(t, http.MethodPost, votePath, VoteRequest{VoterID: "u-3", Helpful: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("vote status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var voteResp AnnotationResponse
	if err := json.NewDecoder(rec.Body).Decode(&voteResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if voteResp.Annotation.HelpfulVotes != 1 {
		t.Errorf("helpful votes = %d, want 1", voteResp.Annotation.HelpfulVotes)
	}

	// The annotation author's stats record the received vote.
	st, err := stack.stats.Get("u-2")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if st.HelpfulVotesReceived != 1 {
		t.Errorf("helpful votes received = %d, want 1", st.HelpfulVotesReceived)
	}

	// A repeat vote from the same voter conflicts.
	rec = stack.do(t, http.MethodPost, votePath, VoteRequest{VoterID: "u-3", Helpful: false})
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat vote status = %d, want 409", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Code != ErrCodeAlreadyVoted {
		t.Errorf("error code = %q, want %q", errResp.Error.Code, ErrCodeAlreadyVoted)
	}
}

func TestVoteAnnotationNotFound(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodPost, "/annotations/missing/vote", VoteRequest{VoterID: "u-3", Helpful: true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetOriginality(t *testing.T) {
	stack := newTestStack(t)
	created := stack.createClaim(t, "u-1", "an entirely novel observation about pigeon migration")

	rec := stack.do(t, http.MethodGet, fmt.Sprintf("/claims/%s/originality", created.Claim.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var analysis originality.Analysis
	if err := json.NewDecoder(rec.Body).Decode(&analysis); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if analysis.ContentID != created.Claim.ID {
		t.Errorf("content ID = %q, want %q", analysis.ContentID, created.Claim.ID)
	}
	if analysis.Score != 100 {
		t.Errorf("score = %v, want 100 for a sole claim", analysis.Score)
	}
}
