// Package claim provides models and repositories for user-submitted claims
// and their community annotations.
package claim

import (
	"errors"
	"time"
)

// Common errors for claim and annotation operations.
var (
	ErrClaimNotFound      = errors.New("claim not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrAlreadyVoted       = errors.New("voter has already voted on this annotation")
)

// Stance describes an annotation's relationship to the claim it targets.
type Stance string

// Valid stance values.
const (
	StanceSupport    Stance = "support"
	StanceContradict Stance = "contradict"
	StanceContext    Stance = "context"
)

// ValidStance reports whether s is one of the recognized stance values.
func ValidStance(s Stance) bool {
	switch s {
	case StanceSupport, StanceContradict, StanceContext:
		return true
	}
	return false
}

// MediaRef references an uploaded media object attached to a claim.
// Storage itself is handled by an external collaborator; the engine only
// needs the reference and MIME type.
type MediaRef struct {
	Key  string `json:"key"`
	Type string `json:"type"` // MIME type (e.g., "image/jpeg")
}

// BaselineEvaluation holds the publish-time quality axis scores and the
// resulting one-time reputation boost for a claim.
type BaselineEvaluation struct {
	Clarity          float64  `json:"clarity"`
	Originality      float64  `json:"originality"`
	Relevance        float64  `json:"relevance"`
	Effort           float64  `json:"effort"`
	EvidentiaryValue float64  `json:"evidentiary_value"`
	MediaValue       *float64 `json:"media_value,omitempty"`

	ReputationBoost float64 `json:"reputation_boost"`
	Qualifies       bool    `json:"qualifies"`
	Summary         string  `json:"summary"`
}

// AxisAverage returns the average of the five quality axes, including the
// media axis at equal weight when present.
func (b BaselineEvaluation) AxisAverage() float64 {
	sum := b.Clarity + b.Originality + b.Relevance + b.Effort + b.EvidentiaryValue
	n := 5.0
	if b.MediaValue != nil {
		sum += *b.MediaValue
		n++
	}
	return sum / n
}

// Claim represents a piece of user-submitted content.
// A claim is owned by its author and is never deleted implicitly. Derived
// fields (PostScore, OriginalityScore, NoveltyLevel) are mutated only by the
// post-score aggregator and the originality detector.
type Claim struct {
	ID       string     `json:"id"`
	AuthorID string     `json:"author_id"`
	Text     string     `json:"text"`
	Domain   string     `json:"domain,omitempty"`
	Media    []MediaRef `json:"media,omitempty"`

	Baseline  BaselineEvaluation `json:"baseline_evaluation"`
	PostScore float64            `json:"post_score"`

	OriginalityScore *float64 `json:"originality_score,omitempty"`
	NoveltyLevel     string   `json:"novelty_level,omitempty"`
	FlaggedForReview bool     `json:"flagged_for_review,omitempty"`

	// Discovery signal inputs maintained alongside the claim.
	PerspectiveType string   `json:"perspective_type,omitempty"`
	Sources         []string `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasSources reports whether the claim carries any cited sources.
func (c *Claim) HasSources() bool {
	return len(c.Sources) > 0
}

// Annotation represents a community annotation on a claim.
// Annotations are immutable once created except for their vote counters.
type Annotation struct {
	ID       string `json:"id"`
	ClaimID  string `json:"claim_id"`
	AuthorID string `json:"author_id"`
	Text     string `json:"text"`

	Stance     Stance  `json:"stance"`
	Confidence float64 `json:"confidence"` // stance classification confidence in [0, 1]

	HelpfulVotes    int `json:"helpful_votes"`
	NotHelpfulVotes int `json:"not_helpful_votes"`

	// VotedBy tracks voter ids; each voter may vote at most once.
	VotedBy []string `json:"voted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasVoted reports whether the given voter has already cast a vote.
func (a *Annotation) HasVoted(voterID string) bool {
	for _, v := range a.VotedBy {
		if v == voterID {
			return true
		}
	}
	return false
}

// UserStats holds lifetime contribution statistics for a single user.
// These feed the standing system and annotation weighting.
type UserStats struct {
	UserID                 string    `json:"user_id"`
	ClaimsPosted           int       `json:"claims_posted"`
	AnnotationsAdded       int       `json:"annotations_added"`
	HelpfulVotesReceived   int       `json:"helpful_votes_received"`
	UnhelpfulVotesReceived int       `json:"unhelpful_votes_received"`
	OriginalClaims         int       `json:"original_claims"`
	Reputation             float64   `json:"reputation"`
	AccountCreatedAt       time.Time `json:"account_created_at"`
}
