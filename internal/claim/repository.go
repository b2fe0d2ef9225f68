package claim

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for claim and annotation data operations.
type Repository interface {
	// CreateClaim inserts a new claim with a generated UUID.
	CreateClaim(c *Claim) error

	// GetClaim retrieves a claim by its UUID.
	GetClaim(id string) (*Claim, error)

	// ListClaims retrieves all claims ordered by created_at DESC, id ASC.
	ListClaims() ([]*Claim, error)

	// SetPostScore overwrites the claim's post score. The write is an
	// idempotent overwrite: recomputing from the same annotation set
	// yields the same stored value.
	SetPostScore(id string, score float64) error

	// SetOriginality records the originality assessment for a claim.
	SetOriginality(id string, score float64, novelty string, flagged bool) error

	// CreateAnnotation inserts a new annotation with a generated UUID.
	CreateAnnotation(a *Annotation) error

	// GetAnnotation retrieves an annotation by its UUID.
	GetAnnotation(id string) (*Annotation, error)

	// ListAnnotationsByClaim retrieves all annotations on a claim ordered
	// by created_at ASC, id ASC.
	ListAnnotationsByClaim(claimID string) ([]*Annotation, error)

	// VoteAnnotation records a helpful/not-helpful vote. Each voter may
	// vote at most once per annotation; a repeat vote returns
	// ErrAlreadyVoted and leaves the counters unchanged.
	// Returns the annotation after the vote is applied.
	VoteAnnotation(annotationID, voterID string, helpful bool) (*Annotation, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	claims      map[string]*Claim
	annotations map[string]*Annotation
}

// NewInMemoryRepository creates a new in-memory claim repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		claims:      make(map[string]*Claim),
		annotations: make(map[string]*Annotation),
	}
}

// copyClaim returns a deep copy so callers cannot mutate stored state.
func copyClaim(c *Claim) *Claim {
	cp := *c
	if c.Media != nil {
		cp.Media = append([]MediaRef(nil), c.Media...)
	}
	if c.Sources != nil {
		cp.Sources = append([]string(nil), c.Sources...)
	}
	if c.OriginalityScore != nil {
		v := *c.OriginalityScore
		cp.OriginalityScore = &v
	}
	if c.Baseline.MediaValue != nil {
		v := *c.Baseline.MediaValue
		cp.Baseline.MediaValue = &v
	}
	return &cp
}

func copyAnnotation(a *Annotation) *Annotation {
	cp := *a
	if a.VotedBy != nil {
		cp.VotedBy = append([]string(nil), a.VotedBy...)
	}
	return &cp
}

// CreateClaim inserts a new claim with a generated UUID.
func (r *InMemoryRepository) CreateClaim(c *Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	r.claims[c.ID] = copyClaim(c)
	return nil
}

// GetClaim retrieves a claim by its UUID.
func (r *InMemoryRepository) GetClaim(id string) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	return copyClaim(c), nil
}

// ListClaims retrieves all claims ordered by created_at DESC, id ASC.
func (r *InMemoryRepository) ListClaims() ([]*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Claim, 0, len(r.claims))
	for _, c := range r.claims {
		out = append(out, copyClaim(c))
	}

	// Sort by created_at DESC, then by ID ASC for tie-breaking
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.After(out[j].CreatedAt) {
			return true
		}
		if out[i].CreatedAt.Before(out[j].CreatedAt) {
			return false
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// SetPostScore overwrites the claim's post score.
func (r *InMemoryRepository) SetPostScore(id string, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[id]
	if !ok {
		return ErrClaimNotFound
	}
	c.PostScore = score
	return nil
}

// SetOriginality records the originality assessment for a claim.
func (r *InMemoryRepository) SetOriginality(id string, score float64, novelty string, flagged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[id]
	if !ok {
		return ErrClaimNotFound
	}
	s := score
	c.OriginalityScore = &s
	c.NoveltyLevel = novelty
	c.FlaggedForReview = flagged
	return nil
}

// CreateAnnotation inserts a new annotation with a generated UUID.
func (r *InMemoryRepository) CreateAnnotation(a *Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[a.ClaimID]; !ok {
		return ErrClaimNotFound
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	r.annotations[a.ID] = copyAnnotation(a)
	return nil
}

// GetAnnotation retrieves an annotation by its UUID.
func (r *InMemoryRepository) GetAnnotation(id string) (*Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.annotations[id]
	if !ok {
		return nil, ErrAnnotationNotFound
	}
	return copyAnnotation(a), nil
}

// ListAnnotationsByClaim retrieves all annotations on a claim ordered
// by created_at ASC, id ASC.
func (r *InMemoryRepository) ListAnnotationsByClaim(claimID string) ([]*Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Annotation
	for _, a := range r.annotations {
		if a.ClaimID != claimID {
			continue
		}
		out = append(out, copyAnnotation(a))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Before(out[j].CreatedAt) {
			return true
		}
		if out[i].CreatedAt.After(out[j].CreatedAt) {
			return false
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// VoteAnnotation records a helpful/not-helpful vote with per-voter dedup.
func (r *InMemoryRepository) VoteAnnotation(annotationID, voterID string, helpful bool) (*Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.annotations[annotationID]
	if !ok {
		return nil, ErrAnnotationNotFound
	}
	if a.HasVoted(voterID) {
		return nil, ErrAlreadyVoted
	}

	a.VotedBy = append(a.VotedBy, voterID)
	if helpful {
		a.HelpfulVotes++
	} else {
		a.NotHelpfulVotes++
	}

	return copyAnnotation(a), nil
}
