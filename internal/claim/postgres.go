package claim

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository is a postgres-backed implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an existing connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const claimColumns = `id, author_id, text, domain, media, clarity, originality, relevance,
	effort, evidentiary_value, media_value, reputation_boost, qualifies, summary,
	post_score, originality_score, novelty_level, flagged_for_review,
	perspective_type, sources, created_at`

// CreateClaim inserts a new claim with a generated UUID.
func (r *PostgresRepository) CreateClaim(c *Claim) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	media, err := json.Marshal(c.Media)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.AuthorID, c.Text, c.Domain, media,
		c.Baseline.Clarity, c.Baseline.Originality, c.Baseline.Relevance,
		c.Baseline.Effort, c.Baseline.EvidentiaryValue, c.Baseline.MediaValue,
		c.Baseline.ReputationBoost, c.Baseline.Qualifies, c.Baseline.Summary,
		c.PostScore, c.OriginalityScore, c.NoveltyLevel, c.FlaggedForReview,
		c.PerspectiveType, pq.Array(c.Sources), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func scanClaim(row interface{ Scan(...any) error }) (*Claim, error) {
	var c Claim
	var media []byte
	var sources pq.StringArray
	err := row.Scan(
		&c.ID, &c.AuthorID, &c.Text, &c.Domain, &media,
		&c.Baseline.Clarity, &c.Baseline.Originality, &c.Baseline.Relevance,
		&c.Baseline.Effort, &c.Baseline.EvidentiaryValue, &c.Baseline.MediaValue,
		&c.Baseline.ReputationBoost, &c.Baseline.Qualifies, &c.Baseline.Summary,
		&c.PostScore, &c.OriginalityScore, &c.NoveltyLevel, &c.FlaggedForReview,
		&c.PerspectiveType, &sources, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &c.Media); err != nil {
			return nil, fmt.Errorf("unmarshal media: %w", err)
		}
	}
	c.Sources = []string(sources)
	return &c, nil
}

// GetClaim retrieves a claim by its UUID.
func (r *PostgresRepository) GetClaim(id string) (*Claim, error) {
	row := r.db.QueryRow(`SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// ListClaims retrieves all claims ordered by created_at DESC, id ASC.
func (r *PostgresRepository) ListClaims() ([]*Claim, error) {
	rows, err := r.db.Query(`SELECT ` + claimColumns + ` FROM claims ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetPostScore overwrites the claim's post score.
func (r *PostgresRepository) SetPostScore(id string, score float64) error {
	res, err := r.db.Exec(`UPDATE claims SET post_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return fmt.Errorf("set post score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// SetOriginality records the originality assessment for a claim.
func (r *PostgresRepository) SetOriginality(id string, score float64, novelty string, flagged bool) error {
	res, err := r.db.Exec(`
		UPDATE claims
		SET originality_score = $2, novelty_level = $3, flagged_for_review = $4
		WHERE id = $1`,
		id, score, novelty, flagged)
	if err != nil {
		return fmt.Errorf("set originality: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// CreateAnnotation inserts a new annotation with a generated UUID.
func (r *PostgresRepository) CreateAnnotation(a *Annotation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO annotations (id, claim_id, author_id, text, stance, confidence,
			helpful_votes, not_helpful_votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ClaimID, a.AuthorID, a.Text, string(a.Stance), a.Confidence,
		a.HelpfulVotes, a.NotHelpfulVotes, a.CreatedAt,
	)
	if err != nil {
		// Foreign key violation means the target claim does not exist.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrClaimNotFound
		}
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

const annotationColumns = `a.id, a.claim_id, a.author_id, a.text, a.stance, a.confidence,
	a.helpful_votes, a.not_helpful_votes, a.created_at,
	COALESCE(array_agg(v.voter_id) FILTER (WHERE v.voter_id IS NOT NULL), '{}')`

func scanAnnotation(row interface{ Scan(...any) error }) (*Annotation, error) {
	var a Annotation
	var stance string
	var votedBy pq.StringArray
	err := row.Scan(
		&a.ID, &a.ClaimID, &a.AuthorID, &a.Text, &stance, &a.Confidence,
		&a.HelpfulVotes, &a.NotHelpfulVotes, &a.CreatedAt, &votedBy,
	)
	if err != nil {
		return nil, err
	}
	a.Stance = Stance(stance)
	a.VotedBy = []string(votedBy)
	return &a, nil
}

// GetAnnotation retrieves an annotation by its UUID.
func (r *PostgresRepository) GetAnnotation(id string) (*Annotation, error) {
	row := r.db.QueryRow(`
		SELECT `+annotationColumns+`
		FROM annotations a
		LEFT JOIN annotation_votes v ON v.annotation_id = a.id
		WHERE a.id = $1
		GROUP BY a.id`, id)
	a, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnnotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	return a, nil
}

// ListAnnotationsByClaim retrieves all annotations on a claim ordered
// by created_at ASC, id ASC.
func (r *PostgresRepository) ListAnnotationsByClaim(claimID string) ([]*Annotation, error) {
	rows, err := r.db.Query(`
		SELECT `+annotationColumns+`
		FROM annotations a
		LEFT JOIN annotation_votes v ON v.annotation_id = a.id
		WHERE a.claim_id = $1
		GROUP BY a.id
		ORDER BY a.created_at ASC, a.id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []*Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// VoteAnnotation records a vote atomically: the (annotation, voter) pair is
// inserted under a primary-key constraint, and the counter increment happens
// in the same transaction only when the insert landed.
func (r *PostgresRepository) VoteAnnotation(annotationID, voterID string, helpful bool) (*Annotation, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin vote tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO annotation_votes (annotation_id, voter_id, helpful, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (annotation_id, voter_id) DO NOTHING`,
		annotationID, voterID, helpful)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, ErrAnnotationNotFound
		}
		return nil, fmt.Errorf("insert vote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadyVoted
	}

	column := "not_helpful_votes"
	if helpful {
		column = "helpful_votes"
	}
	res, err = tx.Exec(`UPDATE annotations SET `+column+` = `+column+` + 1 WHERE id = $1`, annotationID)
	if err != nil {
		return nil, fmt.Errorf("increment vote counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAnnotationNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit vote tx: %w", err)
	}

	return r.GetAnnotation(annotationID)
}

// PostgresStatsStore is a postgres-backed implementation of StatsStore.
// All increments go through upserts so concurrent writers never lose counts.
type PostgresStatsStore struct {
	db *sql.DB
}

// NewPostgresStatsStore creates a stats store over an existing connection pool.
func NewPostgresStatsStore(db *sql.DB) *PostgresStatsStore {
	return &PostgresStatsStore{db: db}
}

// Get retrieves stats for a user, creating a fresh record for unknown users.
func (s *PostgresStatsStore) Get(userID string) (*UserStats, error) {
	row := s.db.QueryRow(`
		INSERT INTO user_stats (user_id, account_created_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, claims_posted, annotations_added, helpful_votes_received,
			unhelpful_votes_received, original_claims, reputation, account_created_at`,
		userID)

	var st UserStats
	err := row.Scan(&st.UserID, &st.ClaimsPosted, &st.AnnotationsAdded,
		&st.HelpfulVotesReceived, &st.UnhelpfulVotesReceived, &st.OriginalClaims,
		&st.Reputation, &st.AccountCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	return &st, nil
}

func (s *PostgresStatsStore) bump(userID, column string, delta float64) error {
	_, err := s.db.Exec(`
		INSERT INTO user_stats (user_id, account_created_at, `+column+`)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (user_id) DO UPDATE SET `+column+` = user_stats.`+column+` + $2`,
		userID, delta)
	if err != nil {
		return fmt.Errorf("bump %s: %w", column, err)
	}
	return nil
}

// RecordClaim increments the user's posted-claim counter.
func (s *PostgresStatsStore) RecordClaim(userID string) error {
	return s.bump(userID, "claims_posted", 1)
}

// RecordAnnotation increments the user's annotation counter.
func (s *PostgresStatsStore) RecordAnnotation(userID string) error {
	return s.bump(userID, "annotations_added", 1)
}

// RecordVoteReceived increments the votes-received counters.
func (s *PostgresStatsStore) RecordVoteReceived(userID string, helpful bool) error {
	if helpful {
		return s.bump(userID, "helpful_votes_received", 1)
	}
	return s.bump(userID, "unhelpful_votes_received", 1)
}

// RecordOriginalClaim increments the user's original-claim counter.
func (s *PostgresStatsStore) RecordOriginalClaim(userID string) error {
	return s.bump(userID, "original_claims", 1)
}

// AddReputation adds delta to the user's reputation.
func (s *PostgresStatsStore) AddReputation(userID string, delta float64) error {
	return s.bump(userID, "reputation", delta)
}
