package postscore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thrryv/engine/internal/claim"
)

// Recomputer recomputes and persists post scores. Recomputation for a given
// content id is serialized with a per-id lock so concurrent annotation and
// vote events cannot drop each other's updates; the computation itself is a
// pure function of a freshly re-read annotation set, so the stored value is
// always derived from a consistent snapshot.
type Recomputer struct {
	repo    claim.Repository
	stats   claim.StatsStore
	metrics *Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRecomputer creates a recomputer. metrics may be nil.
func NewRecomputer(repo claim.Repository, stats claim.StatsStore, metrics *Metrics) *Recomputer {
	return &Recomputer{
		repo:    repo,
		stats:   stats,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the lock for a content id, creating it on first use.
// Locks are retained for the life of the process; the map is bounded by the
// number of distinct content items recomputed.
func (r *Recomputer) lockFor(contentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[contentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[contentID] = l
	}
	return l
}

// Recompute re-reads the content item and its full annotation set, recomputes
// the post score, and stores it. Returns the new score.
func (r *Recomputer) Recompute(contentID string) (float64, error) {
	l := r.lockFor(contentID)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	score, err := r.recompute(contentID)
	if r.metrics != nil {
		r.metrics.IncRecomputeTotal()
		r.metrics.ObserveRecomputeDuration(time.Since(start).Seconds())
		if err != nil {
			r.metrics.IncRecomputeErrors()
		}
	}
	if err != nil {
		return 0, err
	}

	slog.Debug("post score recomputed", "content_id", contentID, "score", score)
	return score, nil
}

func (r *Recomputer) recompute(contentID string) (float64, error) {
	c, err := r.repo.GetClaim(contentID)
	if err != nil {
		return 0, fmt.Errorf("load claim: %w", err)
	}

	annotations, err := r.repo.ListAnnotationsByClaim(contentID)
	if err != nil {
		return 0, fmt.Errorf("load annotations: %w", err)
	}

	enriched, err := Enrich(annotations, r.stats)
	if err != nil {
		return 0, fmt.Errorf("enrich annotations: %w", err)
	}

	score := Compute(c.Baseline.AxisAverage(), enriched, c.AuthorID)
	if err := r.repo.SetPostScore(contentID, score); err != nil {
		return 0, fmt.Errorf("store post score: %w", err)
	}
	return score, nil
}
