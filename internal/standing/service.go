package standing

import (
	"fmt"

	"github.com/thrryv/engine/internal/claim"
)

// Service computes standing signals from stored user stats and claims.
type Service struct {
	repo  claim.Repository
	stats claim.StatsStore
}

// NewService creates a standing service.
func NewService(repo claim.Repository, stats claim.StatsStore) *Service {
	return &Service{repo: repo, stats: stats}
}

// avgContentQuality is the mean baseline axis average across the user's
// claims, 0 when they have none.
func (s *Service) avgContentQuality(userID string) (float64, error) {
	claims, err := s.repo.ListClaims()
	if err != nil {
		return 0, err
	}

	var sum float64
	var count int
	for _, c := range claims {
		if c.AuthorID != userID {
			continue
		}
		sum += c.Baseline.AxisAverage()
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// Standing computes the current standing signal for a user.
func (s *Service) Standing(userID string) (Signal, error) {
	st, err := s.stats.Get(userID)
	if err != nil {
		return Signal{}, fmt.Errorf("load user stats: %w", err)
	}

	avgQuality, err := s.avgContentQuality(userID)
	if err != nil {
		return Signal{}, fmt.Errorf("average content quality: %w", err)
	}

	return Compute(Input{
		UserID:            userID,
		AccountCreatedAt:  st.AccountCreatedAt,
		ClaimsPosted:      st.ClaimsPosted,
		AnnotationsAdded:  st.AnnotationsAdded,
		HelpfulVotes:      st.HelpfulVotesReceived,
		UnhelpfulVotes:    st.UnhelpfulVotesReceived,
		OriginalClaims:    st.OriginalClaims,
		AvgContentQuality: avgQuality,
	}), nil
}
