package claim

import (
	"sync"
	"time"
)

// StatsStore tracks per-user lifetime contribution counters.
// Increments are atomic with respect to concurrent callers; a user record
// is created on first touch with the touch time as account creation.
type StatsStore interface {
	// Get retrieves stats for a user. Unknown users get a fresh record
	// with AccountCreatedAt set to now.
	Get(userID string) (*UserStats, error)

	// RecordClaim increments the user's posted-claim counter.
	RecordClaim(userID string) error

	// RecordAnnotation increments the user's annotation counter.
	RecordAnnotation(userID string) error

	// RecordVoteReceived increments the helpful or unhelpful votes
	// received by the annotation's author.
	RecordVoteReceived(userID string, helpful bool) error

	// RecordOriginalClaim increments the user's original-claim counter.
	RecordOriginalClaim(userID string) error

	// AddReputation adds delta to the user's reputation.
	AddReputation(userID string, delta float64) error
}

// InMemoryStatsStore is an in-memory implementation of StatsStore.
// Thread-safe via RWMutex.
type InMemoryStatsStore struct {
	mu    sync.RWMutex
	stats map[string]*UserStats
}

// NewInMemoryStatsStore creates a new in-memory stats store.
func NewInMemoryStatsStore() *InMemoryStatsStore {
	return &InMemoryStatsStore{stats: make(map[string]*UserStats)}
}

// ensure returns the stored record for userID, creating it if needed.
// Caller must hold the write lock.
func (s *InMemoryStatsStore) ensure(userID string) *UserStats {
	st, ok := s.stats[userID]
	if !ok {
		st = &UserStats{UserID: userID, AccountCreatedAt: time.Now()}
		s.stats[userID] = st
	}
	return st
}

// Get retrieves stats for a user, creating a fresh record for unknown users.
func (s *InMemoryStatsStore) Get(userID string) (*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensure(userID)
	cp := *st
	return &cp, nil
}

// RecordClaim increments the user's posted-claim counter.
func (s *InMemoryStatsStore) RecordClaim(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(userID).ClaimsPosted++
	return nil
}

// RecordAnnotation increments the user's annotation counter.
func (s *InMemoryStatsStore) RecordAnnotation(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(userID).AnnotationsAdded++
	return nil
}

// RecordVoteReceived increments the votes-received counters.
func (s *InMemoryStatsStore) RecordVoteReceived(userID string, helpful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensure(userID)
	if helpful {
		st.HelpfulVotesReceived++
	} else {
		st.UnhelpfulVotesReceived++
	}
	return nil
}

// RecordOriginalClaim increments the user's original-claim counter.
func (s *InMemoryStatsStore) RecordOriginalClaim(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(userID).OriginalClaims++
	return nil
}

// AddReputation adds delta to the user's reputation.
func (s *InMemoryStatsStore) AddReputation(userID string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(userID).Reputation += delta
	return nil
}
