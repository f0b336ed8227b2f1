package services

import (
	"context"
	"log"
	"sync"

	"battle-engine/models"
)

// ScoreFeed supplies live fantasy points for a player in the current scoring period.
type ScoreFeed interface {
	GetPlayerPoints(ctx context.Context, playerID string) (float64, error)
}

// SocialNotifier receives cross-feature progress after every completed battle.
type SocialNotifier interface {
	Notify(ctx context.Context, challengeKey, userID, eventType string, increment int) error
}

// RewardSink grants prize bundles to users.
type RewardSink interface {
	Grant(ctx context.Context, userID string, grant models.PrizeGrant) error
}

// Archiver stores a snapshot of a completed battle.
type Archiver interface {
	Archive(ctx context.Context, b *models.Battle) error
}

// LogNotifier is the default SocialNotifier: it only logs.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, challengeKey, userID, eventType string, increment int) error {
	log.Printf("[Social] %s %s +%d (%s)", userID, eventType, increment, challengeKey)
	return nil
}

type noopArchiver struct{}

func (noopArchiver) Archive(context.Context, *models.Battle) error { return nil }

// MemoryRewardSink records grants in memory; used without a database and in tests.
type MemoryRewardSink struct {
	mu     sync.Mutex
	grants []models.PrizeGrant
}

func NewMemoryRewardSink() *MemoryRewardSink {
	return &MemoryRewardSink{}
}

func (s *MemoryRewardSink) Grant(_ context.Context, userID string, grant models.PrizeGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant.UserID = userID
	s.grants = append(s.grants, grant)
	return nil
}

// Grants returns a copy of everything granted so far.
func (s *MemoryRewardSink) Grants() []models.PrizeGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PrizeGrant(nil), s.grants...)
}
