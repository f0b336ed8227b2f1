package services

import (
	"context"
	"fmt"
	"math"

	"battle-engine/models"
)

// ScoringService turns live player points into participant round scores.
type ScoringService struct {
	feed ScoreFeed
}

func NewScoringService(feed ScoreFeed) *ScoringService {
	return &ScoringService{feed: feed}
}

func roundPoints(v float64) float64 {
	return math.Round(v*100) / 100
}

// protected reports whether userID holds an active protection effect in round.
func protected(b *models.Battle, userID string, round int) bool {
	for _, e := range b.ActiveEffects {
		if e.Protection && e.OwnerID == userID && e.ActiveIn(round) {
			return true
		}
	}
	return false
}

// effectMultiplier scales a player's base multiplier by every active effect
// aimed at the player, its position, or its owner.
func effectMultiplier(b *models.Battle, ownerID string, player models.RosterPlayer, round int) float64 {
	m := 1.0
	shielded := protected(b, ownerID, round)
	for _, e := range b.ActiveEffects {
		if !e.ActiveIn(round) || e.Multiplier == 0 {
			continue
		}
		switch e.Target {
		case models.TargetSelf:
			if e.OwnerID == ownerID {
				m *= e.Multiplier
			}
		case models.TargetOpponent:
			if e.TargetRef == ownerID && e.OwnerID != ownerID && !shielded {
				m *= e.Multiplier
			}
		case models.TargetPlayer:
			if e.OwnerID == ownerID && e.TargetRef == player.PlayerID {
				m *= e.Multiplier
			}
		case models.TargetPosition:
			if e.OwnerID == ownerID && e.TargetRef == player.Position {
				m *= e.Multiplier
			}
		}
	}
	return m
}

// ScoreParticipant computes p's score for round from the feed. On a feed error
// nothing on the roster changes and the error is returned.
func (s *ScoringService) ScoreParticipant(ctx context.Context, b *models.Battle, p *models.Participant, round int) (float64, error) {
	if p.Roster == nil {
		return 0, nil
	}
	points := make([]float64, len(p.Roster.Players))
	for i, pl := range p.Roster.Players {
		if pl.Status == models.PlayerStatusOut {
			continue
		}
		v, err := s.feed.GetPlayerPoints(ctx, pl.PlayerID)
		if err != nil {
			return 0, fmt.Errorf("points for %s: %w", pl.PlayerID, err)
		}
		points[i] = v
	}

	total := 0.0
	for i := range p.Roster.Players {
		pl := &p.Roster.Players[i]
		mult := pl.Multiplier
		if mult == 0 {
			mult = models.BaseMultiplier
		}
		pl.LastPoints = points[i]
		total += points[i] * mult * effectMultiplier(b, p.UserID, *pl, round)
	}
	return roundPoints(total), nil
}
