package services

import (
	"context"
	"math"
	"time"

	"battle-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ELO tuning
const (
	KBase          = 32
	MaxScoreFactor = 3.0
	// points of margin that equal one unit of score factor
	MarginPerFactor = 10.0
)

// RatingDelta returns the points moved from loser to winner before the floor clamp.
func RatingDelta(winnerRating, loserRating int, winnerScore, loserScore float64) int {
	expected := 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
	factor := math.Min(math.Abs(winnerScore-loserScore)/MarginPerFactor, MaxScoreFactor)
	return int(math.Round(KBase * factor * (1 - expected)))
}

// TierFor returns the highest tier whose threshold rating meets.
func TierFor(rating int) models.Tier {
	tier := models.TierThresholds[0].Tier
	for _, t := range models.TierThresholds {
		if rating >= t.MinRating {
			tier = t.Tier
		}
	}
	return tier
}

// NextTierProgress is the 0-100 position of rating between its tier and the next.
func NextTierProgress(rating int) float64 {
	th := models.TierThresholds
	for i := len(th) - 1; i >= 0; i-- {
		if rating < th[i].MinRating {
			continue
		}
		if i == len(th)-1 {
			return 100
		}
		span := float64(th[i+1].MinRating - th[i].MinRating)
		pct := float64(rating-th[i].MinRating) / span * 100
		return math.Round(pct*10) / 10
	}
	return 0
}

var tierCaser = cases.Title(language.English)

// TierName is the display form of a tier, e.g. "Platinum".
func TierName(t models.Tier) string {
	return tierCaser.String(string(t))
}

// MatchResult is a decided outcome between two rated users
type MatchResult struct {
	BattleID    string
	WinnerID    string
	LoserID     string
	WinnerScore float64
	LoserScore  float64
}

type LadderUpdate struct {
	Winner models.LadderRank `json:"winner"`
	Loser  models.LadderRank `json:"loser"`
	Delta  int               `json:"delta"`
}

type LadderService struct {
	store LadderStore
	bus   *EventBus
	clock clockwork.Clock
	locks *keyedMutex
}

func NewLadderService(store LadderStore, bus *EventBus, clock clockwork.Clock) *LadderService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LadderService{store: store, bus: bus, clock: clock, locks: newKeyedMutex()}
}

// GetLadderRank returns nil, nil for users who never played a rated battle.
func (s *LadderService) GetLadderRank(ctx context.Context, userID string) (*models.LadderRank, error) {
	return s.store.GetRank(ctx, userID)
}

// Rating returns the user's rating and whether a rank exists.
func (s *LadderService) Rating(ctx context.Context, userID string) (int, bool, error) {
	r, err := s.store.GetRank(ctx, userID)
	if err != nil || r == nil {
		return 0, false, err
	}
	return r.Rating, true, nil
}

func (s *LadderService) Leaderboard(ctx context.Context, limit int) ([]models.LadderRank, error) {
	return s.store.TopRanks(ctx, limit)
}

func (s *LadderService) History(ctx context.Context, userID string, limit int) ([]models.RatingChange, error) {
	return s.store.RatingHistory(ctx, userID, limit)
}

func (s *LadderService) loadOrNew(ctx context.Context, userID string) (*models.LadderRank, error) {
	r, err := s.store.GetRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r != nil {
		return r, nil
	}
	now := s.clock.Now()
	return &models.LadderRank{
		UserID:    userID,
		Rating:    models.InitialRating,
		Tier:      TierFor(models.InitialRating),
		CreatedAt: now,
	}, nil
}

// RecordResult applies one decided result to both users. Replaying a result for
// a battle both users already recorded is a no-op.
func (s *LadderService) RecordResult(ctx context.Context, res MatchResult) (*LadderUpdate, error) {
	if res.WinnerID == "" || res.LoserID == "" || res.WinnerID == res.LoserID {
		return nil, newError(CodeInvalidArgument, "ladder result needs two distinct users")
	}
	unlock := s.locks.LockAll(res.WinnerID, res.LoserID)
	defer unlock()

	winner, err := s.loadOrNew(ctx, res.WinnerID)
	if err != nil {
		return nil, err
	}
	loser, err := s.loadOrNew(ctx, res.LoserID)
	if err != nil {
		return nil, err
	}
	if res.BattleID != "" && winner.LastBattleID == res.BattleID && loser.LastBattleID == res.BattleID {
		return &LadderUpdate{Winner: *winner, Loser: *loser}, nil
	}

	winnerBefore, loserBefore := winner.Rating, loser.Rating
	delta := RatingDelta(winner.Rating, loser.Rating, res.WinnerScore, res.LoserScore)
	winner.Rating += delta
	loser.Rating = max(models.RatingFloor, loser.Rating-delta)

	now := s.clock.Now()
	applyOutcome(winner, true, res.BattleID, now)
	applyOutcome(loser, false, res.BattleID, now)

	if err := s.store.SaveRank(ctx, winner); err != nil {
		return nil, err
	}
	if err := s.store.SaveRank(ctx, loser); err != nil {
		return nil, err
	}
	changes := []models.RatingChange{
		{UserID: winner.UserID, OpponentID: loser.UserID, Before: winnerBefore, After: winner.Rating, Won: true},
		{UserID: loser.UserID, OpponentID: winner.UserID, Before: loserBefore, After: loser.Rating},
	}
	for _, c := range changes {
		c.ID = uuid.NewString()
		c.BattleID = res.BattleID
		c.Delta = c.After - c.Before
		c.CreatedAt = now
		if err := s.store.AppendRatingChange(ctx, c); err != nil {
			return nil, err
		}
	}

	s.bus.PublishAll([]Event{{
		Type:     EventLadderUpdated,
		BattleID: res.BattleID,
		UserIDs:  []string{winner.UserID, loser.UserID},
		Data: map[string]any{
			"delta":         delta,
			"winner_rating": winner.Rating,
			"loser_rating":  loser.Rating,
			"winner_tier":   winner.Tier,
			"loser_tier":    loser.Tier,
		},
		At: now,
	}})

	return &LadderUpdate{Winner: *winner, Loser: *loser, Delta: delta}, nil
}

func applyOutcome(r *models.LadderRank, won bool, battleID string, now time.Time) {
	outcome := models.StreakLoss
	if won {
		r.Wins++
		outcome = models.StreakWin
	} else {
		r.Losses++
	}
	r.WinRate = float64(r.Wins) / float64(r.Wins+r.Losses)
	if r.StreakType == outcome {
		r.StreakCount++
	} else {
		r.StreakType = outcome
		r.StreakCount = 1
	}
	r.Tier = TierFor(r.Rating)
	r.NextTierProgress = NextTierProgress(r.Rating)
	r.LastBattleID = battleID
	r.UpdatedAt = now
}
