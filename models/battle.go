package models

import (
	"time"
)

// BattleType selects capacity, round count and rating behaviour
type BattleType string

const (
	BattleTypeQuick      BattleType = "quick"
	BattleTypeTournament BattleType = "tournament"
	BattleTypeLadder     BattleType = "ladder"
	BattleTypeCustom     BattleType = "custom"
)

func (t BattleType) Valid() bool {
	switch t {
	case BattleTypeQuick, BattleTypeTournament, BattleTypeLadder, BattleTypeCustom:
		return true
	}
	return false
}

// BattleFormat decides how rosters are built
type BattleFormat string

const (
	BattleFormatClassic  BattleFormat = "classic"
	BattleFormatDraft    BattleFormat = "draft"
	BattleFormatBestBall BattleFormat = "best_ball"
	BattleFormatSurvivor BattleFormat = "survivor"
)

func (f BattleFormat) Valid() bool {
	switch f {
	case BattleFormatClassic, BattleFormatDraft, BattleFormatBestBall, BattleFormatSurvivor:
		return true
	}
	return false
}

// BattleStatus: waiting → drafting (draft format only) → active → completed
type BattleStatus string

const (
	BattleStatusWaiting   BattleStatus = "waiting"
	BattleStatusDrafting  BattleStatus = "drafting"
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
)

func (s BattleStatus) order() int {
	switch s {
	case BattleStatusWaiting:
		return 0
	case BattleStatusDrafting:
		return 1
	case BattleStatusActive:
		return 2
	case BattleStatusCompleted:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving to next keeps the status monotonic.
func (s BattleStatus) CanTransitionTo(next BattleStatus) bool {
	return next.order() > s.order()
}

// Capacity limits per battle type
const (
	QuickCapacity         = 2
	LadderMaxCapacity     = 4
	TournamentMaxCapacity = 8
	CustomMaxCapacity     = 8
	DefaultCustomCapacity = 4
	MinCapacity           = 2
	DefaultCustomRounds   = 3
)

// BattleSettings is copied into every round; rounds never mutate it
type BattleSettings struct {
	RosterRequirements map[string]int `json:"roster_requirements"`
	SalaryCap          float64        `json:"salary_cap"`
	ScoringSystem      string         `json:"scoring_system"`
	PowerUpsEnabled    *bool          `json:"power_ups_enabled,omitempty"` // nil = enabled
	AllowedPowerUps    []string       `json:"allowed_power_ups,omitempty"` // empty = whole catalog
	RoundDuration      time.Duration  `json:"round_duration"`
	DraftTimeLimit     time.Duration  `json:"draft_time_limit"` // 0 = auto draft immediately
	Capacity           int            `json:"capacity"`
	Rounds             int            `json:"rounds,omitempty"` // custom battles only
	BenchSize          int            `json:"bench_size"`
}

// PowerUpsOn reports whether power-ups may be played. Unset means yes.
func (s BattleSettings) PowerUpsOn() bool {
	return s.PowerUpsEnabled == nil || *s.PowerUpsEnabled
}

// Battle is a single head-to-head contest
type Battle struct {
	ID           string         `json:"id"`
	Type         BattleType     `json:"type"`
	Format       BattleFormat   `json:"format"`
	Status       BattleStatus   `json:"status"`
	CreatorID    string         `json:"creator_id"`
	IsPublic     bool           `json:"is_public"`
	Invitees     []string       `json:"invitees,omitempty"`
	Participants []*Participant `json:"participants"`
	Settings     BattleSettings `json:"settings"`
	Rounds       []*BattleRound `json:"rounds"`
	// CurrentRound is the 1-based round number; 0 while waiting or drafting.
	CurrentRound  int               `json:"current_round"`
	TotalRounds   int               `json:"total_rounds"`
	WinnerID      string            `json:"winner_id,omitempty"`
	Prizes        []PrizeTableEntry `json:"prizes,omitempty"`
	ActiveEffects []ActiveEffect    `json:"active_effects,omitempty"`
	Draft         *DraftState       `json:"draft,omitempty"`

	// Set when the battle plays a tournament bracket match
	TournamentID string `json:"tournament_id,omitempty"`
	BracketRound int    `json:"bracket_round,omitempty"`
	BracketMatch int    `json:"bracket_match,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Participant is owned by exactly one battle
type Participant struct {
	UserID       string           `json:"user_id"`
	Roster       *Roster          `json:"roster,omitempty"`
	Score        float64          `json:"score"`
	RoundScores  []float64        `json:"round_scores"`
	Rank         int              `json:"rank,omitempty"` // assigned at completion
	PowerUpsUsed []PowerUpUsage   `json:"power_ups_used,omitempty"`
	Stats        ParticipantStats `json:"stats"`
	Rating       int              `json:"rating,omitempty"` // ladder rating when joining, 0 = unrated
	JoinedAt     time.Time        `json:"joined_at"`
}

type ParticipantStats struct {
	RoundsWon    int     `json:"rounds_won"`
	HighestScore float64 `json:"highest_score"`
	Comebacks    int     `json:"comebacks"`
}

// PowerUpUsage is the round-stamped history used for cooldown checks
type PowerUpUsage struct {
	PowerUpID string        `json:"power_up_id"`
	Round     int           `json:"round"`
	Target    PowerUpTarget `json:"target"`
	UsedAt    time.Time     `json:"used_at"`
}

// BattleRound holds the pairings and leaderboard of one timed round
type BattleRound struct {
	Number      int              `json:"number"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     time.Time        `json:"end_date"`
	Matchups    []Matchup        `json:"matchups"`
	Leaderboard RoundLeaderboard `json:"leaderboard"`
	Events      []BattleEvent    `json:"events"`
	Completed   bool             `json:"completed"`
}

// Matchup pairs two participants within a round
type Matchup struct {
	ParticipantA string  `json:"participant_a"`
	ParticipantB string  `json:"participant_b"`
	ScoreA       float64 `json:"score_a"`
	ScoreB       float64 `json:"score_b"`
	WinnerID     string  `json:"winner_id,omitempty"`
	Margin       float64 `json:"margin"`
	Tied         bool    `json:"tied"`
}

// Opponent returns the other side of the matchup, or "" if userID is not in it.
func (m Matchup) Opponent(userID string) string {
	switch userID {
	case m.ParticipantA:
		return m.ParticipantB
	case m.ParticipantB:
		return m.ParticipantA
	}
	return ""
}

type RoundLeaderboard struct {
	Entries      []LeaderboardEntry `json:"entries"`
	AverageScore float64            `json:"average_score"`
	HighScore    float64            `json:"high_score"`
}

type LeaderboardEntry struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

type BattleEventType string

const (
	BattleEventMilestone BattleEventType = "milestone"
	BattleEventUpset     BattleEventType = "upset"
	BattleEventComeback  BattleEventType = "comeback"
	BattleEventPowerUp   BattleEventType = "power_up"
)

// BattleEvent is append-only; never mutated after insertion
type BattleEvent struct {
	Type    BattleEventType   `json:"type"`
	UserID  string            `json:"user_id,omitempty"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
	At      time.Time         `json:"at"`
}

// Participant returns the participant with userID, or nil.
func (b *Battle) Participant(userID string) *Participant {
	for _, p := range b.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Round returns round n (1-based), or nil.
func (b *Battle) Round(n int) *BattleRound {
	if n < 1 || n > len(b.Rounds) {
		return nil
	}
	return b.Rounds[n-1]
}

func (b *Battle) ActiveRound() *BattleRound {
	return b.Round(b.CurrentRound)
}

// HasUser reports whether userID participates in the battle.
func (b *Battle) HasUser(userID string) bool {
	return b.Participant(userID) != nil
}

// MatchupFor returns the matchup of userID in round n.
func (b *Battle) MatchupFor(n int, userID string) (Matchup, bool) {
	r := b.Round(n)
	if r == nil {
		return Matchup{}, false
	}
	for _, m := range r.Matchups {
		if m.Opponent(userID) != "" {
			return m, true
		}
	}
	return Matchup{}, false
}
