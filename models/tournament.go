package models

import (
	"math/bits"
	"time"
)

// TournamentFormat decides bracket shape and round count
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
	FormatSwiss             TournamentFormat = "swiss"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatRoundRobin, FormatSwiss:
		return true
	}
	return false
}

func (f TournamentFormat) Elimination() bool {
	return f == FormatSingleElimination || f == FormatDoubleElimination
}

type TournamentStatus string

const (
	TournamentStatusRegistration TournamentStatus = "registration"
	TournamentStatusInProgress   TournamentStatus = "in_progress"
	TournamentStatusCompleted    TournamentStatus = "completed"
)

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusPlaying   MatchStatus = "playing"
	MatchStatusCompleted MatchStatus = "completed"
)

// Bracket labels for double elimination
const (
	BracketWinners = "winners"
	BracketLosers  = "losers"
	BracketFinal   = "final"
)

// Tournament represents a fixed-size elimination or league event
type Tournament struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Slug         string                 `json:"slug"`
	Format       TournamentFormat       `json:"format"`
	Size         int                    `json:"size"`
	Status       TournamentStatus       `json:"status"`
	Entrants     []TournamentEntrant    `json:"entrants"`
	Bracket      Bracket                `json:"bracket"`
	PrizeTable   []PrizeTableEntry      `json:"prize_table"`
	Schedule     TournamentSchedule     `json:"schedule"`
	Requirements TournamentRequirements `json:"requirements"`
	TotalRounds  int                    `json:"total_rounds"`
	CurrentRound int                    `json:"current_round"`
	ChampionID   string                 `json:"champion_id,omitempty"`
	// Settings applied to every battle played for this tournament
	BattleSettings *BattleSettings `json:"battle_settings,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

type TournamentEntrant struct {
	UserID          string    `json:"user_id"`
	Seed            int       `json:"seed"`
	Rating          int       `json:"rating"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	PointsFor       float64   `json:"points_for"`
	EliminatedRound int       `json:"eliminated_round,omitempty"`
	FinalRank       int       `json:"final_rank,omitempty"`
	JoinedAt        time.Time `json:"joined_at"`
}

type TournamentRequirements struct {
	MinRating int `json:"min_rating,omitempty"`
}

type Bracket struct {
	Rounds []BracketRound `json:"rounds"`
}

type BracketRound struct {
	Number  int            `json:"number"`
	Matches []BracketMatch `json:"matches"`
}

// BracketMatch names two competitors; empty competitor means an open slot or a bye
type BracketMatch struct {
	Number      int         `json:"number"`
	Bracket     string      `json:"bracket,omitempty"`
	CompetitorA string      `json:"competitor_a,omitempty"`
	CompetitorB string      `json:"competitor_b,omitempty"`
	SeedA       int         `json:"seed_a,omitempty"`
	SeedB       int         `json:"seed_b,omitempty"`
	BattleID    string      `json:"battle_id,omitempty"`
	WinnerID    string      `json:"winner_id,omitempty"`
	ScoreA      float64     `json:"score_a"`
	ScoreB      float64     `json:"score_b"`
	Bye         bool        `json:"bye,omitempty"`
	Status      MatchStatus `json:"status"`
}

// Ready reports whether both competitors are known and the match is unplayed.
func (m BracketMatch) Ready() bool {
	return m.Status == MatchStatusPending && m.CompetitorA != "" && m.CompetitorB != ""
}

// Loser returns the losing competitor of a completed match.
func (m BracketMatch) Loser() string {
	if m.WinnerID == "" || m.Bye {
		return ""
	}
	if m.WinnerID == m.CompetitorA {
		return m.CompetitorB
	}
	return m.CompetitorA
}

type TournamentSchedule struct {
	RegistrationOpens  time.Time        `json:"registration_opens"`
	RegistrationCloses time.Time        `json:"registration_closes"`
	Rounds             []ScheduledRound `json:"rounds"`
}

type ScheduledRound struct {
	Number int       `json:"number"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Entrant returns a pointer into Entrants, or nil.
func (t *Tournament) Entrant(userID string) *TournamentEntrant {
	for i := range t.Entrants {
		if t.Entrants[i].UserID == userID {
			return &t.Entrants[i]
		}
	}
	return nil
}

func (t *Tournament) Round(n int) *BracketRound {
	if n < 1 || n > len(t.Bracket.Rounds) {
		return nil
	}
	return &t.Bracket.Rounds[n-1]
}

// EliminationRounds returns ceil(log2(size)).
func EliminationRounds(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}
