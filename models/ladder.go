package models

import (
	"time"
)

// Ladder constants
const (
	InitialRating = 1200
	RatingFloor   = 800
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
	TierMaster   Tier = "master"
)

// TierThreshold is the minimum rating for a tier
type TierThreshold struct {
	Tier      Tier
	MinRating int
}

// TierThresholds are strictly increasing
var TierThresholds = []TierThreshold{
	{TierBronze, 0},
	{TierSilver, 1200},
	{TierGold, 1400},
	{TierPlatinum, 1600},
	{TierDiamond, 1800},
	{TierMaster, 2000},
}

type StreakType string

const (
	StreakWin  StreakType = "win"
	StreakLoss StreakType = "loss"
)

// LadderRank is created lazily on a user's first rated result
type LadderRank struct {
	UserID           string     `json:"user_id" gorm:"primaryKey"`
	Rating           int        `json:"rating" gorm:"default:1200;index"`
	Tier             Tier       `json:"tier" gorm:"type:varchar(16)"`
	Wins             int        `json:"wins" gorm:"default:0"`
	Losses           int        `json:"losses" gorm:"default:0"`
	WinRate          float64    `json:"win_rate" gorm:"default:0"`
	StreakType       StreakType `json:"streak_type,omitempty" gorm:"type:varchar(8)"`
	StreakCount      int        `json:"streak_count" gorm:"default:0"`
	NextTierProgress float64    `json:"next_tier_progress" gorm:"default:0"`
	LastBattleID     string     `json:"last_battle_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// RatingChange is one row of a user's rating history
type RatingChange struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	OpponentID string    `json:"opponent_id"`
	BattleID   string    `json:"battle_id" gorm:"index"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
	Delta      int       `json:"delta"`
	Won        bool      `json:"won"`
	CreatedAt  time.Time `json:"created_at"`
}
