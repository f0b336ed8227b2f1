package models

import (
	"time"

	gorm "gorm.io/gorm"
)

// RewardType indicates whether the reward is currency/points or an item
type RewardType string

const (
	RewardTypeCash   RewardType = "cash"
	RewardTypePoints RewardType = "points"
	RewardTypeItem   RewardType = "item"
	RewardTypeBadge  RewardType = "badge"
	RewardTypeTitle  RewardType = "title"
)

type RewardCategory string

const (
	RewardCategoryBattlePrize     RewardCategory = "battle_prize"
	RewardCategoryTournamentPrize RewardCategory = "tournament_prize"
)

// RewardStatus indicates the publishing status of the reward
type RewardStatus string

const (
	RewardStatusDraft     RewardStatus = "draft"
	RewardStatusPublished RewardStatus = "published"
	RewardStatusArchived  RewardStatus = "archived"
)

// Reward is one granted component of a prize bundle
type Reward struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Type        RewardType     `gorm:"not null" json:"type"`
	Category    RewardCategory `gorm:"not null" json:"category"`
	Source      string         `gorm:"index" json:"source"`
	Amount      float64        `json:"amount"`
	ItemDetails string         `json:"item_details"`
	Rank        int            `json:"rank"`
	Claimed     bool           `gorm:"default:false" json:"claimed"`
	Viewed      bool           `gorm:"default:false;index" json:"viewed"`
	UserID      string         `gorm:"index" json:"user_id"`
	Status      RewardStatus   `gorm:"not null;default:'published'" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
