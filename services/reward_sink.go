package services

import (
	"context"
	"fmt"
	"strings"

	"battle-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRewardSink writes each component of a prize bundle as a Reward row.
type GormRewardSink struct {
	DB *gorm.DB
}

func NewGormRewardSink(db *gorm.DB) *GormRewardSink {
	return &GormRewardSink{DB: db}
}

func rewardCategory(source string) models.RewardCategory {
	if strings.HasPrefix(source, "tournament:") {
		return models.RewardCategoryTournamentPrize
	}
	return models.RewardCategoryBattlePrize
}

// rewardRows expands a grant into one row per bundle component.
func rewardRows(userID string, g models.PrizeGrant) []models.Reward {
	base := models.Reward{
		Category: rewardCategory(g.Source),
		Source:   g.Source,
		Rank:     g.Rank,
		UserID:   userID,
		Status:   models.RewardStatusPublished,
	}
	var rows []models.Reward
	add := func(t models.RewardType, title string, amount float64, details string) {
		r := base
		r.ID = uuid.NewString()
		r.Type = t
		r.Title = title
		r.Amount = amount
		r.ItemDetails = details
		rows = append(rows, r)
	}
	b := g.Reward
	if b.Points != 0 {
		add(models.RewardTypePoints, fmt.Sprintf("%s: %d points", g.Label, b.Points), float64(b.Points), "")
	}
	if b.Currency != 0 {
		add(models.RewardTypeCash, fmt.Sprintf("%s: %.2f", g.Label, b.Currency), b.Currency, "")
	}
	for _, badge := range b.Badges {
		add(models.RewardTypeBadge, badge, 0, "")
	}
	for _, title := range b.Titles {
		add(models.RewardTypeTitle, title, 0, "")
	}
	for _, item := range b.Items {
		add(models.RewardTypeItem, item, 0, item)
	}
	return rows
}

func (s *GormRewardSink) Grant(ctx context.Context, userID string, g models.PrizeGrant) error {
	rows := rewardRows(userID, g)
	if len(rows) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&rows).Error
}
