package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"battle-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps aggregates as JSON documents in postgres, with the columns
// needed for filtering broken out and indexed.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates every table the store needs.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.BattleRecord{},
		&models.BattleParticipantRecord{},
		&models.TournamentRecord{},
		&models.LadderRank{},
		&models.RatingChange{},
		&models.Reward{},
	)
}

func battleToRecord(b *models.Battle) (*models.BattleRecord, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	rec := &models.BattleRecord{
		ID:           b.ID,
		Type:         string(b.Type),
		Format:       string(b.Format),
		Status:       string(b.Status),
		CreatorID:    b.CreatorID,
		TournamentID: b.TournamentID,
		Data:         raw,
	}
	rec.CreatedAt = b.CreatedAt
	rec.UpdatedAt = b.UpdatedAt
	for _, p := range b.Participants {
		rec.Participants = append(rec.Participants, models.BattleParticipantRecord{
			BattleID:  b.ID,
			UserID:    p.UserID,
			CreatedAt: b.CreatedAt,
		})
	}
	return rec, nil
}

func recordToBattle(rec *models.BattleRecord) (*models.Battle, error) {
	var b models.Battle
	if err := json.Unmarshal(rec.Data, &b); err != nil {
		return nil, fmt.Errorf("decode battle %s: %w", rec.ID, err)
	}
	return &b, nil
}

func (s *GormStore) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	var rec models.BattleRecord
	err := s.DB.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("battle", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load battle %s: %w", id, err)
	}
	return recordToBattle(&rec)
}

func (s *GormStore) SaveBattle(ctx context.Context, b *models.Battle) error {
	rec, err := battleToRecord(b)
	if err != nil {
		return fmt.Errorf("encode battle %s: %w", b.ID, err)
	}
	participants := rec.Participants
	rec.Participants = nil

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("save battle %s: %w", b.ID, err)
		}
		if err := tx.Where("battle_id = ?", b.ID).Delete(&models.BattleParticipantRecord{}).Error; err != nil {
			return fmt.Errorf("clear participants of %s: %w", b.ID, err)
		}
		if len(participants) == 0 {
			return nil
		}
		return tx.Create(&participants).Error
	})
}

func (s *GormStore) DeleteBattle(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("battle_id = ?", id).Delete(&models.BattleParticipantRecord{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.BattleRecord{}, "id = ?", id).Error
	})
}

func (s *GormStore) ListBattles(ctx context.Context, filter BattleFilter) ([]*models.Battle, error) {
	q := s.DB.WithContext(ctx).Model(&models.BattleRecord{})
	if filter.UserID != "" {
		q = q.Joins("JOIN battle_participants bp ON bp.battle_id = battles.id").
			Where("bp.user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("battles.type = ?", string(filter.Type))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("battles.status IN ?", statuses)
	}
	q = q.Order("battles.created_at DESC").Order("battles.id DESC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var recs []models.BattleRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	out := make([]*models.Battle, 0, len(recs))
	for i := range recs {
		b, err := recordToBattle(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *GormStore) GetRank(ctx context.Context, userID string) (*models.LadderRank, error) {
	var r models.LadderRank
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ladder rank %s: %w", userID, err)
	}
	return &r, nil
}

func (s *GormStore) SaveRank(ctx context.Context, r *models.LadderRank) error {
	return s.DB.WithContext(ctx).Save(r).Error
}

func (s *GormStore) TopRanks(ctx context.Context, limit int) ([]models.LadderRank, error) {
	var ranks []models.LadderRank
	q := s.DB.WithContext(ctx).Order("rating DESC").Order("user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ranks).Error; err != nil {
		return nil, fmt.Errorf("top ranks: %w", err)
	}
	return ranks, nil
}

func (s *GormStore) AppendRatingChange(ctx context.Context, c models.RatingChange) error {
	return s.DB.WithContext(ctx).Create(&c).Error
}

func (s *GormStore) RatingHistory(ctx context.Context, userID string, limit int) ([]models.RatingChange, error) {
	var rows []models.RatingChange
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("rating history %s: %w", userID, err)
	}
	return rows, nil
}

func tournamentToRecord(t *models.Tournament) (*models.TournamentRecord, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	rec := &models.TournamentRecord{
		ID:     t.ID,
		Slug:   t.Slug,
		Format: string(t.Format),
		Status: string(t.Status),
		Data:   raw,
	}
	rec.CreatedAt = t.CreatedAt
	rec.UpdatedAt = t.UpdatedAt
	return rec, nil
}

func (s *GormStore) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	var rec models.TournamentRecord
	err := s.DB.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("tournament", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load tournament %s: %w", id, err)
	}
	var t models.Tournament
	if err := json.Unmarshal(rec.Data, &t); err != nil {
		return nil, fmt.Errorf("decode tournament %s: %w", id, err)
	}
	return &t, nil
}

func (s *GormStore) SaveTournament(ctx context.Context, t *models.Tournament) error {
	rec, err := tournamentToRecord(t)
	if err != nil {
		return fmt.Errorf("encode tournament %s: %w", t.ID, err)
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (s *GormStore) ListTournaments(ctx context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error) {
	q := s.DB.WithContext(ctx).Order("created_at ASC")
	if len(statuses) > 0 {
		list := make([]string, len(statuses))
		for i, st := range statuses {
			list[i] = string(st)
		}
		q = q.Where("status IN ?", list)
	}
	var recs []models.TournamentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	out := make([]*models.Tournament, 0, len(recs))
	for _, rec := range recs {
		var t models.Tournament
		if err := json.Unmarshal(rec.Data, &t); err != nil {
			return nil, fmt.Errorf("decode tournament %s: %w", rec.ID, err)
		}
		out = append(out, &t)
	}
	return out, nil
}
