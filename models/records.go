package models

import (
	"time"

	"gorm.io/gorm"
)

// BattleRecord stores a battle aggregate as a JSON document with indexed columns
type BattleRecord struct {
	ID           string `gorm:"primaryKey"`
	Type         string `gorm:"type:varchar(16);index"`
	Format       string `gorm:"type:varchar(16)"`
	Status       string `gorm:"type:varchar(16);index"`
	CreatorID    string `gorm:"index"`
	TournamentID string `gorm:"index"`
	Data         []byte `gorm:"type:jsonb"`
	Timestamps

	Participants []BattleParticipantRecord `gorm:"foreignKey:BattleID;constraint:OnDelete:CASCADE"`
}

func (BattleRecord) TableName() string { return "battles" }

// BattleParticipantRecord indexes participation for history queries
type BattleParticipantRecord struct {
	BattleID  string    `gorm:"primaryKey"`
	UserID    string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"index"`
}

func (BattleParticipantRecord) TableName() string { return "battle_participants" }

type TournamentRecord struct {
	ID     string `gorm:"primaryKey"`
	Slug   string `gorm:"index"`
	Format string `gorm:"type:varchar(24)"`
	Status string `gorm:"type:varchar(16);index"`
	Data   []byte `gorm:"type:jsonb"`
	Timestamps
}

func (TournamentRecord) TableName() string { return "tournaments" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
