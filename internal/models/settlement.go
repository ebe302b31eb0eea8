package models

import (
	"time"

	"gorm.io/datatypes"
)

// Settlement is the durable summary emitted when a topic is revealed.
// One row per topic, written in the same transaction as the payouts.
type Settlement struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	TopicID       string `gorm:"type:varchar(36);not null;uniqueIndex"`
	TopicType     TopicType
	CorrectChoice string `gorm:"type:text;not null"`
	SettledBy     string `gorm:"type:varchar(100);not null"`

	TotalPool   int64 `gorm:"not null"`
	WinningPool int64 `gorm:"not null"`

	// OptionStats is a jsonb array of per-option vote counts and staked
	// totals; Credits is a jsonb array of {user_id, amount} pairs.
	OptionStats datatypes.JSON `gorm:"type:jsonb"`
	Credits     datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Settlement) TableName() string {
	return "settlements"
}
