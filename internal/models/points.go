package models

import "time"

// PointsCause attributes a ledger delta to the operation that produced it.
type PointsCause string

const (
	PointsCauseStartingGrant PointsCause = "starting_grant"
	PointsCauseStake         PointsCause = "stake"
	PointsCausePayout        PointsCause = "payout"
	PointsCauseMissionReward PointsCause = "mission_reward"
	PointsCauseAdjust        PointsCause = "adjust"
)

// PointsAccount is the derived projection of a user's ledger entries.
// Balance never goes below zero.
type PointsAccount struct {
	UserID    string    `gorm:"type:varchar(100);primaryKey"`
	Balance   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PointsAccount) TableName() string {
	return "points_accounts"
}

// PointsEntry is one append-only ledger row. Delta is the requested signed
// amount; BalanceAfter reflects the zero floor, so the applied amount is
// recoverable from consecutive entries.
type PointsEntry struct {
	ID           uint64      `gorm:"primaryKey;autoIncrement"`
	UserID       string      `gorm:"type:varchar(100);not null;index"`
	Delta        int64       `gorm:"not null"`
	BalanceAfter int64       `gorm:"not null"`
	Cause        PointsCause `gorm:"type:varchar(20);not null;index"`

	// RefID points at the topic (or other entity) that caused the delta.
	RefID string `gorm:"type:varchar(100);index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (PointsEntry) TableName() string {
	return "points_entries"
}
