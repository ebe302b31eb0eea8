package models

import (
	"time"

	"gorm.io/datatypes"
)

// Participation is one stake/vote record. The topic snapshot columns are
// denormalized for history views only; settlement always re-reads the live
// topic row.
type Participation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	TopicID string `gorm:"type:varchar(36);not null;index;uniqueIndex:uniq_participation_topic_user,priority:1"`

	// CreditUserID is the true user id, kept only for payout crediting and
	// for the uniqueness guarantee. It is never exposed in public views.
	CreditUserID string `gorm:"type:varchar(100);not null;index;uniqueIndex:uniq_participation_topic_user,priority:2"`

	// VoterIdentity is what other participants see: a deterministic
	// pseudonym for normal submissions, a random ephemeral id for anonymous
	// ones.
	VoterIdentity string `gorm:"type:varchar(64);not null;index"`
	Anonymous     bool   `gorm:"not null"`

	Choice string `gorm:"type:text;not null"`

	// Stake is escrowed by immediate ledger debit at submission. Always
	// zero for vote/mission topics.
	Stake int64 `gorm:"not null;default:0"`

	// Snapshot of the topic at participation time.
	TopicTitle   string         `gorm:"type:text"`
	TopicType    TopicType      `gorm:"type:varchar(10)"`
	TopicOptions datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Participation) TableName() string {
	return "participations"
}
