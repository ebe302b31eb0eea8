package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type TopicType string

const (
	TopicTypeBet     TopicType = "bet"
	TopicTypeVote    TopicType = "vote"
	TopicTypeMission TopicType = "mission"
)

type TopicStatus string

const (
	TopicStatusActive   TopicStatus = "active"
	TopicStatusClosed   TopicStatus = "closed"
	TopicStatusRevealed TopicStatus = "revealed"
)

// Topic is a prediction subject with a fixed, ordered option set.
// Options is a jsonb array of strings; the declared correct choice must
// always be drawn from it.
type Topic struct {
	ID          string         `gorm:"type:varchar(36);primaryKey"`
	Type        TopicType      `gorm:"type:varchar(10);not null;index"`
	Title       string         `gorm:"type:text;not null"`
	Description string         `gorm:"type:text"`
	Options     datatypes.JSON `gorm:"type:jsonb;not null"`

	Status TopicStatus `gorm:"type:varchar(10);not null;index;default:'active'"`

	// MatchID links the topic to a scrim/official match on the dashboard.
	MatchID *string `gorm:"type:varchar(100);index"`

	// RevealAt is advisory: the auto-close job soft-locks the topic when it
	// passes, but settlement stays a privileged manual action.
	RevealAt *time.Time `gorm:"type:timestamptz;index"`

	// Reward is the flat mission payout. Zero for bet/vote topics.
	Reward int64 `gorm:"not null;default:0"`

	// CorrectChoice is set once, at settlement.
	CorrectChoice *string `gorm:"type:text"`

	CreatedBy string    `gorm:"type:varchar(100);not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Topic) TableName() string {
	return "topics"
}

// OptionList decodes the jsonb option array.
func (t *Topic) OptionList() []string {
	if t == nil || len(t.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(t.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// HasOption reports whether choice is a member of the option set.
func (t *Topic) HasOption(choice string) bool {
	for _, opt := range t.OptionList() {
		if opt == choice {
			return true
		}
	}
	return false
}
