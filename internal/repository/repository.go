package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"coachdesk/internal/models"
)

type ListTopicsParams struct {
	Status  *models.TopicStatus
	MatchID *string
	Limit   int
	Offset  int
}

// Repository is the storage contract for the topics core. The ...Tx variants
// run against a caller-supplied transaction so services can compose one unit
// of work (stake escrow + record insert, status flip + payouts).
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Topics
	InsertTopic(ctx context.Context, item *models.Topic) error
	GetTopicByID(ctx context.Context, id string) (*models.Topic, error)
	GetTopicByIDTx(tx *gorm.DB, id string) (*models.Topic, error)
	ListTopics(ctx context.Context, params ListTopicsParams) ([]models.Topic, error)
	// UpdateTopicStatus is a compare-and-swap: the row moves to `to` only if
	// its current status is in `from`, and the return reports whether the
	// swap happened.
	UpdateTopicStatus(ctx context.Context, id string, from []models.TopicStatus, to models.TopicStatus) (bool, error)
	UpdateTopicStatusTx(tx *gorm.DB, id string, from []models.TopicStatus, to models.TopicStatus) (bool, error)
	SetTopicCorrectChoiceTx(tx *gorm.DB, id string, choice string) error
	CloseTopicsPastReveal(ctx context.Context, now time.Time) (int64, error)

	// Participations
	InsertParticipationTx(tx *gorm.DB, item *models.Participation) error
	ListParticipationsByTopic(ctx context.Context, topicID string) ([]models.Participation, error)
	ListParticipationsByTopicTx(tx *gorm.DB, topicID string) ([]models.Participation, error)
	ListParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error)
	HasParticipatedTx(tx *gorm.DB, topicID, userID string) (bool, error)

	// Points ledger
	// EnsurePointsAccountTx loads the account under a row lock, creating it
	// with the starting grant (and its ledger entry) on first touch.
	EnsurePointsAccountTx(tx *gorm.DB, userID string, startingGrant int64) (*models.PointsAccount, error)
	// ApplyPointsDeltaTx applies a signed delta to the locked account,
	// flooring the result at zero, and appends the ledger entry. Returns the
	// new balance.
	ApplyPointsDeltaTx(tx *gorm.DB, userID string, delta int64, cause models.PointsCause, refID string, startingGrant int64) (int64, error)
	GetPointsAccount(ctx context.Context, userID string) (*models.PointsAccount, error)
	ListPointsEntriesByUser(ctx context.Context, userID string, limit int) ([]models.PointsEntry, error)

	// Settlements
	InsertSettlementTx(tx *gorm.DB, item *models.Settlement) error
	GetSettlementByTopicID(ctx context.Context, topicID string) (*models.Settlement, error)
}
