package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coachdesk/internal/domain"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
)

// Transient contention (sqlite busy, postgres deadlock/serialization) is
// retried this many times before the caller sees unavailable.
const txAttempts = 3

const txRetryBase = 25 * time.Millisecond

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return domain.ErrUnavailable
	}
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * txRetryBase):
			}
		}
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !retryableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: storage contention: %v", domain.ErrUnavailable, err)
}

// retryableTxError matches driver-level contention. Business errors from the
// transaction body never match, so they surface on the first attempt.
func retryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"database is locked", // sqlite
		"database table is locked",
		"sqlite_busy",
		"deadlock detected",          // postgres 40P01
		"could not serialize access", // postgres 40001
		"connection reset by peer",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// lockForUpdate adds FOR UPDATE on dialects that support it. sqlite
// serializes writers on its own, so the clause is skipped there.
func (s *Store) lockForUpdate(q *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// --- Topics -----------------------------------------------------------------

func (s *Store) InsertTopic(ctx context.Context, item *models.Topic) error {
	if s == nil || s.db == nil || item == nil {
		return domain.ErrUnavailable
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetTopicByID(ctx context.Context, id string) (*models.Topic, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	var item models.Topic
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetTopicByIDTx(tx *gorm.DB, id string) (*models.Topic, error) {
	var item models.Topic
	err := s.lockForUpdate(tx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTopics(ctx context.Context, params repository.ListTopicsParams) ([]models.Topic, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	query := s.db.WithContext(ctx).Model(&models.Topic{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.MatchID != nil && *params.MatchID != "" {
		query = query.Where("match_id = ?", *params.MatchID)
	}
	// No default cap: the active board must show every open topic. Callers
	// that page pass an explicit limit.
	if params.Limit > 0 {
		limit := params.Limit
		if limit > 500 {
			limit = 500
		}
		query = query.Limit(limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	var items []models.Topic
	if err := query.Order("created_at desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateTopicStatus(ctx context.Context, id string, from []models.TopicStatus, to models.TopicStatus) (bool, error) {
	if s == nil || s.db == nil {
		return false, domain.ErrUnavailable
	}
	return s.UpdateTopicStatusTx(s.db.WithContext(ctx), id, from, to)
}

func (s *Store) UpdateTopicStatusTx(tx *gorm.DB, id string, from []models.TopicStatus, to models.TopicStatus) (bool, error) {
	res := tx.Model(&models.Topic{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) SetTopicCorrectChoiceTx(tx *gorm.DB, id string, choice string) error {
	return tx.Model(&models.Topic{}).
		Where("id = ?", id).
		Update("correct_choice", choice).Error
}

func (s *Store) CloseTopicsPastReveal(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, domain.ErrUnavailable
	}
	res := s.db.WithContext(ctx).Model(&models.Topic{}).
		Where("status = ?", models.TopicStatusActive).
		Where("reveal_at IS NOT NULL AND reveal_at <= ?", now).
		Updates(map[string]any{
			"status":     models.TopicStatusClosed,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// --- Participations ---------------------------------------------------------

func (s *Store) InsertParticipationTx(tx *gorm.DB, item *models.Participation) error {
	err := tx.Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// The (topic_id, credit_user_id) unique index is the real guard
		// against concurrent double submission.
		return domain.ErrAlreadyParticipated
	}
	return err
}

func (s *Store) ListParticipationsByTopic(ctx context.Context, topicID string) ([]models.Participation, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	return s.ListParticipationsByTopicTx(s.db.WithContext(ctx), topicID)
}

func (s *Store) ListParticipationsByTopicTx(tx *gorm.DB, topicID string) ([]models.Participation, error) {
	var items []models.Participation
	if err := tx.Where("topic_id = ?", topicID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	var items []models.Participation
	if err := s.db.WithContext(ctx).
		Where("credit_user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) HasParticipatedTx(tx *gorm.DB, topicID, userID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Participation{}).
		Where("topic_id = ? AND credit_user_id = ?", topicID, userID).
		Count(&count).Error
	return count > 0, err
}

// --- Points ledger ----------------------------------------------------------

func (s *Store) EnsurePointsAccountTx(tx *gorm.DB, userID string, startingGrant int64) (*models.PointsAccount, error) {
	var acct models.PointsAccount
	err := s.lockForUpdate(tx).First(&acct, "user_id = ?", userID).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acct = models.PointsAccount{UserID: userID, Balance: startingGrant}
	if err := tx.Create(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a create race: re-read the winner's row.
			if err := s.lockForUpdate(tx).First(&acct, "user_id = ?", userID).Error; err != nil {
				return nil, err
			}
			return &acct, nil
		}
		return nil, err
	}
	if startingGrant > 0 {
		entry := models.PointsEntry{
			UserID:       userID,
			Delta:        startingGrant,
			BalanceAfter: startingGrant,
			Cause:        models.PointsCauseStartingGrant,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
	}
	return &acct, nil
}

func (s *Store) ApplyPointsDeltaTx(tx *gorm.DB, userID string, delta int64, cause models.PointsCause, refID string, startingGrant int64) (int64, error) {
	acct, err := s.EnsurePointsAccountTx(tx, userID, startingGrant)
	if err != nil {
		return 0, err
	}

	next := acct.Balance + delta
	if next < 0 {
		// Floored, not rejected: matches the product's observed behavior.
		next = 0
	}
	if err := tx.Model(&models.PointsAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    next,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		return 0, err
	}

	entry := models.PointsEntry{
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: next,
		Cause:        cause,
		RefID:        refID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) GetPointsAccount(ctx context.Context, userID string) (*models.PointsAccount, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	var acct models.PointsAccount
	err := s.db.WithContext(ctx).First(&acct, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Store) ListPointsEntriesByUser(ctx context.Context, userID string, limit int) ([]models.PointsEntry, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var items []models.PointsEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Settlements ------------------------------------------------------------

func (s *Store) InsertSettlementTx(tx *gorm.DB, item *models.Settlement) error {
	err := tx.Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadySettled
	}
	return err
}

func (s *Store) GetSettlementByTopicID(ctx context.Context, topicID string) (*models.Settlement, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrUnavailable
	}
	var item models.Settlement
	err := s.db.WithContext(ctx).First(&item, "topic_id = ?", topicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
