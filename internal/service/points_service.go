package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"coachdesk/internal/models"
	"coachdesk/internal/repository"
)

// PointsService owns each user's point balance. Every mutation goes through
// ApplyDelta, which serializes per account at the storage layer and appends
// an attributable ledger entry; the balance column is just the projection.
type PointsService struct {
	Repo          repository.Repository
	Logger        *zap.Logger
	StartingGrant int64
}

// GetBalance returns the user's balance, granting the starting balance on
// first touch.
func (s *PointsService) GetBalance(ctx context.Context, userID string) (int64, error) {
	acct, err := s.Repo.GetPointsAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if acct != nil {
		return acct.Balance, nil
	}

	var balance int64
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		a, err := s.Repo.EnsurePointsAccountTx(tx, userID, s.StartingGrant)
		if err != nil {
			return err
		}
		balance = a.Balance
		return nil
	})
	return balance, err
}

// ApplyDelta applies a signed delta atomically, flooring the result at zero.
func (s *PointsService) ApplyDelta(ctx context.Context, userID string, delta int64, cause models.PointsCause, refID string) (int64, error) {
	var balance int64
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		b, err := s.Repo.ApplyPointsDeltaTx(tx, userID, delta, cause, refID, s.StartingGrant)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Debug("points delta applied",
			zap.String("user_id", userID),
			zap.Int64("delta", delta),
			zap.String("cause", string(cause)),
			zap.String("ref_id", refID),
			zap.Int64("balance", balance),
		)
	}
	return balance, nil
}

// History returns the user's ledger entries, most recent first.
func (s *PointsService) History(ctx context.Context, userID string, limit int) ([]models.PointsEntry, error) {
	return s.Repo.ListPointsEntriesByUser(ctx, userID, limit)
}
