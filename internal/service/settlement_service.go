package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachdesk/internal/domain"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
	"coachdesk/internal/stream"
)

// SettlementService declares the correct outcome for a topic and
// redistributes points. Settlement is exactly-once: the status flip to
// revealed is a compare-and-swap inside the same transaction as every
// payout, so a topic is either fully settled or untouched.
type SettlementService struct {
	Repo          repository.Repository
	Events        *stream.Hub
	Logger        *zap.Logger
	StartingGrant int64
}

// Credit is one winner's payout within a settlement summary.
type Credit struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// SettlementEvent is the summary published to audit subscribers after the
// settlement transaction commits.
type SettlementEvent struct {
	TopicID       string           `json:"topic_id"`
	TopicType     models.TopicType `json:"topic_type"`
	CorrectChoice string           `json:"correct_choice"`
	SettledBy     string           `json:"settled_by"`
	TotalPool     int64            `json:"total_pool"`
	WinningPool   int64            `json:"winning_pool"`
	Options       []OptionStat     `json:"options"`
	Credits       []Credit         `json:"credits"`
	SettledAt     time.Time        `json:"settled_at"`
}

// Settle validates, flips the topic to revealed, and pays out.
//
// Payout models:
//   - bet/vote: pari-mutuel. Winners split the entire pool (their own stakes
//     plus the losers') proportionally to their stake, floor division. If
//     nobody picked the correct outcome the pool is simply gone; there are
//     no refunds.
//   - mission: every participant who matched the outcome gets the topic's
//     flat reward. No pool is involved.
func (s *SettlementService) Settle(ctx context.Context, topicID, correctChoice, actorID string, isAdmin bool) (*models.Settlement, error) {
	topic, err := s.Repo.GetTopicByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && topic.CreatedBy != actorID {
		return nil, fmt.Errorf("%w: only the creator or an admin may settle", domain.ErrForbidden)
	}
	if topic.Status == models.TopicStatusRevealed {
		return nil, domain.ErrAlreadySettled
	}
	if !topic.HasOption(correctChoice) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, correctChoice)
	}

	var settlement *models.Settlement
	var event SettlementEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		// The CAS is the idempotency guard under concurrency: only one
		// caller moves the row out of active/closed.
		swapped, err := s.Repo.UpdateTopicStatusTx(tx, topicID,
			[]models.TopicStatus{models.TopicStatusActive, models.TopicStatusClosed},
			models.TopicStatusRevealed)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrAlreadySettled
		}
		if err := s.Repo.SetTopicCorrectChoiceTx(tx, topicID, correctChoice); err != nil {
			return err
		}

		records, err := s.Repo.ListParticipationsByTopicTx(tx, topicID)
		if err != nil {
			return err
		}

		totalPool, winningPool := pools(records, correctChoice)
		credits, err := s.payout(tx, topic, records, correctChoice, totalPool, winningPool)
		if err != nil {
			return err
		}

		optionStats := optionStats(topic, records)
		statsRaw, err := json.Marshal(optionStats)
		if err != nil {
			return err
		}
		creditsRaw, err := json.Marshal(credits)
		if err != nil {
			return err
		}
		settlement = &models.Settlement{
			TopicID:       topicID,
			TopicType:     topic.Type,
			CorrectChoice: correctChoice,
			SettledBy:     actorID,
			TotalPool:     totalPool,
			WinningPool:   winningPool,
			OptionStats:   datatypes.JSON(statsRaw),
			Credits:       datatypes.JSON(creditsRaw),
		}
		if err := s.Repo.InsertSettlementTx(tx, settlement); err != nil {
			return err
		}

		event = SettlementEvent{
			TopicID:       topicID,
			TopicType:     topic.Type,
			CorrectChoice: correctChoice,
			SettledBy:     actorID,
			TotalPool:     totalPool,
			WinningPool:   winningPool,
			Options:       optionStats,
			Credits:       credits,
			SettledAt:     time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		s.Events.Publish(event)
	}
	if s.Logger != nil {
		s.Logger.Info("topic settled",
			zap.String("topic_id", topicID),
			zap.String("correct_choice", correctChoice),
			zap.Int64("total_pool", event.TotalPool),
			zap.Int64("winning_pool", event.WinningPool),
			zap.Int("winners", len(event.Credits)),
		)
	}
	return settlement, nil
}

func (s *SettlementService) GetByTopic(ctx context.Context, topicID string) (*models.Settlement, error) {
	return s.Repo.GetSettlementByTopicID(ctx, topicID)
}

func pools(records []models.Participation, correctChoice string) (totalPool, winningPool int64) {
	for _, rec := range records {
		totalPool += rec.Stake
		if rec.Choice == correctChoice {
			winningPool += rec.Stake
		}
	}
	return totalPool, winningPool
}

func (s *SettlementService) payout(tx *gorm.DB, topic *models.Topic, records []models.Participation, correctChoice string, totalPool, winningPool int64) ([]Credit, error) {
	credits := []Credit{}

	if topic.Type == models.TopicTypeMission {
		// Flat reward per matching participant. The pooled formula must
		// never apply here: missions collect no stakes.
		for _, rec := range records {
			if rec.Choice != correctChoice {
				continue
			}
			if _, err := s.Repo.ApplyPointsDeltaTx(tx, rec.CreditUserID, topic.Reward, models.PointsCauseMissionReward, topic.ID, s.StartingGrant); err != nil {
				return nil, err
			}
			credits = append(credits, Credit{UserID: rec.CreditUserID, Amount: topic.Reward})
		}
		return credits, nil
	}

	// Pari-mutuel. winningPool == 0 means nobody wins and nobody is
	// refunded; the pool was already collected at submission time.
	if winningPool <= 0 {
		return credits, nil
	}
	for _, rec := range records {
		if rec.Choice != correctChoice || rec.Stake <= 0 {
			continue
		}
		amount := rec.Stake * totalPool / winningPool
		if _, err := s.Repo.ApplyPointsDeltaTx(tx, rec.CreditUserID, amount, models.PointsCausePayout, topic.ID, s.StartingGrant); err != nil {
			return nil, err
		}
		credits = append(credits, Credit{UserID: rec.CreditUserID, Amount: amount})
	}
	return credits, nil
}

func optionStats(topic *models.Topic, records []models.Participation) []OptionStat {
	votes := map[string]int{}
	staked := map[string]int64{}
	for _, rec := range records {
		votes[rec.Choice]++
		staked[rec.Choice] += rec.Stake
	}
	total := decimal.NewFromInt(int64(len(records)))
	hundred := decimal.NewFromInt(100)
	stats := make([]OptionStat, 0, len(topic.OptionList()))
	for _, opt := range topic.OptionList() {
		share := decimal.Zero
		if len(records) > 0 {
			share = decimal.NewFromInt(int64(votes[opt])).Mul(hundred).DivRound(total, 1)
		}
		stats = append(stats, OptionStat{Option: opt, Votes: votes[opt], Staked: staked[opt], Share: share})
	}
	return stats
}
