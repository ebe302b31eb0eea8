package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coachdesk/internal/domain"
	"coachdesk/internal/identity"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
)

// VoteService accepts stakes and votes against active topics. A bet stake is
// escrowed by immediate ledger debit in the same transaction that inserts
// the participation record.
type VoteService struct {
	Repo          repository.Repository
	Anonymizer    *identity.Anonymizer
	Logger        *zap.Logger
	StartingGrant int64
}

type SubmitParams struct {
	TopicID   string
	UserID    string
	Choice    string
	Stake     int64
	Anonymous bool
}

func (s *VoteService) Submit(ctx context.Context, params SubmitParams) (*models.Participation, error) {
	topic, err := s.Repo.GetTopicByID(ctx, params.TopicID)
	if err != nil {
		return nil, err
	}
	if topic.Status != models.TopicStatusActive {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrTopicNotActive, topic.Status)
	}
	if !topic.HasOption(params.Choice) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, params.Choice)
	}
	if params.Stake < 0 {
		return nil, fmt.Errorf("%w: negative stake", domain.ErrValidation)
	}
	if topic.Type == models.TopicTypeBet {
		if params.Stake < 1 {
			return nil, fmt.Errorf("%w: bet topics require a stake of at least 1", domain.ErrValidation)
		}
	} else if params.Stake != 0 {
		return nil, fmt.Errorf("%w: only bet topics take stakes", domain.ErrValidation)
	}

	voterIdentity := s.Anonymizer.Pseudonym(params.UserID, params.TopicID)
	if params.Anonymous {
		voterIdentity = identity.Ephemeral()
	}

	item := &models.Participation{
		TopicID:       params.TopicID,
		CreditUserID:  params.UserID,
		VoterIdentity: voterIdentity,
		Anonymous:     params.Anonymous,
		Choice:        params.Choice,
		Stake:         params.Stake,
		TopicTitle:    topic.Title,
		TopicType:     topic.Type,
		TopicOptions:  topic.Options,
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		// Friendly pre-check; the unique index backstops the race.
		participated, err := s.Repo.HasParticipatedTx(tx, params.TopicID, params.UserID)
		if err != nil {
			return err
		}
		if participated {
			return domain.ErrAlreadyParticipated
		}

		if params.Stake > 0 {
			acct, err := s.Repo.EnsurePointsAccountTx(tx, params.UserID, s.StartingGrant)
			if err != nil {
				return err
			}
			if acct.Balance < params.Stake {
				return fmt.Errorf("%w: balance %d, stake %d", domain.ErrInsufficientBalance, acct.Balance, params.Stake)
			}
			if _, err := s.Repo.ApplyPointsDeltaTx(tx, params.UserID, -params.Stake, models.PointsCauseStake, params.TopicID, s.StartingGrant); err != nil {
				return err
			}
		}

		return s.Repo.InsertParticipationTx(tx, item)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("participation recorded",
			zap.String("topic_id", params.TopicID),
			zap.String("voter", voterIdentity),
			zap.Bool("anonymous", params.Anonymous),
			zap.Int64("stake", params.Stake),
		)
	}
	return item, nil
}

func (s *VoteService) ListByTopic(ctx context.Context, topicID string) ([]models.Participation, error) {
	return s.Repo.ListParticipationsByTopic(ctx, topicID)
}

func (s *VoteService) ListByUser(ctx context.Context, userID string) ([]models.Participation, error) {
	return s.Repo.ListParticipationsByUser(ctx, userID)
}

// OptionStat is one option's slice of a topic's participation.
type OptionStat struct {
	Option string          `json:"option"`
	Votes  int             `json:"votes"`
	Staked int64           `json:"staked"`
	Share  decimal.Decimal `json:"share"`
}

// TopicStats summarizes a topic's participation for result displays. Shares
// are percentages of the vote count, one decimal place.
type TopicStats struct {
	TopicID    string       `json:"topic_id"`
	TotalVotes int          `json:"total_votes"`
	TotalPool  int64        `json:"total_pool"`
	Options    []OptionStat `json:"options"`
}

func (s *VoteService) Stats(ctx context.Context, topicID string) (*TopicStats, error) {
	topic, err := s.Repo.GetTopicByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	records, err := s.Repo.ListParticipationsByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	votes := map[string]int{}
	staked := map[string]int64{}
	var totalPool int64
	for _, rec := range records {
		votes[rec.Choice]++
		staked[rec.Choice] += rec.Stake
		totalPool += rec.Stake
	}

	stats := &TopicStats{TopicID: topicID, TotalVotes: len(records), TotalPool: totalPool}
	total := decimal.NewFromInt(int64(len(records)))
	hundred := decimal.NewFromInt(100)
	for _, opt := range topic.OptionList() {
		share := decimal.Zero
		if len(records) > 0 {
			share = decimal.NewFromInt(int64(votes[opt])).Mul(hundred).DivRound(total, 1)
		}
		stats.Options = append(stats.Options, OptionStat{
			Option: opt,
			Votes:  votes[opt],
			Staked: staked[opt],
			Share:  share,
		})
	}
	return stats, nil
}
