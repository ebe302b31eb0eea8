package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"coachdesk/internal/domain"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
)

// TopicService owns topic definitions and their lifecycle:
// active -> closed (reversible) -> revealed (terminal, settlement only).
type TopicService struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// DefaultMissionReward backs mission topics created without an explicit
	// reward.
	DefaultMissionReward int64
}

type CreateTopicParams struct {
	Type        models.TopicType
	Title       string
	Description string
	Options     []string
	MatchID     *string
	RevealAt    *time.Time
	Reward      int64
	CreatorID   string
}

func (s *TopicService) Create(ctx context.Context, params CreateTopicParams) (*models.Topic, error) {
	switch params.Type {
	case models.TopicTypeBet, models.TopicTypeVote, models.TopicTypeMission:
	default:
		return nil, fmt.Errorf("%w: unknown topic type %q", domain.ErrValidation, params.Type)
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("%w: title required", domain.ErrValidation)
	}

	options := make([]string, 0, len(params.Options))
	seen := map[string]struct{}{}
	for _, opt := range params.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		options = append(options, opt)
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: need at least two distinct options", domain.ErrValidation)
	}

	reward := int64(0)
	if params.Type == models.TopicTypeMission {
		reward = params.Reward
		if reward <= 0 {
			reward = s.DefaultMissionReward
		}
	}

	optionsRaw, err := json.Marshal(options)
	if err != nil {
		return nil, err
	}
	item := &models.Topic{
		ID:          uuid.NewString(),
		Type:        params.Type,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Options:     datatypes.JSON(optionsRaw),
		Status:      models.TopicStatusActive,
		MatchID:     params.MatchID,
		RevealAt:    params.RevealAt,
		Reward:      reward,
		CreatedBy:   params.CreatorID,
	}
	if err := s.Repo.InsertTopic(ctx, item); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("topic created",
			zap.String("topic_id", item.ID),
			zap.String("type", string(item.Type)),
			zap.Int("options", len(options)),
			zap.String("created_by", item.CreatedBy),
		)
	}
	return item, nil
}

func (s *TopicService) Get(ctx context.Context, topicID string) (*models.Topic, error) {
	return s.Repo.GetTopicByID(ctx, topicID)
}

// ListActive returns active topics, most recent first, optionally scoped to
// one match.
func (s *TopicService) ListActive(ctx context.Context, matchID *string) ([]models.Topic, error) {
	status := models.TopicStatusActive
	return s.Repo.ListTopics(ctx, repository.ListTopicsParams{Status: &status, MatchID: matchID})
}

func (s *TopicService) List(ctx context.Context, params repository.ListTopicsParams) ([]models.Topic, error) {
	return s.Repo.ListTopics(ctx, params)
}

// allowedTransitions maps a target status to the statuses it may come from.
// revealed is reachable here too (the contract allows it), but settlement is
// the path that actually pays out.
var allowedTransitions = map[models.TopicStatus][]models.TopicStatus{
	models.TopicStatusClosed:   {models.TopicStatusActive},
	models.TopicStatusActive:   {models.TopicStatusClosed},
	models.TopicStatusRevealed: {models.TopicStatusActive, models.TopicStatusClosed},
}

// Transition moves a topic between lifecycle states via an atomic
// conditional update. Anything not in allowedTransitions, including any move
// out of revealed, fails with ErrInvalidTransition.
func (s *TopicService) Transition(ctx context.Context, topicID string, to models.TopicStatus) (*models.Topic, error) {
	topic, err := s.Repo.GetTopicByID(ctx, topicID)
	if err != nil {
		return nil, err
	}

	from, ok := allowedTransitions[to]
	if !ok || topic.Status == to {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, topic.Status, to)
	}
	swapped, err := s.Repo.UpdateTopicStatus(ctx, topicID, from, to)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, topic.Status, to)
	}
	if s.Logger != nil {
		s.Logger.Info("topic status changed",
			zap.String("topic_id", topicID),
			zap.String("to", string(to)),
		)
	}
	return s.Repo.GetTopicByID(ctx, topicID)
}

// CloseExpired soft-locks active topics whose reveal deadline has passed.
// Driven by the cron runner; settlement remains manual.
func (s *TopicService) CloseExpired(ctx context.Context) (int64, error) {
	n, err := s.Repo.CloseTopicsPastReveal(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Info("auto-closed topics past reveal deadline", zap.Int64("count", n))
	}
	return n, nil
}
