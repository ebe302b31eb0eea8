package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"coachdesk/internal/config"
	"coachdesk/internal/db"
	"coachdesk/internal/identity"
	"coachdesk/internal/models"
	gormrepository "coachdesk/internal/repository/gorm"
	"coachdesk/internal/stream"
)

type testEnv struct {
	Store      *gormrepository.Store
	Points     *PointsService
	Topics     *TopicService
	Votes      *VoteService
	Settlement *SettlementService
	Hub        *stream.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.Open(config.DBConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := gormrepository.New(conn.Gorm)
	logger := zap.NewNop()
	hub := stream.NewHub(logger)
	points := &PointsService{Repo: store, Logger: logger, StartingGrant: 1000}
	topics := &TopicService{Repo: store, Logger: logger, DefaultMissionReward: 10}
	votes := &VoteService{
		Repo:          store,
		Anonymizer:    identity.New("test-anon-secret"),
		Logger:        logger,
		StartingGrant: 1000,
	}
	settlement := &SettlementService{Repo: store, Events: hub, Logger: logger, StartingGrant: 1000}

	return &testEnv{
		Store:      store,
		Points:     points,
		Topics:     topics,
		Votes:      votes,
		Settlement: settlement,
		Hub:        hub,
	}
}

func (e *testEnv) mustCreateTopic(t *testing.T, topicType models.TopicType, options []string) *models.Topic {
	t.Helper()
	topic, err := e.Topics.Create(context.Background(), CreateTopicParams{
		Type:      topicType,
		Title:     "who takes the map",
		Options:   options,
		CreatorID: "coach-1",
	})
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	return topic
}

func (e *testEnv) mustSubmit(t *testing.T, topicID, userID, choice string, stake int64) {
	t.Helper()
	_, err := e.Votes.Submit(context.Background(), SubmitParams{
		TopicID: topicID,
		UserID:  userID,
		Choice:  choice,
		Stake:   stake,
	})
	if err != nil {
		t.Fatalf("submit %s/%s: %v", topicID, userID, err)
	}
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.Points.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance %s: %v", userID, err)
	}
	return b
}
