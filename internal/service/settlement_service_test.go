package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"coachdesk/internal/domain"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
)

func TestSettleBetPariMutuel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})

	env.mustSubmit(t, topic.ID, "u1", "Team A", 10)
	env.mustSubmit(t, topic.ID, "u2", "Team A", 10)
	env.mustSubmit(t, topic.ID, "u3", "Team A", 10)
	env.mustSubmit(t, topic.ID, "u4", "Team B", 30)

	result, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.TotalPool != 60 {
		t.Fatalf("total pool=%d want 60", result.TotalPool)
	}
	if result.WinningPool != 30 {
		t.Fatalf("winning pool=%d want 30", result.WinningPool)
	}

	// floor(10/30*60) = 20 each for the three winners.
	for _, u := range []string{"u1", "u2", "u3"} {
		if got := env.balance(t, u); got != 1010 {
			t.Fatalf("balance(%s)=%d want 1010", u, got)
		}
	}
	if got := env.balance(t, "u4"); got != 970 {
		t.Fatalf("balance(u4)=%d want 970", got)
	}

	var credits []Credit
	if err := json.Unmarshal(result.Credits, &credits); err != nil {
		t.Fatalf("decode credits: %v", err)
	}
	var sum int64
	for _, cr := range credits {
		sum += cr.Amount
	}
	if sum != result.TotalPool {
		t.Fatalf("credited %d, want full pool %d", sum, result.TotalPool)
	}

	settled, err := env.Topics.Get(ctx, topic.ID)
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if settled.Status != models.TopicStatusRevealed {
		t.Fatalf("status=%s want revealed", settled.Status)
	}
	if settled.CorrectChoice == nil || *settled.CorrectChoice != "Team A" {
		t.Fatalf("correct choice not recorded")
	}
}

func TestSettleConservationWithRounding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})

	// winningPool=7, totalPool=17: floor division loses points but never
	// credits more than the pool.
	env.mustSubmit(t, topic.ID, "u1", "Team A", 3)
	env.mustSubmit(t, topic.ID, "u2", "Team A", 4)
	env.mustSubmit(t, topic.ID, "u3", "Team B", 10)

	result, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	var credits []Credit
	if err := json.Unmarshal(result.Credits, &credits); err != nil {
		t.Fatalf("decode credits: %v", err)
	}
	var sum int64
	for _, cr := range credits {
		sum += cr.Amount
	}
	if sum > result.TotalPool {
		t.Fatalf("credited %d over pool %d", sum, result.TotalPool)
	}
	loss := result.TotalPool - sum
	if loss < 0 || loss > result.WinningPool-1 {
		t.Fatalf("rounding loss %d outside [0,%d]", loss, result.WinningPool-1)
	}
}

func TestSettleNoWinnerNoRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B", "Draw"})

	env.mustSubmit(t, topic.ID, "u1", "Team A", 100)
	env.mustSubmit(t, topic.ID, "u2", "Team B", 50)

	result, err := env.Settlement.Settle(ctx, topic.ID, "Draw", "coach-1", false)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.WinningPool != 0 {
		t.Fatalf("winning pool=%d want 0", result.WinningPool)
	}

	// Stakes stay collected: no refunds.
	if got := env.balance(t, "u1"); got != 900 {
		t.Fatalf("balance(u1)=%d want 900", got)
	}
	if got := env.balance(t, "u2"); got != 950 {
		t.Fatalf("balance(u2)=%d want 950", got)
	}
}

func TestSettleExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})
	env.mustSubmit(t, topic.ID, "u1", "Team A", 10)

	if _, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	before := env.balance(t, "u1")

	_, err := env.Settlement.Settle(ctx, topic.ID, "Team B", "coach-1", false)
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("second settle err=%v want ErrAlreadySettled", err)
	}
	if got := env.balance(t, "u1"); got != before {
		t.Fatalf("balance changed on rejected settle: %d -> %d", before, got)
	}
}

func TestSettleInvalidChoiceBeforeStateChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})
	env.mustSubmit(t, topic.ID, "u1", "Team A", 10)

	_, err := env.Settlement.Settle(ctx, topic.ID, "Team C", "coach-1", false)
	if !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("err=%v want ErrInvalidChoice", err)
	}

	after, err := env.Topics.Get(ctx, topic.ID)
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if after.Status != models.TopicStatusActive {
		t.Fatalf("status=%s, rejected settle must not change state", after.Status)
	}
	if _, err := env.Settlement.GetByTopic(ctx, topic.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("settlement row exists after rejected settle")
	}
}

func TestSettleMissionFlatReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic, err := env.Topics.Create(ctx, CreateTopicParams{
		Type:      models.TopicTypeMission,
		Title:     "hit 5 headshots in the scrim",
		Options:   []string{"done", "failed"},
		Reward:    25,
		CreatorID: "coach-1",
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	for _, u := range []string{"u1", "u2", "u3"} {
		env.mustSubmit(t, topic.ID, u, "done", 0)
	}
	env.mustSubmit(t, topic.ID, "u4", "failed", 0)

	result, err := env.Settlement.Settle(ctx, topic.ID, "done", "coach-1", false)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.TotalPool != 0 {
		t.Fatalf("mission total pool=%d want 0", result.TotalPool)
	}

	// Flat reward, independent of participant count.
	for _, u := range []string{"u1", "u2", "u3"} {
		if got := env.balance(t, u); got != 1025 {
			t.Fatalf("balance(%s)=%d want 1025", u, got)
		}
	}
	if got := env.balance(t, "u4"); got != 1000 {
		t.Fatalf("balance(u4)=%d want 1000", got)
	}
}

func TestSettleVoteTopicRevealsWithoutPayout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeVote, []string{"Team A", "Team B"})

	env.mustSubmit(t, topic.ID, "u1", "Team A", 0)
	env.mustSubmit(t, topic.ID, "u2", "Team B", 0)

	result, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.TotalPool != 0 || result.WinningPool != 0 {
		t.Fatalf("vote topic carries no pool, got total=%d winning=%d", result.TotalPool, result.WinningPool)
	}
	if got := env.balance(t, "u1"); got != 1000 {
		t.Fatalf("balance(u1)=%d want 1000", got)
	}
}

func TestSettleAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})

	_, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "random-user", false)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err=%v want ErrForbidden", err)
	}

	// Admins who are not the creator may settle.
	if _, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "some-admin", true); err != nil {
		t.Fatalf("admin settle: %v", err)
	}
}

func TestSettlePublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})
	env.mustSubmit(t, topic.ID, "u1", "Team A", 10)

	events := env.Hub.Subscribe(4)
	defer env.Hub.Unsubscribe(events)

	if _, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false); err != nil {
		t.Fatalf("settle: %v", err)
	}

	select {
	case raw := <-events:
		event, ok := raw.(SettlementEvent)
		if !ok {
			t.Fatalf("event type %T", raw)
		}
		if event.TopicID != topic.ID || event.CorrectChoice != "Team A" {
			t.Fatalf("unexpected event %+v", event)
		}
		if len(event.Credits) != 1 || event.Credits[0].UserID != "u1" {
			t.Fatalf("unexpected credits %+v", event.Credits)
		}
	default:
		t.Fatalf("no settlement event published")
	}
}

// staleStatusRepo serves reads that lag behind a concurrent settlement: the
// pre-transaction status check sees active even after the row moved to
// revealed. The in-transaction compare-and-swap must still refuse to double
// settle.
type staleStatusRepo struct {
	repository.Repository
}

func (r staleStatusRepo) GetTopicByID(ctx context.Context, id string) (*models.Topic, error) {
	topic, err := r.Repository.GetTopicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if topic.Status == models.TopicStatusRevealed {
		stale := *topic
		stale.Status = models.TopicStatusActive
		stale.CorrectChoice = nil
		return &stale, nil
	}
	return topic, nil
}

func TestSettleLosingRaceStopsAtStatusSwap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.mustCreateTopic(t, models.TopicTypeBet, []string{"Team A", "Team B"})
	env.mustSubmit(t, topic.ID, "u1", "Team A", 10)
	env.mustSubmit(t, topic.ID, "u2", "Team B", 10)

	if _, err := env.Settlement.Settle(ctx, topic.ID, "Team A", "coach-1", false); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	u1, u2 := env.balance(t, "u1"), env.balance(t, "u2")

	// Second settler whose pre-check raced the first commit.
	late := &SettlementService{
		Repo:          staleStatusRepo{env.Store},
		Logger:        env.Settlement.Logger,
		StartingGrant: 1000,
	}
	_, err := late.Settle(ctx, topic.ID, "Team B", "coach-1", false)
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("raced settle err = %v, want ErrAlreadySettled", err)
	}
	if got := env.balance(t, "u1"); got != u1 {
		t.Fatalf("u1 balance moved on raced settle: %d -> %d", u1, got)
	}
	if got := env.balance(t, "u2"); got != u2 {
		t.Fatalf("u2 balance moved on raced settle: %d -> %d", u2, got)
	}

	stored, err := env.Settlement.GetByTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	if stored.CorrectChoice != "Team A" {
		t.Fatalf("correct choice overwritten to %q", stored.CorrectChoice)
	}
}
