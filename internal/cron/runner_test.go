package cronrunner

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestAddValidatesSpec(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	if _, err := r.Add("close", "@every 1m", func(context.Context) {}); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if _, err := r.Add("bad", "not a schedule", func(context.Context) {}); err == nil {
		t.Fatalf("invalid spec accepted")
	}
}

func TestJobPanicIsContained(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	id, err := r.Add("boomer", "@every 1h", func(context.Context) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Run the wrapped job directly; the recover must keep the panic from
	// escaping.
	r.cron.Entry(id).Job.Run()
}

func TestJobReceivesBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "marker")
	r := New(zap.NewNop(), base)
	var got any
	id, err := r.Add("ctx-check", "@every 1h", func(ctx context.Context) {
		got = ctx.Value(key{})
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	r.cron.Entry(id).Job.Run()
	if got != "marker" {
		t.Fatalf("job did not run on the base context, got %v", got)
	}
}
