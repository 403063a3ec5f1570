package health

import (
	"context"
	"errors"
	"testing"
)

func TestCheckAll_Empty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("empty registry should report healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
}

func TestCheckAll_AggregatesFailure(t *testing.T) {
	r := NewRegistry()
	r.Register("up", func(ctx context.Context) Status {
		return Status{Name: "up", Healthy: true}
	})
	r.Register("down", func(ctx context.Context) Status {
		return Status{Name: "down", Healthy: false, Detail: "boom"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("expected aggregate unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "boom" {
		t.Errorf("expected failure detail, got %q", statuses[1].Detail)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestDBChecker(t *testing.T) {
	ok := DBChecker("db", fakePinger{})(context.Background())
	if !ok.Healthy {
		t.Error("expected healthy ping")
	}

	bad := DBChecker("db", fakePinger{err: errors.New("refused")})(context.Background())
	if bad.Healthy {
		t.Error("expected unhealthy ping")
	}
	if bad.Detail != "refused" {
		t.Errorf("expected detail, got %q", bad.Detail)
	}
}
