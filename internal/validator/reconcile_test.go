package validator

import (
	"context"
	"testing"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/violation"
)

func TestSync_ExactMatch(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 5000, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Synced {
		t.Errorf("expected synced, got drift %+v", res.Drift)
	}
}

func TestSync_CashToleranceBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Drift of exactly 500 is absorbed
	res, err := env.svc.Sync(ctx, "u1", domain.ClientState{
		Cash: 5500, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Synced {
		t.Errorf("expected drift of 500 to be within tolerance, got %+v", res.Drift)
	}

	// 501 forces a correction
	res, err = env.svc.Sync(ctx, "u2", domain.ClientState{
		Cash: 5501, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Synced {
		t.Fatal("expected forced correction at drift 501")
	}
	if res.State == nil || res.State.Cash != 5000 {
		t.Errorf("expected authoritative state in correction, got %+v", res.State)
	}
	if len(res.Drift) != 1 || res.Drift[0].Field != "cash" {
		t.Errorf("expected single cash drift entry, got %+v", res.Drift)
	}
}

func TestSync_DiamondsRequireExactMatch(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 5000, Diamonds: 6, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Synced {
		t.Fatal("expected forced correction for diamond drift of 1")
	}
	if res.Drift[0].Field != "diamonds" || res.Drift[0].Tolerance != 0 {
		t.Errorf("unexpected drift entry: %+v", res.Drift[0])
	}
}

func TestSync_MismatchEmitsViolation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 999999, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	// One state_mismatch violation buffered; state_mismatch is a warning
	// so nothing hits the counters
	if got := env.pipeline.BufferedCount(violation.CategoryViolations); got != 1 {
		t.Errorf("expected 1 buffered violation, got %d", got)
	}
	summary, _ := env.svc.ViolationSummary(context.Background(), "u1")
	if summary.Total != 0 {
		t.Errorf("warning should not hit counters, total=%d", summary.Total)
	}
}

// captureSink records forced corrections handed to the live feed.
type captureSink struct {
	userID string
	state  *domain.PlayerState
	drift  []domain.FieldDrift
	calls  int
}

func (c *captureSink) CorrectionForced(userID string, state *domain.PlayerState, drift []domain.FieldDrift) {
	c.userID = userID
	c.state = state
	c.drift = drift
	c.calls++
}

func TestSync_ForcedCorrectionNotifiesSink(t *testing.T) {
	env := newTestEnv(t)
	sink := &captureSink{}
	env.svc.SetCorrectionSink(sink)

	res, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 9000, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Synced {
		t.Fatal("expected forced correction")
	}
	if sink.calls != 1 {
		t.Fatalf("expected 1 correction notification, got %d", sink.calls)
	}
	if sink.userID != "u1" {
		t.Errorf("expected correction for u1, got %q", sink.userID)
	}
	if sink.state == nil || sink.state.Cash != 5000 {
		t.Errorf("expected authoritative state in correction, got %+v", sink.state)
	}
	if len(sink.drift) != 1 || sink.drift[0].Field != "cash" {
		t.Errorf("expected cash drift in correction, got %+v", sink.drift)
	}
}

func TestSync_WithinToleranceDoesNotNotifySink(t *testing.T) {
	env := newTestEnv(t)
	sink := &captureSink{}
	env.svc.SetCorrectionSink(sink)

	res, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 5200, Diamonds: 5, XP: 0, Level: 1,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Synced {
		t.Fatalf("expected synced, got drift %+v", res.Drift)
	}
	if sink.calls != 0 {
		t.Errorf("expected no correction notification, got %d", sink.calls)
	}
}

func TestSync_MultipleFieldsDrift(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Sync(context.Background(), "u1", domain.ClientState{
		Cash: 9000, Diamonds: 50, XP: 500, Level: 9,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Synced {
		t.Fatal("expected forced correction")
	}
	if len(res.Drift) != 4 {
		t.Errorf("expected all 4 fields to drift, got %d: %+v", len(res.Drift), res.Drift)
	}
}
