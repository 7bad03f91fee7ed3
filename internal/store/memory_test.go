package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/economy-guard/internal/domain"
)

func TestMemoryStore_MissingStateReturnsNotFound(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.GetPlayerState(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveStampsAndRoundTrips(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	state := domain.NewPlayerState("u1")
	state.Cash = 1234
	if err := m.SavePlayerState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := m.GetPlayerState(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Cash != 1234 {
		t.Errorf("expected cash 1234, got %d", got.Cash)
	}
	if got.SavedAt.IsZero() {
		t.Error("expected SavedAt stamp")
	}

	// Returned state is a copy, not an alias into the store
	got.Cash = 9999
	again, _ := m.GetPlayerState(ctx, "u1")
	if again.Cash != 1234 {
		t.Errorf("store state mutated through returned copy: %d", again.Cash)
	}
}

func TestMemoryStore_CounterIncrements(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		v := domain.Violation{
			UserID:    "u1",
			Type:      domain.ViolationExcessiveEarnings,
			Severity:  domain.SeverityCritical,
			Timestamp: now,
		}
		if err := m.IncrementViolationCounters(ctx, v); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	if got := m.DailyCount("2026-03-14", domain.ViolationExcessiveEarnings); got != 3 {
		t.Errorf("expected daily count 3, got %d", got)
	}

	summary, err := m.ViolationSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if summary.LastSeverity != domain.SeverityCritical {
		t.Errorf("expected last severity critical, got %s", summary.LastSeverity)
	}
}
