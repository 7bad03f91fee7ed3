package validator

import (
	"context"
	"testing"

	"github.com/economy-guard/internal/domain"
)

func TestXPRequired(t *testing.T) {
	cases := []struct {
		level int
		want  int64
	}{
		{1, 100},
		{2, 150},
		{3, 225},
		{4, 337},
		{5, 506},
	}
	for _, tc := range cases {
		if got := xpRequired(tc.level); got != tc.want {
			t.Errorf("xpRequired(%d) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestLevelUp_InsufficientXPIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded := domain.NewPlayerState("u1")
	seeded.XP = 99
	env.seedState(t, seeded)

	res, err := env.svc.LevelUp(ctx, "u1")
	if err != nil {
		t.Fatalf("levelup: %v", err)
	}
	if res.OK {
		t.Fatal("expected decline at 99 xp")
	}
	if res.Decline.Code != domain.DeclineInsufficientXP {
		t.Errorf("expected INSUFFICIENT_XP, got %s", res.Decline.Code)
	}
	if res.Decline.Required != 100 || res.Decline.Available != 99 {
		t.Errorf("expected required=100 available=99, got %+v", res.Decline)
	}

	state, _ := env.svc.PlayerState(ctx, "u1")
	if state.Level != 1 || state.XP != 99 {
		t.Errorf("state changed on declined level-up: level %d xp %d", state.Level, state.XP)
	}
}

func TestLevelUp_CarriesRemainderXP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded := domain.NewPlayerState("u1")
	seeded.XP = 250
	env.seedState(t, seeded)

	// 250 xp at level 1: requirement 100, remainder 150
	first, err := env.svc.LevelUp(ctx, "u1")
	if err != nil {
		t.Fatalf("first levelup: %v", err)
	}
	if !first.OK || first.NewLevel != 2 || first.RemainingXP != 150 {
		t.Fatalf("expected level 2 with 150 xp, got %+v", first)
	}

	// 150 xp at level 2: requirement 150, exactly met, nothing carried
	second, err := env.svc.LevelUp(ctx, "u1")
	if err != nil {
		t.Fatalf("second levelup: %v", err)
	}
	if !second.OK || second.NewLevel != 3 || second.RemainingXP != 0 {
		t.Fatalf("expected level 3 with 0 xp, got %+v", second)
	}
}

func TestLevelUp_OneIncrementPerCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded := domain.NewPlayerState("u1")
	seeded.XP = 1000
	env.seedState(t, seeded)

	res, err := env.svc.LevelUp(ctx, "u1")
	if err != nil {
		t.Fatalf("levelup: %v", err)
	}
	// 1000 xp qualifies for several levels, but only one is applied
	if res.NewLevel != 2 || res.RemainingXP != 900 {
		t.Errorf("expected single increment to level 2 with 900 xp, got %+v", res)
	}
}
