package validator

import (
	"context"
	"math"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
)

const (
	levelUpBaseXP     = 100
	levelUpMultiplier = 1.5
)

// xpRequired returns the XP needed to advance from the given level.
func xpRequired(level int) int64 {
	return int64(math.Floor(levelUpBaseXP * math.Pow(levelUpMultiplier, float64(level-1))))
}

// LevelUp validates and applies exactly one level increment. Leftover XP
// carries into the next level; repeated qualifying XP never cascades
// multiple levels in one call.
func (s *Service) LevelUp(ctx context.Context, userID string) (*domain.LevelUpResult, error) {
	if !s.limiter.Allow(userID, ratelimit.ActionLevelUp) {
		return &domain.LevelUpResult{
			Decline: &domain.Decline{Code: domain.DeclineRateLimit},
		}, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	required := xpRequired(state.Level)
	if state.XP < required {
		return &domain.LevelUpResult{
			Decline: &domain.Decline{
				Code:      domain.DeclineInsufficientXP,
				Required:  required,
				Available: state.XP,
			},
		}, nil
	}

	before := domain.BalanceSnapshot(state)
	oldLevel := state.Level
	state.Level++
	state.XP -= required

	if err := s.cache.Put(ctx, state); err != nil {
		return nil, err
	}

	s.recordTransaction(ctx, userID, domain.ActionLevelUp, before, domain.BalanceSnapshot(state), map[string]interface{}{
		"old_level": oldLevel,
		"new_level": state.Level,
	})
	s.pipeline.RecordProgression(ctx, userID, oldLevel, state.Level)

	s.logger.Info("level up applied", "user_id", userID, "old_level", oldLevel, "new_level", state.Level)

	return &domain.LevelUpResult{
		OK:          true,
		OldLevel:    oldLevel,
		NewLevel:    state.Level,
		RemainingXP: state.XP,
	}, nil
}
