package validator

import (
	"context"
	"fmt"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
)

// earningCaps bound a single earning claim per currency.
var earningCaps = map[domain.Currency]int64{
	domain.CurrencyCash:     10000,
	domain.CurrencyDiamonds: 100,
	domain.CurrencyXP:       1000,
}

// earningReasons is the allowlist of known earning sources. The list is
// advisory: an unknown reason still applies but is flagged for analytics.
var earningReasons = map[string]bool{
	"drink_served": true,
	"food_served":  true,
	"customer_tip": true,
	"daily_bonus":  true,
	"quest_reward": true,
	"level_reward": true,
	"staff_shift":  true,
	"ad_reward":    true,
	"achievement":  true,
	"referral":     true,
	"decor_rating": true,
	"happy_hour":   true,
}

// Earn validates and applies a currency gain claim.
func (s *Service) Earn(ctx context.Context, userID string, currency domain.Currency, amount int64, reason string) (*domain.EarnResult, error) {
	if !s.limiter.Allow(userID, ratelimit.ActionEarnings) {
		return &domain.EarnResult{
			Decline: &domain.Decline{Code: domain.DeclineRateLimit},
		}, nil
	}

	if !currency.IsValid() {
		return nil, fmt.Errorf("earn for %s: %w: unknown currency %q", userID, domain.ErrInvalidRequest, currency)
	}

	if amount < 0 {
		return &domain.EarnResult{
			Decline: &domain.Decline{Code: domain.DeclineNegativeAmount},
		}, nil
	}

	if limit := earningCaps[currency]; amount > limit {
		return &domain.EarnResult{
			Decline: &domain.Decline{Code: domain.DeclineSuspiciousAmount, Cap: limit},
		}, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Detect-and-log, not detect-and-deny: unknown reasons still pay out.
	if !earningReasons[reason] {
		s.pipeline.Record(ctx, userID, domain.ViolationInvalidEarningReason, map[string]interface{}{
			"reason":   reason,
			"currency": string(currency),
			"amount":   amount,
		})
	}

	before := domain.BalanceSnapshot(state)
	state.AddBalance(currency, amount)

	if err := s.cache.Put(ctx, state); err != nil {
		return nil, err
	}

	s.recordTransaction(ctx, userID, domain.ActionEarn, before, domain.BalanceSnapshot(state), map[string]interface{}{
		"currency": string(currency),
		"amount":   amount,
		"reason":   reason,
	})

	// Crossing the XP threshold is reported, never auto-applied; the level
	// up is its own explicitly validated action.
	levelUpReady := currency == domain.CurrencyXP && state.XP >= xpRequired(state.Level)

	return &domain.EarnResult{
		OK:           true,
		Currency:     currency,
		NewBalance:   state.Balance(currency),
		LevelUpReady: levelUpReady,
	}, nil
}
