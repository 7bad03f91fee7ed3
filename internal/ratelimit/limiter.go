package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/economy-guard/internal/config"
)

// Action classes the limiter knows budgets for.
const (
	ActionPurchase = "purchase"
	ActionEarnings = "earnings"
	ActionLevelUp  = "level_up"
	ActionSync     = "sync"
)

// Policy is the fixed (max count, window) budget for one action class.
type Policy struct {
	MaxCount int
	Window   time.Duration
}

type record struct {
	count         int
	windowResetAt time.Time
}

// Limiter enforces fixed-window per-(user, action) budgets. State lives in
// process memory only; counters are approximate across restarts, which is
// intentional. An instance is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	records  map[string]*record
}

// New creates a limiter with the given per-action policies.
func New(policies map[string]Policy) *Limiter {
	return &Limiter{
		policies: policies,
		records:  make(map[string]*record),
	}
}

// NewFromConfig builds a limiter from the rate limit configuration.
func NewFromConfig(cfg *config.RateLimitConfig) *Limiter {
	return New(map[string]Policy{
		ActionPurchase: {MaxCount: cfg.Purchase.MaxCount, Window: cfg.Purchase.Window},
		ActionEarnings: {MaxCount: cfg.Earnings.MaxCount, Window: cfg.Earnings.Window},
		ActionLevelUp:  {MaxCount: cfg.LevelUp.MaxCount, Window: cfg.LevelUp.Window},
		ActionSync:     {MaxCount: cfg.Sync.MaxCount, Window: cfg.Sync.Window},
	})
}

// Allow reports whether one more action of the given class is permitted for
// the user right now. Actions without a policy are always allowed. A blocked
// call does not advance the counter; only allowed calls consume budget.
func (l *Limiter) Allow(userID, action string) bool {
	policy, ok := l.policies[action]
	if !ok {
		return true
	}

	key := fmt.Sprintf("%s:%s", userID, action)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.windowResetAt) {
		l.records[key] = &record{
			count:         1,
			windowResetAt: now.Add(policy.Window),
		}
		return true
	}

	if rec.count >= policy.MaxCount {
		return false
	}
	rec.count++
	return true
}

// Reset drops all counters for a user. Used by tests and admin tooling.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for action := range l.policies {
		delete(l.records, fmt.Sprintf("%s:%s", userID, action))
	}
}
