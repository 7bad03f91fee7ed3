package domain

import "time"

// ActionKind names the economic action a transaction was produced by.
type ActionKind string

const (
	ActionPurchase ActionKind = "purchase"
	ActionEarn     ActionKind = "earn"
	ActionLevelUp  ActionKind = "level_up"
	ActionSync     ActionKind = "sync"
)

// Transaction is an immutable audit record of one applied economic change.
// Write-only, append-only; never read back on the request path.
type Transaction struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Action    ActionKind             `json:"action"`
	Before    map[string]int64       `json:"before"`
	After     map[string]int64       `json:"after"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// BalanceSnapshot captures the currency fields of a state for the
// before/after columns of a transaction.
func BalanceSnapshot(s *PlayerState) map[string]int64 {
	return map[string]int64{
		"cash":     s.Cash,
		"diamonds": s.Diamonds,
		"xp":       s.XP,
		"level":    int64(s.Level),
	}
}
