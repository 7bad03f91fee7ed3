package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/economy-guard/internal/domain"
)

type userCounter struct {
	total         int64
	lastViolation time.Time
	lastSeverity  domain.Severity
}

// MemoryStore is the fallback store used when no Postgres instance is
// configured. Same contract as the durable store, minus durability.
type MemoryStore struct {
	mu           sync.RWMutex
	states       map[string]*domain.PlayerState
	transactions []domain.Transaction
	violations   []domain.Violation
	dailyByType  map[string]int64 // "YYYY-MM-DD:type"
	userCounters map[string]*userCounter
	aggregates   []AggregateBatch
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:       make(map[string]*domain.PlayerState),
		dailyByType:  make(map[string]int64),
		userCounters: make(map[string]*userCounter),
	}
}

// GetPlayerState returns a copy of the stored state for a user.
func (m *MemoryStore) GetPlayerState(ctx context.Context, userID string) (*domain.PlayerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[userID]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return state.Clone(), nil
}

// SavePlayerState overwrites the user's state document.
func (m *MemoryStore) SavePlayerState(ctx context.Context, state *domain.PlayerState) error {
	saved := state.Clone()
	saved.SavedAt = time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[saved.UserID] = saved
	return nil
}

// AppendTransaction appends to the in-memory audit log.
func (m *MemoryStore) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, tx)
	return nil
}

// AppendViolation appends to the in-memory violation log.
func (m *MemoryStore) AppendViolation(ctx context.Context, v domain.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, v)
	return nil
}

// IncrementViolationCounters bumps the daily and per-user counters.
func (m *MemoryStore) IncrementViolationCounters(ctx context.Context, v domain.Violation) error {
	day := v.Timestamp.UTC().Format("2006-01-02")
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyByType[fmt.Sprintf("%s:%s", day, v.Type)]++

	uc, ok := m.userCounters[v.UserID]
	if !ok {
		uc = &userCounter{}
		m.userCounters[v.UserID] = uc
	}
	uc.total++
	uc.lastViolation = v.Timestamp
	uc.lastSeverity = v.Severity
	return nil
}

// ViolationSummary returns the per-user counter view.
func (m *MemoryStore) ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := &domain.ViolationSummary{UserID: userID}
	if uc, ok := m.userCounters[userID]; ok {
		summary.Total = uc.total
		summary.LastViolation = uc.lastViolation
		summary.LastSeverity = uc.lastSeverity
	}
	return summary, nil
}

// WriteAggregates stores the flushed batch.
func (m *MemoryStore) WriteAggregates(ctx context.Context, batch AggregateBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates = append(m.aggregates, batch)
	return nil
}

// TransactionCount returns the number of logged transactions.
func (m *MemoryStore) TransactionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// ViolationCount returns the number of logged violations.
func (m *MemoryStore) ViolationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.violations)
}

// Violations returns a copy of the logged violations.
func (m *MemoryStore) Violations() []domain.Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Aggregates returns a copy of the flushed batches.
func (m *MemoryStore) Aggregates() []AggregateBatch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AggregateBatch, len(m.aggregates))
	copy(out, m.aggregates)
	return out
}

// DailyCount returns the daily counter for a violation type.
func (m *MemoryStore) DailyCount(day string, t domain.ViolationType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyByType[fmt.Sprintf("%s:%s", day, t)]
}
