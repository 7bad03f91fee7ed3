package store

import (
	"context"
	"time"

	"github.com/economy-guard/internal/domain"
)

// AggregateKey addresses one analytics counter inside a flushed batch.
type AggregateKey struct {
	Date   string // YYYY-MM-DD
	Bucket string // violation type or user ID, depending on the map
}

// AggregateBatch is one flushed analytics batch, pre-aggregated by the
// pipeline so a 100-item buffer lands as a handful of counter rows.
type AggregateBatch struct {
	Category  string
	ByType    map[AggregateKey]int
	ByUser    map[AggregateKey]int
	FlushedAt time.Time
}

// Store is the persistence contract the validators run against. The
// Postgres repository and the in-memory fallback implement it identically
// except for durability.
type Store interface {
	// GetPlayerState returns the stored state for a user, or
	// domain.ErrStateNotFound when none exists yet.
	GetPlayerState(ctx context.Context, userID string) (*domain.PlayerState, error)

	// SavePlayerState overwrites the user's state document, stamping SavedAt.
	SavePlayerState(ctx context.Context, state *domain.PlayerState) error

	// AppendTransaction appends to the audit log under a generated key.
	AppendTransaction(ctx context.Context, tx domain.Transaction) error

	// AppendViolation appends to the violation log under a generated key.
	AppendViolation(ctx context.Context, v domain.Violation) error

	// IncrementViolationCounters atomically bumps the daily per-type counter
	// and the per-user cumulative counter, recording the last violation
	// timestamp and severity. Concurrent increments must never lose counts.
	IncrementViolationCounters(ctx context.Context, v domain.Violation) error

	// ViolationSummary returns the per-user counter view.
	ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error)

	// WriteAggregates persists a flushed analytics batch.
	WriteAggregates(ctx context.Context, batch AggregateBatch) error
}
