package validator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/economy-guard/internal/cache"
	"github.com/economy-guard/internal/catalog"
	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
	"github.com/economy-guard/internal/store"
	"github.com/economy-guard/internal/violation"
)

// CorrectionSink receives forced state corrections for live fan-out. The
// websocket hub satisfies it; nil disables the feed.
type CorrectionSink interface {
	CorrectionForced(userID string, state *domain.PlayerState, drift []domain.FieldDrift)
}

// SummarySource is an optional hot mirror of the per-user violation
// counters, read in preference to the primary store.
type SummarySource interface {
	UserSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error)
}

// Service is the authoritative validator for client-claimed economic
// actions. Every operation runs rate limit → load → validate → mutate →
// persist, with persistence strictly last so no failure leaves state
// half-mutated. The load-to-persist sequence is serialized per user.
type Service struct {
	limiter  *ratelimit.Limiter
	cache    *cache.StateCache
	store    store.Store
	catalog  catalog.Provider
	pipeline *violation.Pipeline
	logger   *slog.Logger

	corrections CorrectionSink
	hotSummary  SummarySource

	locks sync.Map // userID -> *sync.Mutex
}

// NewService creates the validator service.
func NewService(
	limiter *ratelimit.Limiter,
	stateCache *cache.StateCache,
	st store.Store,
	provider catalog.Provider,
	pipeline *violation.Pipeline,
	logger *slog.Logger,
) *Service {
	return &Service{
		limiter:  limiter,
		cache:    stateCache,
		store:    st,
		catalog:  provider,
		pipeline: pipeline,
		logger:   logger,
	}
}

// SetCorrectionSink wires an optional live feed for forced corrections.
func (s *Service) SetCorrectionSink(sink CorrectionSink) {
	s.corrections = sink
}

// SetHotSummary wires an optional hot counter mirror for summary reads.
func (s *Service) SetHotSummary(src SummarySource) {
	s.hotSummary = src
}

// lockUser serializes the read-modify-write sequence for one user. Two
// concurrent requests for the same user would otherwise both validate
// against the same pre-mutation state and lose one write.
func (s *Service) lockUser(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// PlayerState returns the authoritative state for a user.
func (s *Service) PlayerState(ctx context.Context, userID string) (*domain.PlayerState, error) {
	return s.cache.Get(ctx, userID)
}

// InvalidateCache drops the cached state so the next read refetches.
func (s *Service) InvalidateCache(userID string) {
	s.cache.Invalidate(userID)
}

// ViolationSummary returns the per-user violation counters, preferring the
// hot mirror when one is wired and falling back to the primary store when
// the mirror read fails.
func (s *Service) ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	if s.hotSummary != nil {
		summary, err := s.hotSummary.UserSummary(ctx, userID)
		if err == nil {
			return summary, nil
		}
		s.logger.Warn("hot violation summary unavailable, reading store", "user_id", userID, "error", err)
	}
	return s.pipeline.Summary(ctx, userID)
}

// ReportViolation records an advisory anomaly report (client heuristic
// probes, ops tooling). Reports are signals for the pipeline, never a
// mutation of player state.
func (s *Service) ReportViolation(ctx context.Context, userID string, t domain.ViolationType, metadata map[string]interface{}) {
	s.pipeline.Record(ctx, userID, t, metadata)
}

// recordTransaction appends the audit record and buffers the analytics
// copy. Audit append failures are logged, not surfaced: state is already
// persisted by the time the transaction is written.
func (s *Service) recordTransaction(
	ctx context.Context,
	userID string,
	action domain.ActionKind,
	before, after map[string]int64,
	metadata map[string]interface{},
) string {
	tx := domain.Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Before:    before,
		After:     after,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		s.logger.Warn("failed to append transaction", "user_id", userID, "action", action, "error", err)
	}
	s.pipeline.RecordTransaction(ctx, tx)
	return tx.ID
}

func (s *Service) loadState(ctx context.Context, userID string) (*domain.PlayerState, error) {
	state, err := s.cache.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", userID, err)
	}
	return state, nil
}
