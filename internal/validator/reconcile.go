package validator

import (
	"context"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
)

// syncTolerance is the allowed absolute drift per critical field. Cash and
// XP get slack for benign timing races; diamonds and level must match
// exactly.
type syncTolerance struct {
	field     string
	tolerance int64
	client    func(domain.ClientState) int64
	server    func(*domain.PlayerState) int64
}

var syncTolerances = []syncTolerance{
	{"cash", 500, func(c domain.ClientState) int64 { return c.Cash }, func(s *domain.PlayerState) int64 { return s.Cash }},
	{"diamonds", 0, func(c domain.ClientState) int64 { return c.Diamonds }, func(s *domain.PlayerState) int64 { return s.Diamonds }},
	{"level", 0, func(c domain.ClientState) int64 { return int64(c.Level) }, func(s *domain.PlayerState) int64 { return int64(s.Level) }},
	{"xp", 100, func(c domain.ClientState) int64 { return c.XP }, func(s *domain.PlayerState) int64 { return s.XP }},
}

// Sync compares a client-reported snapshot against server truth. Drift
// beyond tolerance is not a failure but a forced correction: the client is
// contractually required to adopt the returned authoritative state.
func (s *Service) Sync(ctx context.Context, userID string, client domain.ClientState) (*domain.SyncResult, error) {
	if !s.limiter.Allow(userID, ratelimit.ActionSync) {
		return &domain.SyncResult{
			Decline: &domain.Decline{Code: domain.DeclineRateLimit},
		}, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	var drift []domain.FieldDrift
	for _, tol := range syncTolerances {
		cv, sv := tol.client(client), tol.server(state)
		if abs(cv-sv) > tol.tolerance {
			drift = append(drift, domain.FieldDrift{
				Field:     tol.field,
				Client:    cv,
				Server:    sv,
				Tolerance: tol.tolerance,
			})
		}
	}

	s.pipeline.RecordEvent(ctx, userID, "state_sync", nil)

	if len(drift) == 0 {
		return &domain.SyncResult{Synced: true, State: state}, nil
	}

	discrepancies := make([]map[string]interface{}, len(drift))
	for i, d := range drift {
		discrepancies[i] = map[string]interface{}{
			"field":     d.Field,
			"client":    d.Client,
			"server":    d.Server,
			"tolerance": d.Tolerance,
		}
	}
	s.pipeline.Record(ctx, userID, domain.ViolationStateMismatch, map[string]interface{}{
		"discrepancies": discrepancies,
	})

	// Drop the cache entry so the corrected client's next read refetches
	// server truth from the store.
	s.cache.Invalidate(userID)

	if s.corrections != nil {
		s.corrections.CorrectionForced(userID, state.Clone(), drift)
	}

	s.logger.Warn("state drift corrected", "user_id", userID, "fields", len(drift))

	return &domain.SyncResult{Synced: false, State: state, Drift: drift}, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
