package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/economy-guard/internal/config"
	"github.com/economy-guard/internal/domain"
)

// counterTTL keeps daily counter keys from accumulating forever.
const counterTTL = 30 * 24 * time.Hour

// CounterService mirrors critical violation counters into Redis so operator
// dashboards read hot counts without touching the primary store.
type CounterService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCounterService creates a new Redis counter service
func NewCounterService(cfg *config.RedisConfig, logger *slog.Logger) (*CounterService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &CounterService{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *CounterService) Close() error {
	return s.client.Close()
}

// dailyKey returns the Redis key for a day's per-type violation counter
func (s *CounterService) dailyKey(day string, t domain.ViolationType) string {
	return fmt.Sprintf("violations:daily:%s:%s", day, t)
}

// userKey returns the Redis key for a user's violation counter hash
func (s *CounterService) userKey(userID string) string {
	return fmt.Sprintf("violations:user:%s", userID)
}

// IncrementViolationCounters mirrors one violation into the daily per-type
// counter and the per-user hash.
func (s *CounterService) IncrementViolationCounters(ctx context.Context, v domain.Violation) error {
	day := v.Timestamp.UTC().Format("2006-01-02")
	daily := s.dailyKey(day, v.Type)
	user := s.userKey(v.UserID)

	pipe := s.client.Pipeline()
	pipe.IncrBy(ctx, daily, 1)
	pipe.Expire(ctx, daily, counterTTL)
	pipe.HIncrBy(ctx, user, "total", 1)
	pipe.HSet(ctx, user,
		"last_violation", v.Timestamp.UTC().Format(time.RFC3339),
		"last_severity", string(v.Severity),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing violation counters: %w", err)
	}
	return nil
}

// UserSummary returns the hot per-user counter view. A user with no
// violations yields a zeroed summary. Satisfies the validator's summary
// source contract.
func (s *CounterService) UserSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting user summary: %w", err)
	}

	summary := &domain.ViolationSummary{UserID: userID}
	if raw, ok := fields["total"]; ok {
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing violation total: %w", err)
		}
		summary.Total = total
	}
	if raw, ok := fields["last_violation"]; ok {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing last violation timestamp: %w", err)
		}
		summary.LastViolation = ts
	}
	if raw, ok := fields["last_severity"]; ok {
		summary.LastSeverity = domain.Severity(raw)
	}
	return summary, nil
}
