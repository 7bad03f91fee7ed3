package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/economy-guard/internal/config"
	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/store"
)

// Repository is the durable store implementation. Player state lives as one
// JSONB document per user; transactions and violations are append-only;
// counters use increment-on-conflict writes so concurrent processes never
// lose counts.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS player_states (
			user_id VARCHAR(64) PRIMARY KEY,
			state JSONB NOT NULL,
			saved_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(20) NOT NULL,
			before_state JSONB,
			after_state JSONB,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS violations (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			type VARCHAR(40) NOT NULL,
			severity VARCHAR(10) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS violation_daily_counters (
			day DATE NOT NULL,
			type VARCHAR(40) NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (day, type)
		)`,
		`CREATE TABLE IF NOT EXISTS violation_user_counters (
			user_id VARCHAR(64) PRIMARY KEY,
			total BIGINT NOT NULL DEFAULT 0,
			last_violation TIMESTAMP,
			last_severity VARCHAR(10)
		)`,
		`CREATE TABLE IF NOT EXISTS violation_aggregates (
			id BIGSERIAL PRIMARY KEY,
			category VARCHAR(20) NOT NULL,
			day DATE NOT NULL,
			bucket_kind VARCHAR(10) NOT NULL,
			bucket VARCHAR(64) NOT NULL,
			count INT NOT NULL,
			flushed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_user ON violations(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_aggregates_day ON violation_aggregates(day, category)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetPlayerState retrieves a player's state document
func (r *Repository) GetPlayerState(ctx context.Context, userID string) (*domain.PlayerState, error) {
	query := `SELECT state, saved_at FROM player_states WHERE user_id = $1`

	var raw []byte
	var savedAt time.Time
	err := r.pool.QueryRow(ctx, query, userID).Scan(&raw, &savedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("getting player state: %w", err)
	}

	var state domain.PlayerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling player state: %w", err)
	}
	state.UserID = userID
	state.SavedAt = savedAt
	return &state, nil
}

// SavePlayerState upserts a player's state document, stamping saved_at
func (r *Repository) SavePlayerState(ctx context.Context, state *domain.PlayerState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling player state: %w", err)
	}

	query := `
		INSERT INTO player_states (user_id, state, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET state = $2, saved_at = $3
	`
	if _, err := r.pool.Exec(ctx, query, state.UserID, raw, time.Now()); err != nil {
		return fmt.Errorf("saving player state: %w", err)
	}
	return nil
}

// AppendTransaction appends to the audit log
func (r *Repository) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	before, err := json.Marshal(tx.Before)
	if err != nil {
		return fmt.Errorf("marshaling before state: %w", err)
	}
	after, err := json.Marshal(tx.After)
	if err != nil {
		return fmt.Errorf("marshaling after state: %w", err)
	}
	var metadata []byte
	if tx.Metadata != nil {
		metadata, err = json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	query := `
		INSERT INTO transactions (id, user_id, action, before_state, after_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query, tx.ID, tx.UserID, string(tx.Action), before, after, metadata, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("appending transaction: %w", err)
	}
	return nil
}

// AppendViolation appends to the violation log
func (r *Repository) AppendViolation(ctx context.Context, v domain.Violation) error {
	var metadata []byte
	var err error
	if v.Metadata != nil {
		metadata, err = json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	query := `
		INSERT INTO violations (user_id, type, severity, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, v.UserID, string(v.Type), string(v.Severity), metadata, v.Timestamp)
	if err != nil {
		return fmt.Errorf("appending violation: %w", err)
	}
	return nil
}

// IncrementViolationCounters bumps the daily per-type and per-user counters
// atomically. Increment happens inside the UPDATE so concurrent writers
// from many processes never lose counts.
func (r *Repository) IncrementViolationCounters(ctx context.Context, v domain.Violation) error {
	day := v.Timestamp.UTC().Format("2006-01-02")

	dailyQuery := `
		INSERT INTO violation_daily_counters (day, type, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (day, type)
		DO UPDATE SET count = violation_daily_counters.count + 1
	`
	if _, err := r.pool.Exec(ctx, dailyQuery, day, string(v.Type)); err != nil {
		return fmt.Errorf("incrementing daily counter: %w", err)
	}

	userQuery := `
		INSERT INTO violation_user_counters (user_id, total, last_violation, last_severity)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			total = violation_user_counters.total + 1,
			last_violation = $2,
			last_severity = $3
	`
	if _, err := r.pool.Exec(ctx, userQuery, v.UserID, v.Timestamp, string(v.Severity)); err != nil {
		return fmt.Errorf("incrementing user counter: %w", err)
	}
	return nil
}

// ViolationSummary returns the per-user counter view
func (r *Repository) ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	query := `
		SELECT total, last_violation, last_severity
		FROM violation_user_counters
		WHERE user_id = $1
	`
	summary := &domain.ViolationSummary{UserID: userID}
	var lastViolation *time.Time
	var lastSeverity *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&summary.Total, &lastViolation, &lastSeverity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return summary, nil
		}
		return nil, fmt.Errorf("getting violation summary: %w", err)
	}
	if lastViolation != nil {
		summary.LastViolation = *lastViolation
	}
	if lastSeverity != nil {
		summary.LastSeverity = domain.Severity(*lastSeverity)
	}
	return summary, nil
}

// WriteAggregates persists a flushed analytics batch in one round trip
func (r *Repository) WriteAggregates(ctx context.Context, batch store.AggregateBatch) error {
	if len(batch.ByType) == 0 && len(batch.ByUser) == 0 {
		return nil
	}

	query := `
		INSERT INTO violation_aggregates (category, day, bucket_kind, bucket, count, flushed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	pgBatch := &pgx.Batch{}
	for key, count := range batch.ByType {
		pgBatch.Queue(query, batch.Category, key.Date, "type", key.Bucket, count, batch.FlushedAt)
	}
	for key, count := range batch.ByUser {
		pgBatch.Queue(query, batch.Category, key.Date, "user", key.Bucket, count, batch.FlushedAt)
	}

	br := r.pool.SendBatch(ctx, pgBatch)
	defer br.Close()

	for i := 0; i < pgBatch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("writing aggregates: %w", err)
		}
	}
	return nil
}
