package violation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/store"
)

// Category buckets the analytics buffers.
type Category string

const (
	CategoryViolations   Category = "violations"
	CategoryTransactions Category = "transactions"
	CategoryProgression  Category = "progression"
	CategoryEvents       Category = "events"
)

// Record is one buffered analytics item.
type Record struct {
	Category  Category
	UserID    string
	Kind      string
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Counters is the hot counter mirror for critical violations. The Redis
// implementation satisfies it; nil disables the mirror.
type Counters interface {
	IncrementViolationCounters(ctx context.Context, v domain.Violation) error
}

// Notifier receives every recorded violation for live fan-out.
type Notifier interface {
	ViolationRecorded(v domain.Violation)
}

// Pipeline classifies, buffers, batches and aggregates anomaly records.
// Critical violations hit the store counters immediately; everything rides
// the batched analytics path, flushed on size or interval, whichever first.
// Analytics delivery is at-most-once: a failed flush is logged and dropped.
type Pipeline struct {
	store         store.Store
	hot           Counters
	notifier      Notifier
	logger        *slog.Logger
	bufferSize    int
	flushInterval time.Duration

	mu      sync.Mutex
	buffers map[Category][]Record

	stopCh chan struct{}
	doneCh chan struct{}

	runMu   sync.Mutex
	running bool
}

// NewPipeline creates a pipeline writing to the given store. bufferSize is
// the per-category flush threshold; flushInterval the timer fallback.
func NewPipeline(st store.Store, bufferSize int, flushInterval time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:         st,
		logger:        logger,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		buffers:       make(map[Category][]Record),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// SetHotCounters wires an optional counter mirror for critical violations.
func (p *Pipeline) SetHotCounters(c Counters) {
	p.hot = c
}

// SetNotifier wires an optional live violation feed.
func (p *Pipeline) SetNotifier(n Notifier) {
	p.notifier = n
}

// Record classifies and records one violation. Critical violations are
// logged and counted in the store immediately so they survive even if the
// analytics batch is lost. Never fails the caller's request.
func (p *Pipeline) Record(ctx context.Context, userID string, t domain.ViolationType, metadata map[string]interface{}) {
	v := domain.Violation{
		UserID:    userID,
		Type:      t,
		Severity:  domain.SeverityOf(t),
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	if v.Severity == domain.SeverityCritical {
		if err := p.store.AppendViolation(ctx, v); err != nil {
			p.logger.Error("failed to append critical violation", "user_id", userID, "type", t, "error", err)
		}
		if err := p.store.IncrementViolationCounters(ctx, v); err != nil {
			p.logger.Error("failed to increment violation counters", "user_id", userID, "type", t, "error", err)
		}
		if p.hot != nil {
			if err := p.hot.IncrementViolationCounters(ctx, v); err != nil {
				p.logger.Warn("failed to increment hot violation counters", "user_id", userID, "error", err)
			}
		}
	}

	if p.notifier != nil {
		p.notifier.ViolationRecorded(v)
	}

	p.buffer(ctx, Record{
		Category:  CategoryViolations,
		UserID:    userID,
		Kind:      string(t),
		Timestamp: v.Timestamp,
		Metadata:  metadata,
	})
}

// RecordTransaction buffers an applied transaction for analytics.
func (p *Pipeline) RecordTransaction(ctx context.Context, tx domain.Transaction) {
	p.buffer(ctx, Record{
		Category:  CategoryTransactions,
		UserID:    tx.UserID,
		Kind:      string(tx.Action),
		Timestamp: tx.Timestamp,
		Metadata:  tx.Metadata,
	})
}

// RecordProgression buffers a level change for analytics.
func (p *Pipeline) RecordProgression(ctx context.Context, userID string, oldLevel, newLevel int) {
	p.buffer(ctx, Record{
		Category:  CategoryProgression,
		UserID:    userID,
		Kind:      "level_up",
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"old_level": oldLevel, "new_level": newLevel},
	})
}

// RecordEvent buffers a generic event for analytics.
func (p *Pipeline) RecordEvent(ctx context.Context, userID, kind string, metadata map[string]interface{}) {
	p.buffer(ctx, Record{
		Category:  CategoryEvents,
		UserID:    userID,
		Kind:      kind,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

// buffer appends a record and flushes its category once the threshold is hit.
func (p *Pipeline) buffer(ctx context.Context, rec Record) {
	p.mu.Lock()
	p.buffers[rec.Category] = append(p.buffers[rec.Category], rec)
	var full []Record
	if len(p.buffers[rec.Category]) >= p.bufferSize {
		full = p.buffers[rec.Category]
		p.buffers[rec.Category] = nil
	}
	p.mu.Unlock()

	if full != nil {
		p.flushBatch(ctx, rec.Category, full)
	}
}

// Start begins the interval flush loop.
func (p *Pipeline) Start() {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return
	}
	p.running = true
	p.runMu.Unlock()

	p.logger.Info("violation pipeline started", "flush_interval", p.flushInterval, "buffer_size", p.bufferSize)
	go p.run()
}

// run is the timer loop.
func (p *Pipeline) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Flush(context.Background())
		}
	}
}

// Stop halts the timer loop and flushes any remaining partial batches.
func (p *Pipeline) Stop(ctx context.Context) {
	p.runMu.Lock()
	if !p.running {
		p.runMu.Unlock()
		p.Flush(ctx)
		return
	}
	p.running = false
	p.runMu.Unlock()

	close(p.stopCh)
	<-p.doneCh
	p.Flush(ctx)
	p.logger.Info("violation pipeline stopped")
}

// Flush drains every category buffer into aggregate writes.
func (p *Pipeline) Flush(ctx context.Context) {
	p.mu.Lock()
	drained := p.buffers
	p.buffers = make(map[Category][]Record)
	p.mu.Unlock()

	for category, records := range drained {
		if len(records) == 0 {
			continue
		}
		p.flushBatch(ctx, category, records)
	}
}

// flushBatch aggregates one category's records by (date, kind) and
// (date, user) and writes the result. Failures are logged, never requeued.
func (p *Pipeline) flushBatch(ctx context.Context, category Category, records []Record) {
	batch := store.AggregateBatch{
		Category:  string(category),
		ByType:    make(map[store.AggregateKey]int),
		ByUser:    make(map[store.AggregateKey]int),
		FlushedAt: time.Now(),
	}
	for _, rec := range records {
		day := rec.Timestamp.UTC().Format("2006-01-02")
		batch.ByType[store.AggregateKey{Date: day, Bucket: rec.Kind}]++
		batch.ByUser[store.AggregateKey{Date: day, Bucket: rec.UserID}]++
	}

	if err := p.store.WriteAggregates(ctx, batch); err != nil {
		p.logger.Error("failed to flush analytics batch",
			"category", category,
			"records", len(records),
			"error", err,
		)
		return
	}

	p.logger.Debug("flushed analytics batch", "category", category, "records", len(records))
}

// Summary returns the per-user violation counters.
func (p *Pipeline) Summary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	return p.store.ViolationSummary(ctx, userID)
}

// BufferedCount returns the number of buffered records in one category.
func (p *Pipeline) BufferedCount(category Category) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers[category])
}
