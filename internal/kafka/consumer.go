package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/economy-guard/internal/config"
	"github.com/economy-guard/internal/domain"
)

// Event kinds carried on the economy topic
const (
	EventKindPurchase  = "purchase"
	EventKindEarn      = "earn"
	EventKindLevelUp   = "level_up"
	EventKindSync      = "sync"
	EventKindViolation = "violation"
)

// EconomyEvent is one client-reported claim on the economy topic. Kind
// selects which payload fields are meaningful.
type EconomyEvent struct {
	Kind     string                  `json:"kind"`
	UserID   string                  `json:"user_id"`
	Currency domain.Currency         `json:"currency,omitempty"`
	Amount   int64                   `json:"amount,omitempty"`
	Reason   string                  `json:"reason,omitempty"`
	Purchase *domain.PurchaseRequest `json:"purchase,omitempty"`
	Client   *domain.ClientState     `json:"client,omitempty"`
	Type     domain.ViolationType    `json:"violation_type,omitempty"`
	Metadata map[string]interface{}  `json:"metadata,omitempty"`
}

// EventHandler validates and applies economy events
type EventHandler interface {
	Purchase(ctx context.Context, userID string, req domain.PurchaseRequest) (*domain.PurchaseResult, error)
	Earn(ctx context.Context, userID string, currency domain.Currency, amount int64, reason string) (*domain.EarnResult, error)
	LevelUp(ctx context.Context, userID string) (*domain.LevelUpResult, error)
	Sync(ctx context.Context, userID string, client domain.ClientState) (*domain.SyncResult, error)
	ReportViolation(ctx context.Context, userID string, t domain.ViolationType, metadata map[string]interface{})
}

// Consumer consumes economy events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       EventHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler EventHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Events are
// micro-batched on size or timeout, then validated one at a time: each
// event must run through its own rate limit and state checks.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]EconomyEvent, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, event := range batch {
			h.consumer.dispatch(ctx, event)
		}
		h.consumer.logger.Debug("processed batch", "batch_size", len(batch))

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			var event EconomyEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if event.UserID == "" || event.Kind == "" {
				h.consumer.logger.Warn("invalid economy event",
					"user_id", event.UserID,
					"kind", event.Kind,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, event)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// dispatch routes one event to the matching validator operation. Declines
// are normal outcomes and only logged at debug; infrastructure errors are
// logged and the event dropped.
func (c *Consumer) dispatch(ctx context.Context, event EconomyEvent) {
	switch event.Kind {
	case EventKindPurchase:
		if event.Purchase == nil {
			c.logger.Warn("purchase event missing payload", "user_id", event.UserID)
			return
		}
		result, err := c.handler.Purchase(ctx, event.UserID, *event.Purchase)
		if err != nil {
			c.logger.Error("failed to process purchase event", "user_id", event.UserID, "error", err)
			return
		}
		if !result.OK {
			c.logger.Debug("purchase event declined", "user_id", event.UserID, "code", result.Decline.Code)
		}

	case EventKindEarn:
		result, err := c.handler.Earn(ctx, event.UserID, event.Currency, event.Amount, event.Reason)
		if err != nil {
			c.logger.Error("failed to process earn event", "user_id", event.UserID, "error", err)
			return
		}
		if !result.OK {
			c.logger.Debug("earn event declined", "user_id", event.UserID, "code", result.Decline.Code)
		}

	case EventKindLevelUp:
		result, err := c.handler.LevelUp(ctx, event.UserID)
		if err != nil {
			c.logger.Error("failed to process level up event", "user_id", event.UserID, "error", err)
			return
		}
		if !result.OK {
			c.logger.Debug("level up event declined", "user_id", event.UserID, "code", result.Decline.Code)
		}

	case EventKindSync:
		if event.Client == nil {
			c.logger.Warn("sync event missing client state", "user_id", event.UserID)
			return
		}
		result, err := c.handler.Sync(ctx, event.UserID, *event.Client)
		if err != nil {
			c.logger.Error("failed to process sync event", "user_id", event.UserID, "error", err)
			return
		}
		if !result.Synced {
			c.logger.Debug("sync event forced correction", "user_id", event.UserID, "drift_fields", len(result.Drift))
		}

	case EventKindViolation:
		if event.Type == "" {
			c.logger.Warn("violation event missing type", "user_id", event.UserID)
			return
		}
		c.handler.ReportViolation(ctx, event.UserID, event.Type, event.Metadata)

	default:
		c.logger.Warn("unknown event kind", "kind", event.Kind, "user_id", event.UserID)
	}
}
