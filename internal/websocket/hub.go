package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/economy-guard/internal/domain"
)

// Message types
const (
	MessageTypeViolation   = "violation"
	MessageTypeCorrection  = "state_correction"
	MessageTypeSnapshot    = "state_snapshot"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CorrectionUpdate carries a forced state correction for broadcast
type CorrectionUpdate struct {
	UserID string              `json:"user_id"`
	State  *domain.PlayerState `json:"state"`
	Drift  []domain.FieldDrift `json:"drift"`
}

// StateSource provides authoritative player state for subscription
// snapshots. The validator service satisfies it.
type StateSource interface {
	PlayerState(ctx context.Context, userID string) (*domain.PlayerState, error)
}

// Hub maintains the set of active operator clients and fans out violation
// and correction events. Clients subscribed to a user ID receive that user's
// events; events without a user ID go to everyone.
type Hub struct {
	// Registered clients by watched user ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound messages
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Snapshot provider, optional
	stateSource StateSource

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	userID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all user subscriptions
				for userID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, userID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.userID]; !ok {
				h.clients[req.userID] = make(map[*Client]bool)
			}
			h.clients[req.userID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "user_id", req.userID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.userID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.userID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "user_id", req.userID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// SetStateSource wires the provider used for subscription snapshots.
func (h *Hub) SetStateSource(src StateSource) {
	h.mu.Lock()
	h.stateSource = src
	h.mu.Unlock()
}

// getStateSource returns the wired snapshot provider, or nil.
func (h *Hub) getStateSource() StateSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stateSource
}

// broadcastMessage sends a message to subscribed clients. Messages carrying
// a user ID go only to that user's watchers; messages without one go to
// every connected client.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.UserID != "" {
		if clients, ok := h.clients[message.UserID]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
		return
	}

	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// ViolationRecorded fans a recorded violation out to the user's watchers.
// Satisfies the pipeline's notifier contract.
func (h *Hub) ViolationRecorded(v domain.Violation) {
	message := &Message{
		Type:      MessageTypeViolation,
		UserID:    v.UserID,
		Data:      v,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// CorrectionForced notifies watchers of a forced state correction.
// Satisfies the validator's correction sink contract.
func (h *Hub) CorrectionForced(userID string, state *domain.PlayerState, drift []domain.FieldDrift) {
	message := &Message{
		Type:   MessageTypeCorrection,
		UserID: userID,
		Data: CorrectionUpdate{
			UserID: userID,
			State:  state,
			Drift:  drift,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a user subscription
func (h *Hub) Subscribe(client *Client, userID string) {
	h.subscribe <- &subscriptionRequest{
		client: client,
		userID: userID,
	}
}

// Unsubscribe removes a client from a user subscription
func (h *Hub) Unsubscribe(client *Client, userID string) {
	h.unsubscribe <- &subscriptionRequest{
		client: client,
		userID: userID,
	}
}

// GetSubscriberCount returns the number of watchers for a user
func (h *Hub) GetSubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[userID]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
