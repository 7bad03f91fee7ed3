package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Budget for fetching a state snapshot on subscribe
	snapshotTimeout = 3 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client is one connected operator session. A session watches explicit
// user IDs; every watch is acknowledged with a snapshot of that user's
// authoritative state so the operator starts from truth rather than from
// the next event.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// clientCommand is the inbound protocol: an action plus the user it targets.
type clientCommand struct {
	Action string `json:"action"`
	UserID string `json:"user_id,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// readPump pumps commands from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.logger.Warn("invalid command format", "error", err)
			c.sendError("", "invalid command format")
			continue
		}

		c.handleCommand(cmd)
	}
}

// handleCommand processes one inbound command
func (c *Client) handleCommand(cmd clientCommand) {
	switch cmd.Action {
	case MessageTypeSubscribe:
		if cmd.UserID == "" {
			c.sendError("", "user_id required for subscribe")
			return
		}
		c.hub.Subscribe(c, cmd.UserID)
		c.enqueue(Message{
			Type:      "subscribed",
			UserID:    cmd.UserID,
			Data:      map[string]string{"status": "ok"},
			Timestamp: time.Now(),
		})
		c.sendSnapshot(cmd.UserID)

	case MessageTypeUnsubscribe:
		if cmd.UserID == "" {
			return
		}
		c.hub.Unsubscribe(c, cmd.UserID)
		c.enqueue(Message{
			Type:      "unsubscribed",
			UserID:    cmd.UserID,
			Data:      map[string]string{"status": "ok"},
			Timestamp: time.Now(),
		})

	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong, Timestamp: time.Now()})

	default:
		c.logger.Debug("unknown command", "action", cmd.Action)
	}
}

// sendSnapshot pushes the user's current authoritative state to this client
// only. Skipped when no state source is wired into the hub.
func (c *Client) sendSnapshot(userID string) {
	src := c.hub.getStateSource()
	if src == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	state, err := src.PlayerState(ctx, userID)
	if err != nil {
		c.logger.Warn("failed to fetch state snapshot", "user_id", userID, "error", err)
		c.sendError(userID, "snapshot unavailable")
		return
	}

	c.enqueue(Message{
		Type:      MessageTypeSnapshot,
		UserID:    userID,
		Data:      state,
		Timestamp: time.Now(),
	})
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue marshals and queues one message for this client, dropping it
// when the send buffer is full.
func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(userID, errMsg string) {
	c.enqueue(Message{
		Type:      MessageTypeError,
		UserID:    userID,
		Data:      map[string]string{"error": errMsg},
		Timestamp: time.Now(),
	})
}

// ServeWs handles WebSocket requests from peers
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id)
}
