package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/economy-guard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(hub *Hub) *Client {
	return &Client{
		id:     "test-client",
		hub:    hub,
		send:   make(chan []byte, 8),
		logger: testLogger(),
	}
}

// waitForWatchers polls until the hub has processed the subscription.
func waitForWatchers(t *testing.T, hub *Hub, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetSubscriberCount(userID) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d watchers for %s, got %d", want, userID, hub.GetSubscriberCount(userID))
}

func receiveMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshaling message: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_CorrectionReachesWatcher(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)
	hub.Subscribe(c, "u1")
	waitForWatchers(t, hub, "u1", 1)

	state := domain.NewPlayerState("u1")
	drift := []domain.FieldDrift{{Field: "cash", Client: 9000, Server: 5000, Tolerance: 500}}
	hub.CorrectionForced("u1", state, drift)

	msg := receiveMessage(t, c)
	if msg.Type != MessageTypeCorrection {
		t.Fatalf("expected %s message, got %s", MessageTypeCorrection, msg.Type)
	}
	if msg.UserID != "u1" {
		t.Errorf("expected correction for u1, got %q", msg.UserID)
	}

	payload := msg.Data.(map[string]interface{})
	correctedState := payload["state"].(map[string]interface{})
	if correctedState["cash"].(float64) != 5000 {
		t.Errorf("expected authoritative cash 5000 in correction, got %v", correctedState["cash"])
	}
	driftList := payload["drift"].([]interface{})
	if len(driftList) != 1 {
		t.Errorf("expected 1 drift entry, got %d", len(driftList))
	}
}

func TestHub_ViolationScopedToWatchedUser(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)
	hub.Subscribe(c, "u1")
	waitForWatchers(t, hub, "u1", 1)

	// Event for an unwatched user must not reach this client
	hub.ViolationRecorded(domain.Violation{
		UserID: "u2", Type: domain.ViolationBannedAction, Severity: domain.SeverityCritical, Timestamp: time.Now(),
	})
	hub.ViolationRecorded(domain.Violation{
		UserID: "u1", Type: domain.ViolationStateMismatch, Severity: domain.SeverityWarning, Timestamp: time.Now(),
	})

	msg := receiveMessage(t, c)
	if msg.Type != MessageTypeViolation {
		t.Fatalf("expected %s message, got %s", MessageTypeViolation, msg.Type)
	}
	if msg.UserID != "u1" {
		t.Errorf("expected only the watched user's violation, got %q", msg.UserID)
	}

	select {
	case raw := <-c.send:
		t.Fatalf("unexpected extra message: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

type stubStateSource struct {
	state *domain.PlayerState
}

func (s *stubStateSource) PlayerState(ctx context.Context, userID string) (*domain.PlayerState, error) {
	return s.state, nil
}

func TestClient_SubscribeSnapshotCarriesState(t *testing.T) {
	hub := NewHub(testLogger())
	seeded := domain.NewPlayerState("u1")
	seeded.Cash = 1234
	hub.SetStateSource(&stubStateSource{state: seeded})

	c := newTestClient(hub)
	c.sendSnapshot("u1")

	msg := receiveMessage(t, c)
	if msg.Type != MessageTypeSnapshot {
		t.Fatalf("expected %s message, got %s", MessageTypeSnapshot, msg.Type)
	}
	state := msg.Data.(map[string]interface{})
	if state["cash"].(float64) != 1234 {
		t.Errorf("expected snapshot cash 1234, got %v", state["cash"])
	}
}

func TestClient_SnapshotSkippedWithoutSource(t *testing.T) {
	hub := NewHub(testLogger())
	c := newTestClient(hub)

	c.sendSnapshot("u1")

	select {
	case raw := <-c.send:
		t.Fatalf("expected no snapshot without a source, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}
