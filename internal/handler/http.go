package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/validator"
	"github.com/economy-guard/internal/websocket"
)

// Handler provides HTTP handlers for the economy validation API
type Handler struct {
	service *validator.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *validator.Service, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// EarningsRequest is the body of an earnings claim.
type EarningsRequest struct {
	Currency domain.Currency `json:"currency"`
	Amount   int64           `json:"amount"`
	Reason   string          `json:"reason"`
}

// ViolationReport is the body of an advisory client-side anomaly report.
type ViolationReport struct {
	Type     domain.ViolationType   `json:"type"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/players/{userID}", func(r chi.Router) {
			r.Get("/state", h.GetState)
			r.Delete("/cache", h.InvalidateCache)

			r.Post("/purchase", h.Purchase)
			r.Post("/earnings", h.Earnings)
			r.Post("/level-up", h.LevelUp)
			r.Post("/sync", h.Sync)

			r.Get("/violations", h.GetViolations)
			r.Post("/violations", h.ReportViolation)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics, including the
// watcher count for one user when user_id is given
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		stats["watchers"] = h.hub.GetSubscriberCount(userID)
	}
	h.writeSuccess(w, stats)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetState returns the server-authoritative state for a player
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	state, err := h.service.PlayerState(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get player state", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, state)
}

// InvalidateCache drops a player's cached state so the next read hits the store
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	h.service.InvalidateCache(userID)
	h.writeSuccess(w, map[string]string{"status": "invalidated"})
}

// Purchase validates and applies a purchase claim. Declined purchases are
// successful HTTP responses carrying the decline, not errors.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.ItemType == "" || req.ItemID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.Purchase(r.Context(), userID, req)
	if err != nil {
		h.logger.Error("failed to process purchase", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, result)
}

// Earnings validates and applies an earnings claim
func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req EarningsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.Earn(r.Context(), userID, req.Currency, req.Amount, req.Reason)
	if err != nil {
		if domain.IsRequestError(err) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to process earnings", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, result)
}

// LevelUp validates and applies a level-up claim
func (h *Handler) LevelUp(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.LevelUp(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to process level up", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, result)
}

// Sync reconciles a client-reported state against the server copy
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var client domain.ClientState
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.Sync(r.Context(), userID, client)
	if err != nil {
		h.logger.Error("failed to sync state", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, result)
}

// GetViolations returns the per-user violation counter summary
func (h *Handler) GetViolations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	summary, err := h.service.ViolationSummary(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get violation summary", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, summary)
}

// ReportViolation records an advisory client-side anomaly report
func (h *Handler) ReportViolation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var report ViolationReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if report.Type == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	h.service.ReportViolation(r.Context(), userID, report.Type, report.Metadata)
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}
