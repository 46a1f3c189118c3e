package call

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduadvise-backend/internal/call"
	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/config"
	"eduadvise-backend/pkg/pagination"
	"eduadvise-backend/pkg/response"
)

// HistoryRepository lists a user's past calls. Implemented by the
// CockroachDB call repo.
type HistoryRepository interface {
	GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error)
}

// Handler handles HTTP requests for call signaling and history
type Handler struct {
	manager *call.Manager
	history HistoryRepository
	webrtc  config.WebRTCConfig
}

// NewHandler creates a new call handler
func NewHandler(manager *call.Manager, history HistoryRepository, webrtc config.WebRTCConfig) *Handler {
	return &Handler{manager: manager, history: history, webrtc: webrtc}
}

// InitiateRequest represents a call initiation request body
type InitiateRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
	CallType   string    `json:"call_type" binding:"required,oneof=audio video"`
}

// StatusRequest represents a call status transition request
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted declined ended"`
}

// SignalRequest represents a WebRTC signal relay request
type SignalRequest struct {
	SignalType string         `json:"signal_type" binding:"required,oneof=offer answer ice-candidate"`
	Data       map[string]any `json:"data" binding:"required"`
}

// Initiate starts a new call and rings the receiver
// POST /api/calls
func (h *Handler) Initiate(c *gin.Context) {
	callerID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	started, err := h.manager.Start(c.Request.Context(), callerID, req.ReceiverID, domain.CallType(req.CallType))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"call": started})
}

// UpdateStatus transitions a call (accept, decline, end)
// PUT /api/calls/:call_id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	callID, err := uuid.Parse(c.Param("call_id"))
	if err != nil {
		response.ValidationError(c, "invalid call ID")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	updated, err := h.manager.UpdateStatus(c.Request.Context(), callID, userID, domain.CallStatus(req.Status))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"call": updated})
}

// Signal relays a WebRTC offer/answer/candidate to the other party
// POST /api/calls/:call_id/signal
func (h *Handler) Signal(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	callID, err := uuid.Parse(c.Param("call_id"))
	if err != nil {
		response.ValidationError(c, "invalid call ID")
		return
	}

	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.manager.Signal(c.Request.Context(), callID, userID, domain.SignalType(req.SignalType), req.Data); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "signal relayed"})
}

// Get returns a call's current state. Participants only.
// GET /api/calls/:call_id
func (h *Handler) Get(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	callID, err := uuid.Parse(c.Param("call_id"))
	if err != nil {
		response.ValidationError(c, "invalid call ID")
		return
	}

	found, err := h.manager.Get(c.Request.Context(), callID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if userID != found.CallerID && userID != found.ReceiverID {
		response.Forbidden(c, "Not a participant of this call")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"call": found})
}

// History returns the caller's call log, newest first
// GET /api/calls?limit=&offset=
func (h *Handler) History(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	page := pagination.FromQuery(c)
	calls, err := h.history.GetUserCalls(c.Request.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls":  calls,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// WebRTCConfig returns the ICE servers clients should use
// GET /api/calls/webrtc-config
func (h *Handler) WebRTCConfig(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"ice_servers": h.webrtc.ICEServers(),
	})
}
