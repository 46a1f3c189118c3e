package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduadvise-backend/internal/chat"
	"eduadvise-backend/pkg/pagination"
	"eduadvise-backend/pkg/response"
)

// UnreadCounter reports the total unread message count across all of a
// user's conversations. Implemented by the CockroachDB conversation repo.
type UnreadCounter interface {
	TotalUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Handler handles HTTP requests for messaging
type Handler struct {
	chatService *chat.Service
	unread      UnreadCounter
}

// NewHandler creates a new chat handler
func NewHandler(chatService *chat.Service, unread UnreadCounter) *Handler {
	return &Handler{chatService: chatService, unread: unread}
}

// SendMessageRequest represents a send message request body
type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
	Content    string    `json:"content"`
	FileURL    *string   `json:"file_url"`
	FileName   *string   `json:"file_name"`
}

// SendMessage persists a message and pushes it to the receiver
// POST /api/messages
func (h *Handler) SendMessage(c *gin.Context) {
	senderID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), &chat.SendMessageInput{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		FileURL:    req.FileURL,
		FileName:   req.FileName,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"message": msg})
}

// ListConversations returns the caller's conversations, most recent first
// GET /api/conversations?limit=&offset=
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	page := pagination.FromQuery(c)
	convs, err := h.chatService.ListConversations(c.Request.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"conversations": convs,
		"limit":         page.Limit,
		"offset":        page.Offset,
	})
}

// GetMessages returns a page of a conversation's history, oldest first.
// Pass before=<RFC3339> to page further back.
// GET /api/conversations/:conversation_id/messages?before=&limit=
func (h *Handler) GetMessages(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	conversationID, err := uuid.Parse(c.Param("conversation_id"))
	if err != nil {
		response.ValidationError(c, "invalid conversation ID")
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			response.ValidationError(c, "before must be an RFC3339 timestamp")
			return
		}
	}
	page := pagination.FromQuery(c)

	messages, err := h.chatService.GetMessages(c.Request.Context(), userID, conversationID, before, page.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

// MarkRead zeroes the caller's unread counter for a conversation
// POST /api/conversations/:conversation_id/read
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	conversationID, err := uuid.Parse(c.Param("conversation_id"))
	if err != nil {
		response.ValidationError(c, "invalid conversation ID")
		return
	}

	if err := h.chatService.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "conversation marked read"})
}

// UnreadTotal returns the caller's unread count across all conversations
// GET /api/conversations/unread
func (h *Handler) UnreadTotal(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	total, err := h.unread.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": total})
}
