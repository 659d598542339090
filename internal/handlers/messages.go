package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

type deliverer interface {
	SendDirect(ctx context.Context, senderID, receiverID, content string) (models.MessageView, error)
	SharePost(ctx context.Context, senderID, postID string, recipientIDs []string) ([]models.MessageView, error)
}

type conversationLister interface {
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

type historyReader interface {
	ListMessages(ctx context.Context, userID, otherUserID string) ([]models.MessageView, error)
}

// MessageHandler serves the direct messaging endpoints.
type MessageHandler struct {
	delivery      deliverer
	conversations conversationLister
	history       historyReader
	audit         *telemetry.AuditEmitter
	log           zerolog.Logger
}

// NewMessageHandler builds a MessageHandler. audit may be nil.
func NewMessageHandler(delivery deliverer, conversations conversationLister, history historyReader, audit *telemetry.AuditEmitter, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		delivery:      delivery,
		conversations: conversations,
		history:       history,
		audit:         audit,
		log:           log,
	}
}

// Register mounts the routes on an authenticated group.
func (h *MessageHandler) Register(r gin.IRoutes) {
	r.GET("/conversations", h.ListConversations)
	r.GET("/:otherUserId", h.GetMessages)
	r.POST("/send", h.SendMessage)
	r.POST("/share", h.SharePost)
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type sharePostRequest struct {
	PostID       string   `json:"post_id"`
	RecipientIDs []string `json:"recipient_ids"`
}

// ListConversations returns the caller's conversation list.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	summaries, err := h.conversations.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetMessages returns the history between the caller and :otherUserId.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	messages, err := h.history.ListMessages(c.Request.Context(), userID, c.Param("otherUserId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage stores a direct message.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.delivery.SendDirect(c.Request.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %s sent to %s", msg.ID, req.ReceiverID), requestIDFromContext(c), userID)
	c.JSON(http.StatusCreated, msg)
}

// SharePost sends a post to several users at once.
func (h *MessageHandler) SharePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req sharePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	shared, err := h.delivery.SharePost(c.Request.Context(), userID, req.PostID, req.RecipientIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("post %s shared with %d users", req.PostID, len(shared)), requestIDFromContext(c), userID)
	c.JSON(http.StatusCreated, gin.H{"msg": "Post shared successfully.", "shared_messages": shared})
}

func callerID(c *gin.Context) (string, bool) {
	userID := userIDFromContext(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
		return "", false
	}
	return userID, true
}

func (h *MessageHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", requestIDFromContext(c)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
