package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

type connectionCounter interface {
	Len() int
}

type presenceLookup interface {
	Len() int
	Lookup(userID string) (string, bool)
}

// DebugHandler exposes live presence state and an audit round trip for
// operators. It is mounted only when debug routes are enabled.
type DebugHandler struct {
	connections connectionCounter
	presence    presenceLookup
	audit       *telemetry.AuditEmitter
}

// NewDebugHandler builds a DebugHandler. audit may be nil.
func NewDebugHandler(connections connectionCounter, presence presenceLookup, audit *telemetry.AuditEmitter) *DebugHandler {
	return &DebugHandler{connections: connections, presence: presence, audit: audit}
}

// Register mounts the routes on r.
func (h *DebugHandler) Register(r gin.IRoutes) {
	r.GET("/presence", h.PresenceSummary)
	r.GET("/presence/:userId", h.UserPresence)
	r.POST("/audit-test", h.AuditTest)
}

// PresenceSummary reports open sockets and users with a bound connection.
// Sockets that never joined count only as connections.
func (h *DebugHandler) PresenceSummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections":  h.connections.Len(),
		"online_users": h.presence.Len(),
	})
}

func (h *DebugHandler) UserPresence(c *gin.Context) {
	userID := c.Param("userId")
	if !models.ValidID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	connID, online := h.presence.Lookup(userID)
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": online, "conn_id": connID})
}

// AuditTest publishes one audit envelope carrying the caller's request id.
func (h *DebugHandler) AuditTest(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
		return
	}
	requestID := requestIDFromContext(c)
	h.audit.Emit(c.Request.Context(), "INFO", "debug audit round trip", requestID, userIDFromContext(c))
	c.JSON(http.StatusAccepted, gin.H{"status": "published", "request_id": requestID})
}
