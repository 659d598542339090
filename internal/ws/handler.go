package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
)

// Handler upgrades GET /ws requests into hub connections.
type Handler struct {
	hub      *Hub
	verifier auth.TokenVerifier
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler constructs a Handler. Browser origins other than clientURL are
// refused; "*" admits any origin.
func NewHandler(hub *Hub, verifier auth.TokenVerifier, clientURL string, log zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(clientURL),
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

func originChecker(clientURL string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || clientURL == "*" || origin == clientURL
	}
}

// Handle upgrades the connection and runs it until the peer goes away.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	authUserID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		AuthUserID:  authUserID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   c.GetString(middleware.RequestIDKey),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := h.hub.OnConnect(conn, info)
	go client.Run()
}

// authenticate returns the token's user when one is presented. Without
// RequireToken a missing or bad token still admits an anonymous connection.
func (h *Handler) authenticate(c *gin.Context) (string, error) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" || h.verifier == nil {
		if h.hub.cfg.RequireToken {
			return "", auth.ErrUnauthorized
		}
		return "", nil
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		if h.hub.cfg.RequireToken {
			return "", err
		}
		h.log.Debug().Err(err).Msg("ignoring bad handshake token")
		return "", nil
	}
	return userID, nil
}
