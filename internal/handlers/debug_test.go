package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/presence"
	"messaging-service/internal/telemetry"
)

type fixedConnections int

func (n fixedConnections) Len() int { return int(n) }

func newDebugRouter(registry *presence.Registry, audit *telemetry.AuditEmitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	NewDebugHandler(fixedConnections(3), registry, audit).Register(r.Group("/debug"))
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPresenceSummaryCountsSocketsAndUsers(t *testing.T) {
	registry := presence.NewRegistry()
	registry.Bind(aliceID, "conn-1")
	registry.Bind(bobID, "conn-2")

	rec := serve(newDebugRouter(registry, nil), http.MethodGet, "/debug/presence")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Connections int `json:"connections"`
		OnlineUsers int `json:"online_users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Connections)
	assert.Equal(t, 2, body.OnlineUsers)
}

func TestUserPresence(t *testing.T) {
	registry := presence.NewRegistry()
	registry.Bind(aliceID, "conn-1")
	r := newDebugRouter(registry, nil)

	rec := serve(r, http.MethodGet, "/debug/presence/"+aliceID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"`+aliceID+`","online":true,"conn_id":"conn-1"}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/debug/presence/"+bobID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"`+bobID+`","online":false,"conn_id":""}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/debug/presence/bob")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditTestPublishesWithRequestID(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.messages", mock.Anything, mock.Anything).Return(nil).Once()
	audit := telemetry.NewAuditEmitter(publisher, "audit.messages", "messaging-service", "test", zerolog.Nop())

	rec := serve(newDebugRouter(presence.NewRegistry(), audit), http.MethodPost, "/debug/audit-test")
	require.Equal(t, http.StatusAccepted, rec.Code)

	requestID := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID)
	envelope := publisher.Calls[0].Arguments.Get(2).(telemetry.AuditEnvelope)
	assert.Equal(t, requestID, envelope.RequestID)
	assert.Equal(t, "debug audit round trip", envelope.Payload.Text)
	publisher.AssertExpectations(t)
}

func TestAuditTestWithoutEmitter(t *testing.T) {
	rec := serve(newDebugRouter(presence.NewRegistry(), nil), http.MethodPost, "/debug/audit-test")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
