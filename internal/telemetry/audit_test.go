package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(pub, "audit.messages", "messaging-service", "test", zerolog.Nop())

	var got AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.messages", mock.AnythingOfType("telemetry.AuditEnvelope"), map[string]string{"x-request-id": "req-1"}).
		Run(func(args mock.Arguments) { got = args.Get(2).(AuditEnvelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "message sent", "req-1", "u1")

	pub.AssertExpectations(t)
	require.Equal(t, "audit_log", got.EventType)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "message sent", got.Payload.Text)
	assert.NotEmpty(t, got.OccurredAt)
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "x", "r", "")
	})
}

func TestEmitSwallowsPublishError(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(pub, "audit.messages", "svc", "test", zerolog.Nop())
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "ERROR", "boom", "r", "")
	})
	pub.AssertExpectations(t)
}
