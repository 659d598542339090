package observability

// WSRoutingKey is the routing key of event channel lifecycle events.
const WSRoutingKey = "ws_events.messages"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// WSEnvelope builds the lifecycle event published for one connection.
func WSEnvelope(event, connID, userID, ip, reason string, durationMs int64) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     connID,
				"duration_ms": durationMs,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": userID,
				"ip":      ip,
			},
		},
	}
}
