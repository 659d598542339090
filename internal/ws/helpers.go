package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"messaging-service/internal/models"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// encodeFrame wraps payload in the {"event","data"} envelope.
func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Event{Event: event, Data: data})
}
