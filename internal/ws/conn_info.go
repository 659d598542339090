package ws

import "time"

// ConnInfo describes one live connection. UserID stays empty until join.
// AuthUserID is the identity proven by the handshake token, if any.
type ConnInfo struct {
	ConnID      string
	UserID      string
	AuthUserID  string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) durationMs() int64 {
	return time.Since(i.ConnectedAt).Milliseconds()
}
