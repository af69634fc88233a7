package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/cablewatch/internal/monitor"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Control message types handled by the connection itself.
const (
	TypeWelcome    = "welcome"
	TypePing       = "ping"
	TypeDisconnect = "disconnect"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	SessionID  string    // Socket session the message arrived on
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// controlMessage is the envelope used to classify inbound frames.
type controlMessage struct {
	Type      string `json:"type"`
	Reason    string `json:"reason,omitempty"`
	Reconnect *bool  `json:"reconnect,omitempty"`
}

// Config configures a Conn.
type Config struct {
	URL              string        // WebSocket URL (ws:// or wss://)
	Header           http.Header   // Extra handshake headers (Origin, Authorization, ...)
	HandshakeTimeout time.Duration // Dial timeout for each (re)connect
	PingInterval     time.Duration // Interval between ping frames (0 disables)
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// Observer receives dial results.
type Observer interface {
	ObserveDial(ok bool)
}

// Stats is a snapshot of connection and monitor state.
type Stats struct {
	Connected bool          `json:"connected"`
	SessionID string        `json:"session_id,omitempty"`
	URL       string        `json:"url"`
	Monitor   monitor.State `json:"monitor"`
}
