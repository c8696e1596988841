package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
)

// Status is the lifecycle state of a single connection instance.
// Transitions are monotonic: connecting -> connected -> disconnected,
// or connecting/connected -> error -> disconnected. A disconnected
// instance never transitions again; a new Connect creates a new instance.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Reserved event types. EventConnection and EventError are synthesized by
// the multiplexer itself; TypeHeartbeat is answered on the wire and never
// dispatched to listeners.
const (
	EventConnection = "connection"
	EventError      = "error"
	TypeHeartbeat   = "heartbeat"
)

// Application event types broadcast by the Finexia API.
const (
	TypePrediction     = "prediction"
	TypePipelineStatus = "pipeline_status"
	TypeModelStatus    = "model_status"
	TypeSystemStatus   = "system_status"
	TypeNotification   = "notification"
)

// Message is the wire envelope for every inbound frame.
type Message struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	TenantID  int             `json:"tenant_id,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event is what listeners receive. For wire messages Msg holds the decoded
// envelope; for synthetic connection events Status is set; for synthetic
// error events Err is set.
type Event struct {
	Topic      string
	TaskID     string
	Type       string
	Msg        Message
	Status     Status
	Err        error
	ReceivedAt time.Time
}

// Listener handles a dispatched event. Listeners for a given (key, type)
// run in registration order on the connection's read goroutine; a panicking
// listener is logged and does not affect its siblings.
type Listener func(Event)

// TokenSource supplies the bearer credential for new connections. Connect
// refuses to dial when no token is available.
type TokenSource interface {
	Token() (string, bool)
}

// Config configures a Mux.
type Config struct {
	BaseURL          string        // ws(s) origin, e.g. ws://localhost:8000
	HandshakeTimeout time.Duration // Dial deadline
	WriteTimeout     time.Duration // Write deadline for outbound frames
}

// DefaultConfig returns sensible defaults. BaseURL must still be set.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}
