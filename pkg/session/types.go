package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bambu-link/bambu-go/pkg/correlator"
	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// Session errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrClosed           = errors.New("session closed")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrConnectionLost   = errors.New("connection lost")
	ErrPushall          = errors.New("full state request failed")
)

// Config configures a Session.
type Config struct {
	// Serial is the printer serial; it selects the MQTT topics.
	Serial string

	// Timeout is the default reply timeout for commands (default: 10s).
	Timeout time.Duration

	// Correlation selects where replies echo the sequence number.
	Correlation wire.Correlation

	// SequenceStart offsets the sequence counter. The first command uses
	// SequenceStart+1.
	SequenceStart uint64

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// Capture receives protocol events. Nil discards them.
	Capture log.Logger

	// Metrics records session and correlator activity. Nil disables metrics.
	Metrics *metric.Metrics

	// Now stamps inbound messages. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     correlator.DefaultTimeout,
		Correlation: wire.CorrelationFlat,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Serial == "" {
		return fmt.Errorf("%w: serial is required", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// Status is the connection status of a session.
type Status uint8

const (
	// StatusDisconnected - no connection, initial and final status.
	StatusDisconnected Status = iota

	// StatusConnecting - Connect is in progress.
	StatusConnecting

	// StatusConnected - transport is up and the full state was requested.
	StatusConnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Event types for session callbacks.
type EventType uint8

const (
	// EventConnected - transport connected, including reconnects.
	EventConnected EventType = iota

	// EventDisconnected - session left the connected status.
	EventDisconnected

	// EventError - transport failure or failed full state request.
	EventError

	// EventData - an inbound message was accepted.
	EventData

	// EventState - the merged snapshot changed.
	EventState

	// EventStateUpdate - the minimal patch for the last change.
	EventStateUpdate
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventError:
		return "ERROR"
	case EventData:
		return "DATA"
	case EventState:
		return "STATE"
	case EventStateUpdate:
		return "STATE_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Event represents a session event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Message is the inbound message (EventData).
	Message *wire.Message

	// State is a copy of the merged snapshot (EventState).
	State *state.State

	// Patch holds only the changed fields (EventStateUpdate).
	Patch *state.State

	// Previous is a copy of the snapshot before the patch was applied
	// (EventStateUpdate).
	Previous *state.State

	// Error is set for EventError and for EventDisconnected after a loss.
	Error error
}

// EventHandler handles session events.
type EventHandler func(Event)
