package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one transport session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Broker is the MQTT broker address (host:port).
	Broker string `cbor:"6,keyasint,omitempty"`

	// Serial is the printer serial number.
	Serial string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the printer.
	DirectionIn Direction = 0
	// DirectionOut indicates a message published to the printer.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the MQTT client.
	LayerTransport Layer = 0
	// LayerWire is the envelope codec and correlator.
	LayerWire Layer = 1
	// LayerSession is the session controller and status pipeline.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a published or received payload.
	CategoryMessage Category = 0
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one payload on the report or request topic.
type MessageEvent struct {
	// Type classifies the payload after correlation.
	Type MessageType `cbor:"1,keyasint"`

	// Topic the payload was published on.
	Topic string `cbor:"2,keyasint"`

	// Sequence is the client sequence number (commands and replies).
	Sequence *uint64 `cbor:"3,keyasint,omitempty"`

	// DeviceSequence is the printer's own sequence_id, when reported.
	DeviceSequence string `cbor:"4,keyasint,omitempty"`

	// Command is the command name, e.g. "pushall" or "push_status".
	Command string `cbor:"5,keyasint,omitempty"`

	// Payload is the raw JSON (may be truncated for large payloads).
	Payload []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`

	// Size is the original payload size in bytes.
	Size int `cbor:"8,keyasint,omitempty"`

	// Latency is the time from publish to reply (replies only).
	Latency *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageType classifies a payload.
type MessageType uint8

const (
	// MessageTypeCommand is an outbound command.
	MessageTypeCommand MessageType = 0
	// MessageTypeReply is an inbound reply matched to a pending command.
	MessageTypeReply MessageType = 1
	// MessageTypeTelemetry is an inbound status report.
	MessageTypeTelemetry MessageType = 2
	// MessageTypeUnmatched is an inbound reply with no pending command.
	MessageTypeUnmatched MessageType = 3
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeReply:
		return "REPLY"
	case MessageTypeTelemetry:
		return "TELEMETRY"
	case MessageTypeUnmatched:
		return "UNMATCHED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the MQTT connection.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is the session controller.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// MaxPayloadSize bounds the payload bytes kept in a MessageEvent.
const MaxPayloadSize = 64 * 1024

// NewMessageEvent builds a MessageEvent holding at most MaxPayloadSize bytes
// of payload.
func NewMessageEvent(typ MessageType, topic string, payload []byte) *MessageEvent {
	ev := &MessageEvent{
		Type:  typ,
		Topic: topic,
		Size:  len(payload),
	}
	if len(payload) > MaxPayloadSize {
		payload = payload[:MaxPayloadSize]
		ev.Truncated = true
	}
	ev.Payload = append([]byte(nil), payload...)
	return ev
}
