package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	ErrNotConnected  = errors.New("transport not connected")
	ErrConnect       = errors.New("mqtt connect failed")
	ErrSubscribe     = errors.New("mqtt subscribe failed")
	ErrPublish       = errors.New("mqtt publish failed")
	ErrInvalidConfig = errors.New("invalid transport config")
)

// Transport is the pub/sub channel to one printer.
// Implemented by MQTT.
type Transport interface {
	// Listen registers the receiver of connection events and inbound
	// messages. It must be called before Connect.
	Listen(l Listener)

	// Connect performs the initial connection. Later losses are recovered
	// by the transport itself and reported through the Listener.
	Connect(ctx context.Context) error

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Disconnect closes the connection without reconnecting.
	Disconnect()
}

// Listener receives transport callbacks. Calls for one transport are never
// concurrent with each other except OnError.
type Listener interface {
	// OnConnect is called after every successful connect and subscribe,
	// including reconnects.
	OnConnect()

	// OnConnectionLost is called when an established connection drops.
	// reconnecting reports whether the transport will try to recover.
	OnConnectionLost(err error, reconnecting bool)

	// OnMessage delivers one inbound message.
	OnMessage(topic string, payload []byte)

	// OnError reports a non-fatal transport failure such as a failed
	// reconnect attempt.
	OnError(err error)
}

var _ Transport = (*MQTT)(nil)
