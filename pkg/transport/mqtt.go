package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/bambu-link/bambu-go/pkg/connection"
	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// Defaults for printer MQTT connections.
const (
	DefaultUsername       = "bblp"
	DefaultKeepAlive      = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	ClientIDPrefix        = "bambu-go-"

	// disconnectQuiesce is how long paho may flush outstanding work, in ms.
	disconnectQuiesce = 250
)

// Config configures an MQTT transport.
type Config struct {
	// Host is the printer address.
	Host string

	// Port is the MQTT-over-TLS port (default: 8883).
	Port int

	// Serial selects the device topics.
	Serial string

	// AccessCode is the LAN access code used as the MQTT password.
	AccessCode string

	// Username is the MQTT user (default: bblp).
	Username string

	// ClientID is the MQTT client id. Empty generates a random one.
	ClientID string

	// TLS configures certificate verification.
	TLS TLSConfig

	// QoS is used for the report subscription and for publishes.
	QoS byte

	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration

	// ConnectTimeout bounds connect plus subscribe.
	ConnectTimeout time.Duration

	// Reconnect configures recovery after a connection loss.
	Reconnect connection.Config

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// Capture receives connection state and error events. Nil discards them.
	Capture log.Logger

	// Metrics records reconnects. Nil disables metrics.
	Metrics *metric.Metrics
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		Username:       DefaultUsername,
		KeepAlive:      DefaultKeepAlive,
		ConnectTimeout: DefaultConnectTimeout,
		Reconnect:      connection.DefaultConfig(),
	}
}

// Broker returns the host:port the transport dials.
func (c Config) Broker() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// client is the part of paho.Client the transport drives.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// MQTT is a Transport over the printer's local MQTT broker. Paho's own
// reconnect is disabled; a connection.Manager rebuilds the client and
// resubscribes after every loss.
type MQTT struct {
	cfg       Config
	logger    *slog.Logger
	capture   log.Logger
	mgr       *connection.Manager
	newClient func(*paho.ClientOptions) client
	startOnce sync.Once

	mu       sync.RWMutex
	client   client
	gen      uint64
	listener Listener
}

// NewMQTT creates a transport. It does not connect.
func NewMQTT(cfg Config) (*MQTT, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Serial == "" {
		return nil, fmt.Errorf("%w: serial is required", ErrInvalidConfig)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.ClientID == "" {
		cfg.ClientID = ClientIDPrefix + uuid.NewString()[:8]
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.TLS.Serial == "" {
		cfg.TLS.Serial = cfg.Serial
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	capture := cfg.Capture
	if capture == nil {
		capture = log.NoopLogger{}
	}

	t := &MQTT{
		cfg:     cfg,
		logger:  logger.With("broker", cfg.Broker(), "serial", cfg.Serial),
		capture: capture,
		newClient: func(opts *paho.ClientOptions) client {
			return paho.NewClient(opts)
		},
	}

	reconnect := cfg.Reconnect
	if reconnect.Logger == nil {
		reconnect.Logger = t.logger
	}
	t.mgr = connection.NewManagerWithConfig(t.dial, reconnect)
	t.mgr.OnStateChange(t.stateChanged)
	t.mgr.OnConnected(t.connected)
	t.mgr.OnDisconnected(t.disconnected)
	t.mgr.OnReconnecting(t.reconnecting)
	t.mgr.OnAttemptFailed(t.attemptFailed)
	return t, nil
}

// Listen registers the listener for connection events and messages.
func (t *MQTT) Listen(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

// Connect dials the broker and subscribes to the report topic.
func (t *MQTT) Connect(ctx context.Context) error {
	t.startOnce.Do(t.mgr.StartReconnectLoop)
	return t.mgr.Connect(ctx)
}

// Publish sends payload on topic and waits until paho has handed it off.
func (t *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	c := t.current()
	if c == nil || !t.mgr.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(ctx, c.Publish(topic, t.cfg.QoS, false, payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, err)
	}
	return nil
}

// Disconnect closes the connection without reconnecting. Connect may be
// called again afterwards.
func (t *MQTT) Disconnect() {
	t.mgr.Disconnect()
	t.dropClient()
}

// Close disconnects and stops the reconnect loop. The transport cannot be
// reused.
func (t *MQTT) Close() {
	t.mgr.Close()
	t.dropClient()
}

// State returns the connection state.
func (t *MQTT) State() connection.State {
	return t.mgr.State()
}

// ClientID returns the MQTT client id in use.
func (t *MQTT) ClientID() string {
	return t.cfg.ClientID
}

func (t *MQTT) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	t.dropClient()

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	c := t.newClient(t.clientOptions(gen))
	if err := wait(ctx, c.Connect()); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("%w: %s: %w", ErrConnect, t.cfg.Broker(), err)
	}

	topic := wire.ReportTopic(t.cfg.Serial)
	if err := wait(ctx, c.Subscribe(topic, t.cfg.QoS, t.handle)); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, topic, err)
	}

	t.mu.Lock()
	t.client = c
	t.mu.Unlock()

	t.logger.Debug("subscribed", "topic", topic, "client_id", t.cfg.ClientID)
	return nil
}

func (t *MQTT) clientOptions(gen uint64) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker("ssl://"+t.cfg.Broker()).
		SetClientID(t.cfg.ClientID).
		SetUsername(t.cfg.Username).
		SetPassword(t.cfg.AccessCode).
		SetTLSConfig(NewPrinterTLSConfig(t.cfg.TLS)).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetKeepAlive(t.cfg.KeepAlive).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			t.lost(gen, err)
		})
}

// lost is called by paho when the connection of generation gen drops.
func (t *MQTT) lost(gen uint64, err error) {
	t.mu.RLock()
	stale := gen != t.gen
	t.mu.RUnlock()
	if stale {
		return
	}
	t.mgr.NotifyConnectionLost(err)
}

func (t *MQTT) handle(_ paho.Client, m paho.Message) {
	t.deliver(m.Topic(), m.Payload())
}

func (t *MQTT) deliver(topic string, payload []byte) {
	if l := t.currentListener(); l != nil {
		l.OnMessage(topic, payload)
	}
}

func (t *MQTT) current() client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}

func (t *MQTT) currentListener() Listener {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listener
}

func (t *MQTT) dropClient() {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c != nil {
		c.Disconnect(disconnectQuiesce)
	}
}

func (t *MQTT) stateChanged(oldState, newState connection.State) {
	t.logger.Debug("connection state", "from", oldState, "to", newState)
	t.capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})
}

func (t *MQTT) connected() {
	t.logger.Info("connected", "client_id", t.cfg.ClientID)
	if l := t.currentListener(); l != nil {
		l.OnConnect()
	}
}

func (t *MQTT) disconnected(err error) {
	if err == nil {
		t.logger.Info("disconnected")
		return
	}
	reconnecting := t.mgr.State() == connection.StateReconnecting
	t.captureError(err, "connection lost")
	if l := t.currentListener(); l != nil {
		l.OnConnectionLost(err, reconnecting)
	}
}

func (t *MQTT) reconnecting(attempt int, delay time.Duration) {
	t.logger.Info("reconnecting", "attempt", attempt, "delay", delay)
	t.cfg.Metrics.RecordReconnect()
}

func (t *MQTT) attemptFailed(attempt int, err error) {
	t.captureError(err, "reconnect attempt "+strconv.Itoa(attempt))
	if l := t.currentListener(); l != nil {
		l.OnError(err)
	}
}

func (t *MQTT) captureError(err error, during string) {
	t.capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: during,
		},
	})
}

// wait blocks until tok completes or ctx ends.
func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
