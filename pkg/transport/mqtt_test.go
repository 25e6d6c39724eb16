package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bambu-link/bambu-go/pkg/connection"
	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	subscribeErr error
	publishErr   error
	connectTok   paho.Token
	subscribed   []string
	published    []published
	disconnects  int
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectTok != nil {
		return c.connectTok
	}
	return doneToken(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken(c.publishErr)
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return doneToken(c.subscribeErr)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type lostEvent struct {
	err          error
	reconnecting bool
}

type recordingListener struct {
	connects chan struct{}
	lost     chan lostEvent
	messages chan published
	errs     chan error
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		connects: make(chan struct{}, 8),
		lost:     make(chan lostEvent, 8),
		messages: make(chan published, 8),
		errs:     make(chan error, 8),
	}
}

func (l *recordingListener) OnConnect() { l.connects <- struct{}{} }
func (l *recordingListener) OnConnectionLost(err error, reconnecting bool) {
	l.lost <- lostEvent{err: err, reconnecting: reconnecting}
}
func (l *recordingListener) OnMessage(topic string, payload []byte) {
	l.messages <- published{topic: topic, payload: payload}
}
func (l *recordingListener) OnError(err error) { l.errs <- err }

type captured struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captured) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captured) states() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		if e.StateChange != nil {
			out = append(out, e.StateChange.NewState)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "192.168.1.50"
	cfg.Serial = "01S00A000000001"
	cfg.AccessCode = "12345678"
	cfg.Reconnect.Backoff = connection.BackoffConfig{
		Initial:    5 * time.Millisecond,
		Max:        20 * time.Millisecond,
		Multiplier: 2.0,
	}
	return cfg
}

// newTestMQTT returns a transport whose clients come from next.
func newTestMQTT(t *testing.T, cfg Config, next func() *fakeClient) *MQTT {
	t.Helper()
	tr, err := NewMQTT(cfg)
	require.NoError(t, err)
	tr.newClient = func(*paho.ClientOptions) client { return next() }
	t.Cleanup(tr.Close)
	return tr
}

func single(c *fakeClient) func() *fakeClient {
	return func() *fakeClient { return c }
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listener callback")
		var zero T
		return zero
	}
}

func TestNewMQTTValidation(t *testing.T) {
	_, err := NewMQTT(Config{Serial: "S"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMQTT(Config{Host: "h"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewMQTTDefaults(t *testing.T) {
	tr, err := NewMQTT(Config{Host: "printer.local", Serial: "S1"})
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, DefaultPort, tr.cfg.Port)
	assert.Equal(t, "bblp", tr.cfg.Username)
	assert.True(t, strings.HasPrefix(tr.ClientID(), ClientIDPrefix))
	assert.Len(t, tr.ClientID(), len(ClientIDPrefix)+8)
	assert.Equal(t, "S1", tr.cfg.TLS.Serial)
	assert.Equal(t, "printer.local:8883", tr.cfg.Broker())
	assert.Equal(t, connection.StateDisconnected, tr.State())
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = "bambu-go-test"
	tr, err := NewMQTT(cfg)
	require.NoError(t, err)
	defer tr.Close()

	r := paho.NewOptionsReader(tr.clientOptions(1))
	require.Len(t, r.Servers(), 1)
	assert.Equal(t, "ssl://192.168.1.50:8883", r.Servers()[0].String())
	assert.Equal(t, "bambu-go-test", r.ClientID())
	assert.Equal(t, "bblp", r.Username())
	assert.Equal(t, "12345678", r.Password())
	assert.False(t, r.AutoReconnect())
	assert.True(t, r.CleanSession())
	assert.Equal(t, DefaultKeepAlive, r.KeepAlive())
	require.NotNil(t, r.TLSConfig())
	assert.True(t, r.TLSConfig().InsecureSkipVerify)
}

func TestConnectSubscribes(t *testing.T) {
	c := &fakeClient{}
	capture := &captured{}
	cfg := testConfig()
	cfg.Capture = capture
	tr := newTestMQTT(t, cfg, single(c))
	l := newRecordingListener()
	tr.Listen(l)

	require.NoError(t, tr.Connect(context.Background()))
	waitFor(t, l.connects)

	assert.Equal(t, []string{"device/01S00A000000001/report"}, c.subscribed)
	assert.Equal(t, connection.StateConnected, tr.State())
	assert.Equal(t, []string{"CONNECTING", "CONNECTED"}, capture.states())
}

func TestConnectFailure(t *testing.T) {
	c := &fakeClient{connectErr: errors.New("not authorized")}
	tr := newTestMQTT(t, testConfig(), single(c))

	err := tr.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnect)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Equal(t, connection.StateDisconnected, tr.State())
}

func TestConnectHonorsContext(t *testing.T) {
	c := &fakeClient{connectTok: pendingToken()}
	tr := newTestMQTT(t, testConfig(), single(c))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Connect(ctx)
	assert.ErrorIs(t, err, ErrConnect)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, c.disconnectCount())
}

func TestSubscribeFailure(t *testing.T) {
	c := &fakeClient{subscribeErr: errors.New("refused")}
	tr := newTestMQTT(t, testConfig(), single(c))

	err := tr.Connect(context.Background())
	assert.ErrorIs(t, err, ErrSubscribe)
	assert.Equal(t, 1, c.disconnectCount())
}

func TestPublish(t *testing.T) {
	t.Run("NotConnected", func(t *testing.T) {
		tr := newTestMQTT(t, testConfig(), single(&fakeClient{}))
		err := tr.Publish(context.Background(), "device/x/request", []byte(`{}`))
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("Delivers", func(t *testing.T) {
		c := &fakeClient{}
		tr := newTestMQTT(t, testConfig(), single(c))
		require.NoError(t, tr.Connect(context.Background()))

		require.NoError(t, tr.Publish(context.Background(), "device/01S00A000000001/request", []byte(`{"a":1}`)))
		require.Len(t, c.published, 1)
		assert.Equal(t, "device/01S00A000000001/request", c.published[0].topic)
		assert.Equal(t, byte(0), c.published[0].qos)
		assert.Equal(t, `{"a":1}`, string(c.published[0].payload))
	})

	t.Run("Error", func(t *testing.T) {
		c := &fakeClient{publishErr: errors.New("write failed")}
		tr := newTestMQTT(t, testConfig(), single(c))
		require.NoError(t, tr.Connect(context.Background()))

		err := tr.Publish(context.Background(), "device/01S00A000000001/request", []byte(`{}`))
		assert.ErrorIs(t, err, ErrPublish)
	})
}

func TestDeliverForwardsMessages(t *testing.T) {
	tr := newTestMQTT(t, testConfig(), single(&fakeClient{}))
	l := newRecordingListener()
	tr.Listen(l)

	tr.deliver("device/S/report", []byte(`{"print":{}}`))

	msg := waitFor(t, l.messages)
	assert.Equal(t, "device/S/report", msg.topic)
	assert.Equal(t, `{"print":{}}`, string(msg.payload))
}

func TestReconnectAfterLoss(t *testing.T) {
	var (
		mu      sync.Mutex
		clients []*fakeClient
	)
	next := func() *fakeClient {
		mu.Lock()
		defer mu.Unlock()
		c := &fakeClient{}
		clients = append(clients, c)
		return c
	}

	cfg := testConfig()
	cfg.Metrics = metric.NewMetrics()
	tr := newTestMQTT(t, cfg, next)
	l := newRecordingListener()
	tr.Listen(l)

	require.NoError(t, tr.Connect(context.Background()))
	waitFor(t, l.connects)

	cause := errors.New("EOF")
	tr.lost(1, cause)

	lost := waitFor(t, l.lost)
	assert.Equal(t, cause, lost.err)
	assert.True(t, lost.reconnecting)

	waitFor(t, l.connects)
	assert.Equal(t, connection.StateConnected, tr.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(cfg.Metrics.TransportReconnects))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, clients, 2)
	assert.Equal(t, 1, clients[0].disconnectCount())
	assert.Equal(t, []string{"device/01S00A000000001/report"}, clients[1].subscribed)
}

func TestStaleLossIgnored(t *testing.T) {
	tr := newTestMQTT(t, testConfig(), single(&fakeClient{}))
	l := newRecordingListener()
	tr.Listen(l)

	require.NoError(t, tr.Connect(context.Background()))
	waitFor(t, l.connects)

	tr.lost(0, errors.New("old connection"))

	assert.Equal(t, connection.StateConnected, tr.State())
	assert.Empty(t, l.lost)
}

func TestLossWithoutReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.AutoReconnect = false
	tr := newTestMQTT(t, cfg, single(&fakeClient{}))
	l := newRecordingListener()
	tr.Listen(l)

	require.NoError(t, tr.Connect(context.Background()))
	tr.lost(1, errors.New("EOF"))

	lost := waitFor(t, l.lost)
	assert.False(t, lost.reconnecting)
	assert.Equal(t, connection.StateDisconnected, tr.State())
}

func TestFailedReconnectReportsError(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	next := func() *fakeClient {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 2 {
			return &fakeClient{connectErr: errors.New("unreachable")}
		}
		return &fakeClient{}
	}

	tr := newTestMQTT(t, testConfig(), next)
	l := newRecordingListener()
	tr.Listen(l)

	require.NoError(t, tr.Connect(context.Background()))
	waitFor(t, l.connects)

	tr.lost(1, errors.New("EOF"))
	waitFor(t, l.lost)

	err := waitFor(t, l.errs)
	assert.ErrorIs(t, err, ErrConnect)

	waitFor(t, l.connects)
}

func TestDisconnect(t *testing.T) {
	c := &fakeClient{}
	tr := newTestMQTT(t, testConfig(), single(c))
	require.NoError(t, tr.Connect(context.Background()))

	tr.Disconnect()

	assert.Equal(t, connection.StateDisconnected, tr.State())
	assert.Equal(t, 1, c.disconnectCount())
	assert.ErrorIs(t, tr.Publish(context.Background(), "t", nil), ErrNotConnected)

	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, connection.StateConnected, tr.State())
}
