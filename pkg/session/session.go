package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bambu-link/bambu-go/pkg/command"
	"github.com/bambu-link/bambu-go/pkg/correlator"
	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
	"github.com/bambu-link/bambu-go/pkg/normalize"
	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/transport"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// Session keeps the reconciled state of one printer and issues commands to
// it.
type Session struct {
	cfg          Config
	tr           transport.Transport
	corr         *correlator.Correlator
	logger       *slog.Logger
	capture      log.Logger
	metrics      *metric.Metrics
	now          func() time.Time
	requestTopic string

	// mu guards everything below.
	mu       sync.Mutex
	status   Status
	closed   bool
	snapshot *state.State
	lastSeq  string
	seenSeq  bool
	handlers []EventHandler

	// recv serializes inbound processing so events follow message order.
	recv sync.Mutex

	// wg tracks full state requests in flight.
	wg sync.WaitGroup
}

// New creates a session on top of tr and registers itself as its listener.
func New(tr transport.Transport, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = correlator.DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("serial", cfg.Serial)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	capture := log.WithIdentity(cfg.Capture, uuid.NewString(), cfg.Serial, "")

	s := &Session{
		cfg:          cfg,
		tr:           tr,
		logger:       logger,
		capture:      capture,
		metrics:      cfg.Metrics,
		now:          now,
		requestTopic: wire.RequestTopic(cfg.Serial),
		status:       StatusDisconnected,
	}
	s.corr = correlator.New(tr,
		correlator.WithSequenceStart(cfg.SequenceStart),
		correlator.WithCorrelation(cfg.Correlation),
		correlator.WithDefaultTimeout(cfg.Timeout),
		correlator.WithLogger(logger),
		correlator.WithCapture(capture),
		correlator.WithMetrics(cfg.Metrics),
	)
	tr.Listen(listener{s})
	return s, nil
}

// OnEvent registers an event handler. Handlers run synchronously on the
// receive path in message order; they must not wait for command replies.
func (s *Session) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Status returns the connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns a copy of the merged snapshot, or nil before the first
// report.
func (s *Session) State() *state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.Clone(s.snapshot)
}

// Get reads one value of the snapshot by dotted path, e.g. "temps.bed".
func (s *Session) Get(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.Select(s.snapshot, path)
}

// Pending returns the number of commands awaiting a reply.
func (s *Session) Pending() int {
	return s.corr.Pending()
}

// Connect connects the transport. The full state is requested once the
// transport reports the connection.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.setStatusLocked(StatusConnecting, "")
	s.mu.Unlock()

	if err := s.tr.Connect(ctx); err != nil {
		s.mu.Lock()
		if s.status == StatusConnecting {
			s.setStatusLocked(StatusDisconnected, err.Error())
		}
		s.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Disconnect closes the transport. Pending commands run into their
// timeouts.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(StatusDisconnected, "disconnect requested")
	s.mu.Unlock()

	s.tr.Disconnect()
	s.emit(Event{Type: EventDisconnected})
}

// Close disconnects, fails all pending commands and waits for background
// work. The session cannot be reused.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Disconnect()
	s.corr.Close()
	s.wg.Wait()
}

// Refresh re-issues the full state request and waits for its reply. The
// reply is applied like any other report.
func (s *Session) Refresh(ctx context.Context) error {
	if _, err := s.Send(ctx, command.Pushall()); err != nil {
		return fmt.Errorf("%w: %w", ErrPushall, err)
	}
	return nil
}

// Send publishes cmd and waits for its reply using the default timeout.
func (s *Session) Send(ctx context.Context, cmd wire.Command) (*wire.Message, error) {
	return s.SendTimeout(ctx, cmd, 0)
}

// SendTimeout is Send with an explicit reply timeout. A non-positive
// timeout uses the session default.
func (s *Session) SendTimeout(ctx context.Context, cmd wire.Command, timeout time.Duration) (*wire.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.corr.Send(ctx, s.requestTopic, cmd, true, timeout)
}

// SendNoReply publishes cmd without waiting for a reply.
func (s *Session) SendNoReply(ctx context.Context, cmd wire.Command) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.corr.Send(ctx, s.requestTopic, cmd, false, 0)
	return err
}

func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.status != StatusConnected:
		return ErrNotConnected
	}
	return nil
}

// connected enters the connected status and requests the full state.
// It runs on every transport connect, including reconnects.
func (s *Session) connected() {
	s.mu.Lock()
	if s.closed || s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(StatusConnected, "")
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("connected")
	s.emit(Event{Type: EventConnected})
	go s.pushall()
}

func (s *Session) pushall() {
	defer s.wg.Done()
	_, err := s.corr.Send(context.Background(), s.requestTopic, command.Pushall(), true, 0)
	if err != nil && !errors.Is(err, correlator.ErrClosed) {
		s.fail(fmt.Errorf("%w: %w", ErrPushall, err))
	}
}

func (s *Session) connectionLost(err error, reconnecting bool) {
	cause := fmt.Errorf("%w: %w", ErrConnectionLost, err)
	s.logger.Warn("connection lost", "error", err, "reconnecting", reconnecting)
	s.fail(cause)
	if reconnecting {
		return
	}

	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(StatusDisconnected, err.Error())
	s.mu.Unlock()
	s.emit(Event{Type: EventDisconnected, Error: cause})
}

// fail surfaces a non-fatal error.
func (s *Session) fail(err error) {
	s.captureError(err, "session")
	s.emit(Event{Type: EventError, Error: err})
}

// receive runs one inbound message through correlation, duplicate
// suppression, normalization, merge and diff. EventData fires for every
// decoded message, duplicates included.
func (s *Session) receive(topic string, payload []byte) {
	s.recv.Lock()
	defer s.recv.Unlock()

	now := s.now()
	msg, err := wire.Decode(topic, payload, now)
	if err != nil {
		s.logger.Warn("dropping malformed payload", "topic", topic, "size", len(payload), "error", err)
		s.metrics.RecordDropped(metric.DropMalformed)
		s.captureError(err, "decode "+topic)
		return
	}

	disp := s.corr.Handle(msg)
	s.metrics.RecordMessage(disp.String())

	s.emit(Event{Type: EventData, Message: msg})

	seq, hasSeq := "", false
	if disp != correlator.Reply {
		seq, hasSeq = msg.TelemetrySequence()
	}
	if hasSeq {
		s.mu.Lock()
		dup := s.seenSeq && seq == s.lastSeq
		s.mu.Unlock()
		if dup {
			s.logger.Debug("dropping duplicate report", "sequence_id", seq)
			s.metrics.RecordDropped(metric.DropDuplicate)
			return
		}
	}

	patch := normalize.Project(msg.Report, msg.Payload, now)

	s.mu.Lock()
	prev := s.snapshot
	next := state.Merge(prev, patch)
	diff, changed := state.Diff(prev, next)
	s.snapshot = next
	if hasSeq {
		s.lastSeq, s.seenSeq = seq, true
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.metrics.RecordStateUpdate()
	s.emit(Event{Type: EventState, State: state.Clone(next)})
	s.emit(Event{Type: EventStateUpdate, Patch: diff, Previous: state.Clone(prev)})
}

func (s *Session) emit(event Event) {
	s.mu.Lock()
	handlers := append([]EventHandler(nil), s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

// setStatusLocked changes the status. Caller holds mu.
func (s *Session) setStatusLocked(to Status, reason string) {
	from := s.status
	if from == to {
		return
	}
	s.status = to
	s.metrics.RecordSessionState(int(to))
	s.capture.Log(log.Event{
		Timestamp: s.now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) captureError(err error, during string) {
	s.capture.Log(log.Event{
		Timestamp: s.now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Context: during,
		},
	})
}

// listener adapts the session to transport callbacks.
type listener struct {
	s *Session
}

func (l listener) OnConnect()                                    { l.s.connected() }
func (l listener) OnConnectionLost(err error, reconnecting bool) { l.s.connectionLost(err, reconnecting) }
func (l listener) OnMessage(topic string, payload []byte)        { l.s.receive(topic, payload) }

func (l listener) OnError(err error) {
	l.s.logger.Warn("transport error", "error", err)
	l.s.fail(err)
}

var _ transport.Listener = listener{}
