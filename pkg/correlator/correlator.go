package correlator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// DefaultTimeout is used when Send is called with a non-positive timeout.
const DefaultTimeout = 10 * time.Second

var (
	ErrCommandTimeout = errors.New("command timed out")
	ErrClosed         = errors.New("correlator is closed")
)

// TimeoutError reports which command missed its deadline.
type TimeoutError struct {
	Sequence uint64
	Command  string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s (sequence %d) timed out after %s", e.Command, e.Sequence, e.Timeout)
}

// Unwrap allows errors.Is(err, ErrCommandTimeout).
func (e *TimeoutError) Unwrap() error {
	return ErrCommandTimeout
}

// Publisher delivers an encoded command to the device.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Disposition is the classification of an inbound message.
type Disposition uint8

const (
	Telemetry Disposition = iota
	Reply
	Unmatched
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case Telemetry:
		return "telemetry"
	case Reply:
		return "reply"
	case Unmatched:
		return "unmatched"
	default:
		return fmt.Sprintf("Disposition(%d)", d)
	}
}

type result struct {
	msg *wire.Message
	err error
}

type pending struct {
	command string
	sent    time.Time
	timer   *time.Timer
	done    chan result
}

// Correlator matches replies to outstanding commands.
type Correlator struct {
	pub         Publisher
	correlation wire.Correlation
	timeout     time.Duration
	logger      *slog.Logger
	capture     log.Logger
	metrics     *metric.Metrics

	// mu guards the counter, the pending map and closed. Allocating a
	// sequence and registering it happen under one critical section.
	mu      sync.Mutex
	last    uint64
	pending map[uint64]*pending
	closed  bool
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithSequenceStart makes the first issued sequence start+1. Use distinct
// ranges when several clients talk to the same printer.
func WithSequenceStart(start uint64) Option {
	return func(c *Correlator) { c.last = start }
}

// WithCorrelation selects where replies carry the sequence.
func WithCorrelation(corr wire.Correlation) Option {
	return func(c *Correlator) { c.correlation = corr }
}

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCapture sets the protocol capture logger.
func WithCapture(l log.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.capture = l
		}
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

// New creates a Correlator publishing through pub.
func New(pub Publisher, opts ...Option) *Correlator {
	c := &Correlator{
		pub:     pub,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		capture: log.NoopLogger{},
		pending: make(map[uint64]*pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send publishes cmd on topic with a fresh sequence number.
//
// When expectReply is false Send returns (nil, nil) once the publish
// succeeds. Otherwise it blocks until the matching reply arrives, the
// timeout elapses (a *TimeoutError), ctx is done, or the correlator is
// closed. A non-positive timeout selects the default.
func (c *Correlator) Send(ctx context.Context, topic string, cmd wire.Command, expectReply bool, timeout time.Duration) (*wire.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.last++
	seq := c.last
	var p *pending
	if expectReply {
		p = &pending{
			command: cmd.Name,
			sent:    time.Now(),
			done:    make(chan result, 1),
		}
		c.pending[seq] = p
		p.timer = time.AfterFunc(timeout, func() { c.expire(seq, timeout) })
	}
	n := len(c.pending)
	c.mu.Unlock()
	c.metrics.RecordPending(n)

	payload, err := wire.Encode(cmd, seq)
	if err != nil {
		c.abandon(seq, metric.OutcomePublishError)
		return nil, err
	}

	c.capture.Log(c.commandEvent(topic, seq, cmd.Name, payload))
	if err := c.pub.Publish(ctx, topic, payload); err != nil {
		c.abandon(seq, metric.OutcomePublishError)
		c.logger.Warn("publish failed", "command", cmd.Name, "seq", seq, "error", err)
		return nil, fmt.Errorf("publish %s (sequence %d): %w", cmd, seq, err)
	}
	c.metrics.RecordCommandSent(cmd.Name)
	c.logger.Debug("command sent", "command", cmd.Name, "seq", seq, "expect_reply", expectReply)

	if !expectReply {
		return nil, nil
	}

	select {
	case r := <-p.done:
		return r.msg, r.err
	case <-ctx.Done():
		if c.abandon(seq, metric.OutcomeCanceled) {
			return nil, ctx.Err()
		}
		// Completed concurrently; the result is already buffered.
		r := <-p.done
		return r.msg, r.err
	}
}

// Handle classifies an inbound message and completes the matching pending
// command, if any.
func (c *Correlator) Handle(msg *wire.Message) Disposition {
	seq, ok := msg.ReplySequence(c.correlation)
	if !ok {
		c.capture.Log(c.inboundEvent(msg, log.MessageTypeTelemetry, nil, nil))
		return Telemetry
	}

	p := c.take(seq)
	if p == nil {
		c.logger.Warn("reply for unknown sequence", "seq", seq, "last_issued", c.LastIssued(), "topic", msg.Topic)
		c.capture.Log(c.inboundEvent(msg, log.MessageTypeUnmatched, &seq, nil))
		return Unmatched
	}

	p.timer.Stop()
	latency := time.Since(p.sent)
	c.metrics.RecordOutcome(p.command, metric.OutcomeReply, latency)
	c.capture.Log(c.inboundEvent(msg, log.MessageTypeReply, &seq, &latency))
	p.done <- result{msg: msg}
	return Reply
}

// Pending returns the number of commands awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// LastIssued returns the most recently allocated sequence number.
func (c *Correlator) LastIssued() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close fails every pending command with ErrClosed and rejects further
// sends. It is safe to call more than once.
func (c *Correlator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	drained := c.pending
	c.pending = make(map[uint64]*pending)
	c.mu.Unlock()

	for _, p := range drained {
		p.timer.Stop()
		c.metrics.RecordOutcome(p.command, metric.OutcomeClosed, 0)
		p.done <- result{err: ErrClosed}
	}
	c.metrics.RecordPending(0)
}

// take removes and returns the pending entry for seq.
func (c *Correlator) take(seq uint64) *pending {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	n := len(c.pending)
	c.mu.Unlock()

	if ok {
		c.metrics.RecordPending(n)
	}
	return p
}

// abandon removes seq without completing it. It reports whether the entry
// was still pending.
func (c *Correlator) abandon(seq uint64, outcome string) bool {
	p := c.take(seq)
	if p == nil {
		return false
	}
	p.timer.Stop()
	c.metrics.RecordOutcome(p.command, outcome, 0)
	return true
}

func (c *Correlator) expire(seq uint64, timeout time.Duration) {
	p := c.take(seq)
	if p == nil {
		return
	}

	err := &TimeoutError{Sequence: seq, Command: p.command, Timeout: timeout}
	c.metrics.RecordOutcome(p.command, metric.OutcomeTimeout, 0)
	c.logger.Warn("command timed out", "command", p.command, "seq", seq, "timeout", timeout)
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerWire,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: "await reply",
		},
	})
	p.done <- result{err: err}
}

func (c *Correlator) commandEvent(topic string, seq uint64, name string, payload []byte) log.Event {
	m := log.NewMessageEvent(log.MessageTypeCommand, topic, payload)
	m.Sequence = &seq
	m.Command = name
	return log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   m,
	}
}

func (c *Correlator) inboundEvent(msg *wire.Message, typ log.MessageType, seq *uint64, latency *time.Duration) log.Event {
	m := log.NewMessageEvent(typ, msg.Topic, msg.Payload)
	m.Sequence = seq
	m.Latency = latency
	m.Command = msg.Command()
	m.DeviceSequence, _ = msg.TelemetrySequence()

	ts := msg.Received
	if ts.IsZero() {
		ts = time.Now()
	}
	return log.Event{
		Timestamp: ts,
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   m,
	}
}
