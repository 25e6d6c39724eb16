package wire

import (
	"fmt"
	"strings"
	"time"

	"github.com/bambu-link/bambu-go/pkg/normalize"
)

// Correlation selects where a reply carries the client sequence number.
type Correlation uint8

const (
	// CorrelationFlat reads the top-level sequenceNumber.
	CorrelationFlat Correlation = iota

	// CorrelationUpgradeState reads print.upgrade_state.sequence_id.
	CorrelationUpgradeState
)

// String returns the correlation name.
func (c Correlation) String() string {
	switch c {
	case CorrelationFlat:
		return "flat"
	case CorrelationUpgradeState:
		return "upgrade_state"
	default:
		return fmt.Sprintf("Correlation(%d)", c)
	}
}

// ParseCorrelation parses a correlation name as used in configuration.
func ParseCorrelation(s string) (Correlation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat":
		return CorrelationFlat, nil
	case "upgrade_state", "upgrade-state":
		return CorrelationUpgradeState, nil
	default:
		return 0, fmt.Errorf("unknown correlation %q", s)
	}
}

// Message is one inbound publication.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time

	// Report is the lenient decode of Payload.
	Report *normalize.Report
}

// Decode parses an inbound payload. It fails only when payload is not JSON.
func Decode(topic string, payload []byte, received time.Time) (*Message, error) {
	doc, err := normalize.Decode(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Topic:    topic,
		Payload:  payload,
		Received: received,
		Report:   doc,
	}, nil
}

// ReplySequence extracts the echoed client sequence number, if any.
func (m *Message) ReplySequence(c Correlation) (uint64, bool) {
	if m == nil || m.Report == nil {
		return 0, false
	}

	var v normalize.Value
	switch c {
	case CorrelationUpgradeState:
		if m.Report.Print == nil || m.Report.Print.UpgradeState == nil {
			return 0, false
		}
		v = m.Report.Print.UpgradeState.SequenceID
	default:
		v = m.Report.SequenceNumber
	}

	n, ok := v.Int()
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

// TelemetrySequence returns the device's own sequence id for the report,
// preferring print.sequence_id over the top-level field.
func (m *Message) TelemetrySequence() (string, bool) {
	if m == nil || m.Report == nil {
		return "", false
	}
	if p := m.Report.Print; p != nil {
		if s, ok := p.SequenceID.String(); ok {
			return s, true
		}
	}
	return m.Report.SequenceID.String()
}

// Command returns the reported command name, e.g. "push_status".
func (m *Message) Command() string {
	if m == nil || m.Report == nil {
		return ""
	}
	if p := m.Report.Print; p != nil {
		if s, ok := p.Command.String(); ok {
			return s
		}
	}
	s, _ := m.Report.Command.String()
	return s
}
