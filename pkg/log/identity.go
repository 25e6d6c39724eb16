package log

// IdentityLogger stamps connection identity onto events that do not carry
// their own before forwarding them.
type IdentityLogger struct {
	next         Logger
	connectionID string
	serial       string
	broker       string
}

// WithIdentity wraps next so every event carries the given identity.
// A nil next yields a NoopLogger.
func WithIdentity(next Logger, connectionID, serial, broker string) Logger {
	if next == nil {
		return NoopLogger{}
	}
	return &IdentityLogger{
		next:         next,
		connectionID: connectionID,
		serial:       serial,
		broker:       broker,
	}
}

// Log fills empty identity fields and forwards the event.
func (l *IdentityLogger) Log(event Event) {
	if event.ConnectionID == "" {
		event.ConnectionID = l.connectionID
	}
	if event.Serial == "" {
		event.Serial = l.serial
	}
	if event.Broker == "" {
		event.Broker = l.broker
	}
	l.next.Log(event)
}

var _ Logger = (*IdentityLogger)(nil)
