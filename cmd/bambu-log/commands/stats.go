package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bambu-link/bambu-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByType    map[log.MessageType]int
	Commands          map[string]*CommandStats
	Connections       map[string]*ConnectionStats
	Reconnects        int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// CommandStats aggregates reply latency for one command name.
type CommandStats struct {
	Sent    int
	Replies int
	Total   time.Duration
	Max     time.Duration
}

// Mean returns the average reply latency.
func (c *CommandStats) Mean() time.Duration {
	if c.Replies == 0 {
		return 0
	}
	return c.Total / time.Duration(c.Replies)
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Serial    string
	Broker    string
}

// Collect reads the capture file and aggregates statistics.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByType:    make(map[log.MessageType]int),
		Commands:          make(map[string]*CommandStats),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.Serial == "" {
		conn.Serial = event.Serial
	}
	if conn.Broker == "" {
		conn.Broker = event.Broker
	}

	switch {
	case event.Message != nil:
		s.addMessage(event.Message)
	case event.StateChange != nil:
		if event.StateChange.Entity == log.StateEntityConnection && event.StateChange.NewState == "RECONNECTING" {
			s.Reconnects++
		}
	case event.Error != nil:
		s.Errors++
	}
}

func (s *Stats) addMessage(msg *log.MessageEvent) {
	s.MessagesByType[msg.Type]++
	if msg.Command == "" {
		return
	}

	switch msg.Type {
	case log.MessageTypeCommand:
		s.command(msg.Command).Sent++
	case log.MessageTypeReply:
		cs := s.command(msg.Command)
		cs.Replies++
		if msg.Latency != nil {
			cs.Total += *msg.Latency
			cs.Max = max(cs.Max, *msg.Latency)
		}
	}
}

func (s *Stats) command(name string) *CommandStats {
	cs, ok := s.Commands[name]
	if !ok {
		cs = &CommandStats{}
		s.Commands[name] = cs
	}
	return cs
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Printer Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByType) > 0 {
		fmt.Fprintln(w, "Messages by Type:")
		for _, typ := range []log.MessageType{log.MessageTypeCommand, log.MessageTypeReply, log.MessageTypeTelemetry, log.MessageTypeUnmatched} {
			if count := stats.MessagesByType[typ]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", typ.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.Commands) > 0 {
		names := make([]string, 0, len(stats.Commands))
		for name := range stats.Commands {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "Commands:")
		for _, name := range names {
			cs := stats.Commands[name]
			fmt.Fprintf(w, "  %-16s sent %d, replies %d", name, cs.Sent, cs.Replies)
			if cs.Replies > 0 {
				fmt.Fprintf(w, ", mean %s, max %s", formatDuration(cs.Mean()), formatDuration(cs.Max))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Serial != "" {
				fmt.Fprintf(w, "           Printer: %s\n", c.stats.Serial)
			}
			if c.stats.Broker != "" {
				fmt.Fprintf(w, "           Broker: %s\n", c.stats.Broker)
			}
		}
	}

	if stats.Reconnects > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Reconnects: %d\n", stats.Reconnects)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
