package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bambu-link/bambu-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

var ts = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sampleEvents() []log.Event {
	seq := uint64(20001)
	latency := 42 * time.Millisecond

	cmd := log.NewMessageEvent(log.MessageTypeCommand, "device/SN1/request", []byte(`{"pushing":{"command":"pushall","sequence_id":"20001"}}`))
	cmd.Command = "pushall"
	cmd.Sequence = &seq

	reply := log.NewMessageEvent(log.MessageTypeReply, "device/SN1/report", []byte(`{"pushing":{"command":"pushall","sequence_id":"20001"}}`))
	reply.Command = "pushall"
	reply.Sequence = &seq
	reply.Latency = &latency

	telemetry := log.NewMessageEvent(log.MessageTypeTelemetry, "device/SN1/report", []byte(`{"print":{"command":"push_status","nozzle_temper":210}}`))
	telemetry.Command = "push_status"
	telemetry.DeviceSequence = "1234"

	return []log.Event{
		{
			Timestamp: ts, ConnectionID: "conn-aaaa-1111", Serial: "SN1", Broker: "10.0.0.2:8883",
			Layer: log.LayerTransport, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "CONNECTING", NewState: "CONNECTED"},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: "conn-aaaa-1111", Serial: "SN1",
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage, Message: cmd,
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: "conn-aaaa-1111", Serial: "SN1",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage, Message: reply,
		},
		{
			Timestamp: ts.Add(3 * time.Second), ConnectionID: "conn-aaaa-1111", Serial: "SN1",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage, Message: telemetry,
		},
		{
			Timestamp: ts.Add(4 * time.Second), ConnectionID: "conn-aaaa-1111",
			Layer: log.LayerTransport, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "CONNECTED", NewState: "RECONNECTING"},
		},
		{
			Timestamp: ts.Add(5 * time.Second), ConnectionID: "conn-bbbb-2222", Serial: "SN2",
			Layer: log.LayerSession, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerSession, Message: "pushall: timeout", Context: "connect"},
		},
	}
}

func TestFormatMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[2])
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:02.000000Z",
		"[conn:conn-aaa]",
		"IN",
		"WIRE REPLY",
		"Topic: device/SN1/report",
		"Command: pushall",
		"Sequence: 20001",
		"Latency: 42.000ms",
		`Payload: {"pushing"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatTruncatedPayload(t *testing.T) {
	msg := log.NewMessageEvent(log.MessageTypeTelemetry, "device/SN1/report", bytes.Repeat([]byte("x"), log.MaxPayloadSize+10))

	var buf bytes.Buffer
	formatEvent(&buf, log.Event{Timestamp: ts, Message: msg})

	want := "(truncated, 65546 bytes)"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q in output", want)
	}
}

func TestFormatStateAndError(t *testing.T) {
	events := sampleEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[0])
	formatEvent(&buf, events[5])
	output := buf.String()

	for _, want := range []string{
		"TRANSPORT State",
		"Printer: SN1 @ 10.0.0.2:8883",
		"Entity: CONNECTION",
		"CONNECTING -> CONNECTED",
		"SESSION Error",
		"Message: pushall: timeout",
		"Context: connect",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	filter, err := FilterOptions{MessageType: "telemetry"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "TELEMETRY") {
		t.Errorf("expected telemetry event, got:\n%s", output)
	}
	if strings.Contains(output, "REPLY") || strings.Contains(output, "State") {
		t.Errorf("expected only telemetry, got:\n%s", output)
	}
}

func TestFilterOptionsBuild(t *testing.T) {
	filter, err := FilterOptions{
		ConnID:    "c",
		Serial:    "SN1",
		TimeStart: "2026-03-02T09:00:00Z",
		TimeEnd:   "2026-03-02T10:00:00Z",
		Layer:     "SESSION",
		Direction: "out",
		Category:  "error",
	}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if filter.Layer == nil || *filter.Layer != log.LayerSession {
		t.Errorf("Layer = %v", filter.Layer)
	}
	if filter.Direction == nil || *filter.Direction != log.DirectionOut {
		t.Errorf("Direction = %v", filter.Direction)
	}
	if filter.Category == nil || *filter.Category != log.CategoryError {
		t.Errorf("Category = %v", filter.Category)
	}
	if filter.TimeStart == nil || filter.TimeEnd == nil {
		t.Error("expected time range")
	}

	bad := []FilterOptions{
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "control"},
		{MessageType: "notify"},
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
	}
	for _, opts := range bad {
		if _, err := opts.Build(); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.blog")

	filter, err := FilterOptions{ConnID: "conn-bbbb-2222"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	count, err := RunFilter(path, out, filter)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	stats, err := Collect(out)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 1 || stats.Errors != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d", stats.TotalEvents)
	}
	if len(stats.Connections) != 2 {
		t.Errorf("Connections = %d", len(stats.Connections))
	}
	if stats.Reconnects != 1 {
		t.Errorf("Reconnects = %d", stats.Reconnects)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d", stats.Errors)
	}
	if stats.MessagesByType[log.MessageTypeTelemetry] != 1 {
		t.Errorf("telemetry count = %d", stats.MessagesByType[log.MessageTypeTelemetry])
	}

	pushall := stats.Commands["pushall"]
	if pushall == nil {
		t.Fatal("expected pushall stats")
	}
	if pushall.Sent != 1 || pushall.Replies != 1 || pushall.Mean() != 42*time.Millisecond {
		t.Errorf("unexpected pushall stats: %+v", pushall)
	}
	if conn := stats.Connections["conn-aaaa-1111"]; conn == nil || conn.Broker != "10.0.0.2:8883" || conn.Events != 5 {
		t.Errorf("unexpected connection stats: %+v", conn)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"SESSION:",
		"TELEMETRY:",
		"pushall",
		"mean 42.000ms",
		"Connections: 2",
		"Printer: SN1",
		"Reconnects: 1",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if err := export(reader, "jsonl", &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6", len(lines))
	}

	var reply map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &reply); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	payload, ok := reply["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected embedded JSON payload, got %T", reply["payload"])
	}
	if _, ok := payload["pushing"]; !ok {
		t.Errorf("payload missing pushing: %v", payload)
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if err := export(reader, "csv", &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("got %d rows, want 7", len(rows))
	}
	if rows[0][0] != "timestamp" {
		t.Errorf("header = %v", rows[0])
	}
	cmd := rows[2]
	if cmd[6] != "COMMAND" || cmd[7] != "pushall" || cmd[8] != "20001" {
		t.Errorf("command row = %v", cmd)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}
