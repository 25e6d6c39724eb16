// Package log provides structured protocol capture for printer sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog): protocol capture provides
// a complete machine-readable trace of every payload exchanged with the
// printer, which is what you want when a firmware update changes the shape
// of a report.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Capture = log.NewSlogAdapter(slog.Default())
//
//	// For field debugging: write to a capture file
//	cfg.Capture, _ = log.NewFileLogger("printer.blog")
//
//	// Both
//	cfg.Capture = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Message: every command published and every report received, tagged
//     with how the correlator classified it (reply, telemetry, unmatched)
//   - StateChange: connection and session lifecycle transitions
//   - Error: transport failures, malformed payloads, command timeouts
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events. The bambu-log CLI tool
// provides viewing, filtering, statistics and JSON export.
package log
