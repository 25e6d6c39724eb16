// Package commands implements the bambu-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bambu-link/bambu-go/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or session)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
}

// ParseMessageTypeFlag parses a message type string (case-insensitive).
func ParseMessageTypeFlag(s string) (log.MessageType, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.MessageTypeCommand, nil
	case "reply":
		return log.MessageTypeReply, nil
	case "telemetry":
		return log.MessageTypeTelemetry, nil
	case "unmatched":
		return log.MessageTypeUnmatched, nil
	default:
		return 0, fmt.Errorf("invalid message type: %s (must be command, reply, telemetry, or unmatched)", s)
	}
}

// FilterOptions holds the raw flag values shared by view and filter.
type FilterOptions struct {
	ConnID      string
	Serial      string
	TimeStart   string
	TimeEnd     string
	Layer       string
	Direction   string
	Category    string
	MessageType string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		Serial:       o.Serial,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if o.MessageType != "" {
		m, err := ParseMessageTypeFlag(o.MessageType)
		if err != nil {
			return filter, err
		}
		filter.MessageType = &m
	}
	return filter, nil
}
