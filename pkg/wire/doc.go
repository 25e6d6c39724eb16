// Package wire defines the JSON envelope exchanged with the printer over MQTT.
//
// # Outbound
//
// A command is published as a single object keyed by its group, with the
// client sequence number stamped twice: once at the top level for reply
// correlation and once inside the group as the device's own sequence_id.
//
//	{
//	  "sequenceNumber": 7,
//	  "print": {"command": "pause", "sequence_id": "7"}
//	}
//
// # Inbound
//
// Everything published on the report topic is decoded into a [Message]. The
// body is parsed once with the lenient status schema so the same decode
// serves both correlation and state projection.
//
// # Correlation
//
// Firmware variants echo the client sequence in different places. The
// default [CorrelationFlat] reads the top-level sequenceNumber;
// [CorrelationUpgradeState] reads print.upgrade_state.sequence_id.
package wire
