// Package session runs the client side of one printer connection.
//
// A Session owns a correlator and the merged state snapshot. Every inbound
// report goes through the same pipeline:
//
//	decode -> correlate -> duplicate check -> normalize -> merge -> diff
//
// Replies complete the waiting command and are then applied like telemetry.
// Telemetry whose sequence id equals the last applied one is dropped before
// normalization. Payloads that are not JSON are logged and dropped.
//
// # Lifecycle
//
//	DISCONNECTED -> CONNECTING -> CONNECTED -> DISCONNECTED
//
// On every transport connect the session requests the full state once
// (pushall). It is not retried automatically; call Refresh to request it
// again. Connection losses the transport recovers from are reported as
// EventError and keep the session CONNECTED.
//
// # Events
//
// Handlers registered with OnEvent run synchronously in message order.
// A change to the snapshot yields EventState with the full copy followed
// by EventStateUpdate with only the changed fields and the snapshot they
// were applied to. EventData fires for every decoded message, including
// duplicate telemetry that is not merged.
package session
