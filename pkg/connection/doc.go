// Package connection manages the MQTT connection lifecycle for the
// transport.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter so several clients on one LAN do not reconnect in lockstep
//   - Connection state tracking and callbacks
//
// # Reconnection Strategy
//
// When the broker connection is lost, the manager retries with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// A reconnection is successful when the connect function returns nil, which
// for the MQTT transport means the CONNACK was accepted and the report topic
// subscription was acknowledged.
package connection
