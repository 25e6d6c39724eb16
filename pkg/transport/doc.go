// Package transport connects to a printer's local MQTT broker.
//
// The printer runs an MQTT broker on port 8883 behind TLS. Clients log in as
// user "bblp" with the LAN access code as password, subscribe to
// device/<serial>/report and publish commands on device/<serial>/request.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON envelopes            │
//	├────────────────────────────────┤
//	│           MQTT 3.1.1           │
//	├────────────────────────────────┤
//	│         TLS 1.2+               │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Certificates
//
// Printers present a certificate issued by a private CA with the serial as
// common name. By default the chain is not verified. When a CA pool is
// configured the chain and the serial are checked.
//
// # Reconnection
//
// Paho's automatic reconnect is disabled. A connection.Manager owns the
// lifecycle: after a loss it rebuilds the client with exponential backoff
// and resubscribes, then reports OnConnect to the Listener again.
package transport
