// Package correlator turns a fire-and-forget publish channel into a
// request/response API.
//
// Every outbound command receives a fresh sequence number from a monotonic
// counter. Commands that expect a reply are registered in a pending map
// before they are published and armed with a deadline. Inbound messages are
// classified by [Correlator.Handle]:
//
//   - Reply: the message echoes the sequence of a pending command, which is
//     completed and removed.
//   - Unmatched: the message echoes a sequence that is not pending, typically
//     a reply that arrived after its deadline.
//   - Telemetry: the message carries no client sequence.
//
// A pending entry is removed exactly once, by whichever of reply, deadline,
// publish failure, context cancellation or Close comes first.
package correlator
