// Package metric exposes Prometheus collectors for the correlator, the
// session pipeline and the MQTT transport.
//
// All recording methods are safe to call on a nil *Metrics, so components
// take an optional *Metrics and never check for it.
package metric
