// Package discovery finds MQTT brokers on the local network via DNS-SD.
//
// Printers in LAN mode run their own broker. The browser looks for the
// service types _secure-mqtt._tcp and _mqtt._tcp and aggregates answers by
// instance name, so an instance seen on several interfaces is reported once
// with all its addresses.
//
// TXT records are optional. When a record carries the printer serial (keys
// "serial", "sn" or "dev_id") it is exposed as Broker.Serial and FindSerial
// can select that printer.
package discovery
