// Package normalize turns raw status documents into partial canonical state.
//
// Inbound payloads are heterogeneous: numbers arrive as strings, groups are
// omitted or sent with an unexpected shape, and most reports only carry the
// fields that changed. The normalizer is total over well-formed JSON. Fields
// that do not coerce are left absent, never defaulted, so the result can be
// merged onto a snapshot without clearing anything.
//
// # Decoding
//
// [Decode] runs a lenient schema pass in which every leaf is a [Value].
// Syntactically invalid input fails with [ErrMalformed]. Everything else
// decodes, possibly to an empty report.
//
// # Projection
//
// [Project] maps a report onto [state.State]. A group with no populated
// field is nil. Tray ids must be integral; the external spool holder
// defaults to id 254.
package normalize
