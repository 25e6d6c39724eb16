// Package state defines the canonical printer state and the pure functions
// that reconcile it.
//
// A State is a snapshot of everything the client knows about one printer.
// Every group and every leaf is optional: a nil pointer, nil map or nil slice
// means the value was never reported, which is different from zero or false.
// Only Meta.Timestamp is always set on snapshots produced by the normalizer.
//
// # Merge
//
// Merge applies a partial State on top of a previous snapshot. Records
// (pointers to structs and maps) are merged field by field and key by key.
// Leaves and slices from the patch replace the previous value wholesale.
// Fields absent from the patch never clear a previously known value.
//
// # Diff
//
// Diff computes the minimal patch between two snapshots. Equal leaves are
// dropped, records recurse over the union of their keys, and slices are
// compared as a whole. Meta is bookkeeping and never contributes to a diff.
//
// For any S1 and S2 whose keys only grow between snapshots:
//
//	Merge(S1, Diff(S1, S2)) == S2
//
// # Value fields
//
// A non-pointer scalar inside a record (for example Tray.ID) identifies the
// record rather than describing it. Diff copies such fields into every patched
// record and Merge always takes them from the patch.
package state
