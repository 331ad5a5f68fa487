// Package progress implements out-of-band event delivery for background
// dispatches.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Event] — structured record with timestamp, request ID, kind, message.
//
// # Architecture boundaries
//
// This package owns event encoding and sink delivery. It does NOT decide
// which events to emit; that responsibility belongs to the dispatcher in the
// root package.
//
// # What this package must NOT do
//
//   - Reorder, filter, or suppress events.
//   - Import aerc or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package progress
