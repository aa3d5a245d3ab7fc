// Package questnav turns the headset's raw published values into validated
// pose frames, edge-triggered status transitions, correlated command
// responses, and a per-tick diagnostics snapshot.
//
// A Client is driven by one fixed-period goroutine. Every transport read is
// a non-blocking drain of values the bus buffered since the previous tick,
// so nothing in this package blocks, locks, or spawns workers. One Tick call
// yields one consistent view of the session for a presentation layer to
// render.
package questnav
