// Package monitor implements the connection liveness monitor.
//
// The Monitor:
//   - Tracks connect, disconnect, ping, start and stop timestamps
//   - Polls on a logarithmic backoff interval bounded by min/max delays
//   - Calls Reopen on the owning connection when it has gone stale
//   - Stays quiet for a short window after a recorded disconnect
//   - Caps reopen attempts per episode
//
// The monitor decides when to reconnect, never how.
package monitor
