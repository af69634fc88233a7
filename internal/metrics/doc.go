// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Monitor check outcomes (fresh, suppressed, reopened, exhausted, ...)
//   - Current reconnect attempt count
//   - WebSocket dial results
package metrics
