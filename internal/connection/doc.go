// Package connection implements the WebSocket session watched by the monitor.
//
// The Conn:
//   - Dials the server and replaces the socket whenever Reopen is called
//   - Feeds connects, disconnects, ping frames and inbound traffic to its monitor
//   - Consumes welcome, ping and disconnect control messages
//   - Sends keepalive pings on a fixed interval
//   - Delivers everything else on Messages()
package connection
