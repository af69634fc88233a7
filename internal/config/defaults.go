package config

import (
	"time"

	"github.com/rickgao/cablewatch/internal/monitor"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "cablewatch"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 15 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultBufferSize       = 1000
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Connection defaults
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Monitor defaults
	if c.Monitor.ReconnectionDelay == 0 {
		c.Monitor.ReconnectionDelay = monitor.DefaultReconnectionDelay
	}
	if c.Monitor.ReconnectionDelayMax == 0 {
		c.Monitor.ReconnectionDelayMax = monitor.DefaultReconnectionDelayMax
	}
	if c.Monitor.ReconnectionMaxAttempts == nil {
		n := monitor.DefaultReconnectionMaxAttempts
		c.Monitor.ReconnectionMaxAttempts = &n
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
