package config

import "github.com/rickgao/cablewatch/internal/monitor"

// MonitorOptions converts the monitor section into monitor.Options.
// Call after defaults have been applied.
func (c *Config) MonitorOptions() monitor.Options {
	opts := monitor.Options{
		Reconnection:         c.Monitor.Reconnection,
		ReconnectionDelay:    c.Monitor.ReconnectionDelay,
		ReconnectionDelayMax: c.Monitor.ReconnectionDelayMax,
	}
	if c.Monitor.ReconnectionMaxAttempts != nil {
		opts.ReconnectionMaxAttempts = *c.Monitor.ReconnectionMaxAttempts
	}
	return opts
}
