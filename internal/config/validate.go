package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Connection.validate("connection"); err != nil {
		return err
	}
	if err := c.Monitor.validate("monitor"); err != nil {
		return err
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (cc *ConnectionConfig) validate(prefix string) error {
	if cc.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	u, err := url.Parse(cc.URL)
	if err != nil {
		return fmt.Errorf("%s.url: %w", prefix, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.url must use ws or wss, got %q", prefix, u.Scheme)
	}
	if cc.BufferSize < 0 {
		return fmt.Errorf("%s.buffer_size must be >= 0", prefix)
	}
	if cc.PingInterval < 0 {
		return fmt.Errorf("%s.ping_interval must be >= 0", prefix)
	}
	return nil
}

func (mc *MonitorConfig) validate(prefix string) error {
	if mc.ReconnectionDelay < time.Second {
		return fmt.Errorf("%s.reconnection_delay must be >= 1s, got %v", prefix, mc.ReconnectionDelay)
	}
	if mc.ReconnectionDelayMax < mc.ReconnectionDelay {
		return fmt.Errorf("%s.reconnection_delay_max (%v) cannot be less than reconnection_delay (%v)",
			prefix, mc.ReconnectionDelayMax, mc.ReconnectionDelay)
	}
	if mc.ReconnectionMaxAttempts == nil {
		return errors.New(prefix + ".reconnection_max_attempts is required")
	}
	if *mc.ReconnectionMaxAttempts < 0 {
		return fmt.Errorf("%s.reconnection_max_attempts must be >= 0", prefix)
	}
	return nil
}
