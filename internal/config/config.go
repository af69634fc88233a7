package config

import "time"

// Config is the root configuration for a cablewatch instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Connection ConnectionConfig `yaml:"connection"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ConnectionConfig holds WebSocket settings.
type ConnectionConfig struct {
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers"` // e.g. Origin, Authorization
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	PingInterval     time.Duration     `yaml:"ping_interval"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	BufferSize       int               `yaml:"buffer_size"`
}

// MonitorConfig holds connection monitor settings.
type MonitorConfig struct {
	Reconnection            bool          `yaml:"reconnection"`
	ReconnectionDelay       time.Duration `yaml:"reconnection_delay"`
	ReconnectionDelayMax    time.Duration `yaml:"reconnection_delay_max"`
	ReconnectionMaxAttempts *int          `yaml:"reconnection_max_attempts"` // nil = default; 0 is valid
}

// MetricsConfig holds Prometheus and health endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
