package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 19310,
			Bind: "loopback",
		},
		Help: HelpConfig{
			IdleMinutes:         30,
			SweepMinutes:        10,
			OutboundQueue:       64,
			WriteTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
