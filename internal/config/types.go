package config

// Config is the root configuration for the livehelp server.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Help    HelpConfig    `yaml:"help,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Roster  []RosterEntry `yaml:"roster,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// HelpConfig controls session lifecycle and delivery behavior.
type HelpConfig struct {
	IdleMinutes         int `yaml:"idleMinutes,omitempty"`         // idle threshold before a session is swept
	SweepMinutes        int `yaml:"sweepMinutes,omitempty"`        // interval between sweep passes
	OutboundQueue       int `yaml:"outboundQueue,omitempty"`       // per-endpoint outbound envelope queue size
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds,omitempty"` // deadline for one websocket write
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
}

// RosterEntry maps a login-session token to a verified identity for the
// built-in static validator. Production deployments replace this with a
// real login-session service.
type RosterEntry struct {
	LoginSession string `yaml:"loginSession"`
	ID           string `yaml:"id"`
	Name         string `yaml:"name,omitempty"`
	Role         string `yaml:"role,omitempty"` // "student" | "tutor" | "admin"
}
