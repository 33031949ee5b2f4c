package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livehelp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  bind: lan
help:
  idleMinutes: 15
logging:
  level: debug
roster:
  - loginSession: stu-token
    id: stu-1
    name: Avery
    role: student
  - loginSession: tut-token
    id: tut-1
    role: tutor
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, 15, cfg.Help.IdleMinutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Roster, 2)
	assert.Equal(t, "stu-1", cfg.Roster[0].ID)

	// Fields the file omits keep their defaults.
	assert.Equal(t, 10, cfg.Help.SweepMinutes)
	assert.Equal(t, 64, cfg.Help.OutboundQueue)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: map")

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVEHELP_SERVER_PORT", "9999")
	t.Setenv("LIVEHELP_SERVER_BIND", "lan")
	t.Setenv("LIVEHELP_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideIgnoresBadPort(t *testing.T) {
	t.Setenv("LIVEHELP_SERVER_PORT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 19310, cfg.Server.Port)
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			path:   "server.port",
		},
		{
			name:   "unknown bind mode",
			mutate: func(c *Config) { c.Server.Bind = "public" },
			path:   "server.bind",
		},
		{
			name:   "custom bind needs host",
			mutate: func(c *Config) { c.Server.Bind = "custom" },
			path:   "server.customBindHost",
		},
		{
			name:   "idle minutes too small",
			mutate: func(c *Config) { c.Help.IdleMinutes = 0 },
			path:   "help.idleMinutes",
		},
		{
			name:   "sweep minutes too small",
			mutate: func(c *Config) { c.Help.SweepMinutes = -1 },
			path:   "help.sweepMinutes",
		},
		{
			name:   "outbound queue too small",
			mutate: func(c *Config) { c.Help.OutboundQueue = 0 },
			path:   "help.outboundQueue",
		},
		{
			name:   "roster entry missing token",
			mutate: func(c *Config) { c.Roster = []RosterEntry{{ID: "u1"}} },
			path:   "roster[0].loginSession",
		},
		{
			name:   "roster entry missing id",
			mutate: func(c *Config) { c.Roster = []RosterEntry{{LoginSession: "tok"}} },
			path:   "roster[0].id",
		},
		{
			name:   "roster entry bad role",
			mutate: func(c *Config) { c.Roster = []RosterEntry{{LoginSession: "tok", ID: "u1", Role: "wizard"}} },
			path:   "roster[0].role",
		},
		{
			name: "duplicate login session token",
			mutate: func(c *Config) {
				c.Roster = []RosterEntry{
					{LoginSession: "tok", ID: "u1"},
					{LoginSession: "tok", ID: "u2"},
				}
			},
			path: "roster[1].loginSession",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			issues := Validate(&cfg)
			require.NotEmpty(t, issues)

			paths := make([]string, 0, len(issues))
			for _, issue := range issues {
				paths = append(paths, issue.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}
