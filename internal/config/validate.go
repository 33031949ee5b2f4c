package config

import "fmt"

// Issue describes a single configuration problem.
type Issue struct {
	Path    string
	Message string
}

// Validate checks the config for problems and returns all issues found.
func Validate(cfg *Config) []Issue {
	var issues []Issue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, Issue{
			Path:    "server.port",
			Message: fmt.Sprintf("port %d out of range", cfg.Server.Port),
		})
	}

	switch cfg.Server.Bind {
	case "loopback", "lan", "custom":
	default:
		issues = append(issues, Issue{
			Path:    "server.bind",
			Message: fmt.Sprintf("unknown bind mode %q (expected loopback, lan, or custom)", cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, Issue{
			Path:    "server.customBindHost",
			Message: "bind mode custom requires customBindHost",
		})
	}

	if cfg.Help.IdleMinutes < 1 {
		issues = append(issues, Issue{Path: "help.idleMinutes", Message: "must be at least 1"})
	}
	if cfg.Help.SweepMinutes < 1 {
		issues = append(issues, Issue{Path: "help.sweepMinutes", Message: "must be at least 1"})
	}
	if cfg.Help.OutboundQueue < 1 {
		issues = append(issues, Issue{Path: "help.outboundQueue", Message: "must be at least 1"})
	}

	seen := make(map[string]bool, len(cfg.Roster))
	for i, entry := range cfg.Roster {
		path := fmt.Sprintf("roster[%d]", i)
		if entry.LoginSession == "" {
			issues = append(issues, Issue{Path: path + ".loginSession", Message: "must not be empty"})
		}
		if entry.ID == "" {
			issues = append(issues, Issue{Path: path + ".id", Message: "must not be empty"})
		}
		switch entry.Role {
		case "", "student", "tutor", "admin":
		default:
			issues = append(issues, Issue{
				Path:    path + ".role",
				Message: fmt.Sprintf("unknown role %q (expected student, tutor, or admin)", entry.Role),
			})
		}
		if seen[entry.LoginSession] {
			issues = append(issues, Issue{Path: path + ".loginSession", Message: "duplicate login session token"})
		}
		seen[entry.LoginSession] = true
	}

	return issues
}
