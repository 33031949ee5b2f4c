package gateway

import (
	"errors"

	"github.com/tutorhall/livehelp/internal/config"
	"github.com/tutorhall/livehelp/internal/help"
)

// ErrUnknownLoginSession is returned when a login-session token does not
// resolve to a verified identity.
var ErrUnknownLoginSession = errors.New("unknown login session")

// RosterValidator resolves login-session tokens against a static roster
// from configuration. It stands in for the production login-session
// service at the validator boundary; the help core only ever sees the
// help.Validator interface.
type RosterValidator struct {
	entries map[string]help.Identity
}

// NewRosterValidator builds a validator from roster config entries.
// Entries without a role default to student.
func NewRosterValidator(entries []config.RosterEntry) *RosterValidator {
	m := make(map[string]help.Identity, len(entries))
	for _, e := range entries {
		role := help.Role(e.Role)
		if role == "" {
			role = help.RoleStudent
		}
		m[e.LoginSession] = help.Identity{ID: e.ID, Name: e.Name, Role: role}
	}
	return &RosterValidator{entries: m}
}

// Validate implements help.Validator.
func (v *RosterValidator) Validate(loginSession string) (help.Identity, error) {
	id, ok := v.entries[loginSession]
	if !ok {
		return help.Identity{}, ErrUnknownLoginSession
	}
	return id, nil
}
