package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhall/livehelp/internal/config"
	"github.com/tutorhall/livehelp/internal/help"
)

func TestRosterValidator(t *testing.T) {
	v := NewRosterValidator(testRoster)

	id, err := v.Validate("tut-token")
	require.NoError(t, err)
	assert.Equal(t, "tut-1", id.ID)
	assert.Equal(t, help.RoleTutor, id.Role)

	_, err = v.Validate("nope")
	assert.ErrorIs(t, err, ErrUnknownLoginSession)

	_, err = v.Validate("")
	assert.ErrorIs(t, err, ErrUnknownLoginSession)
}

func TestRosterValidatorDefaultsRoleToStudent(t *testing.T) {
	v := NewRosterValidator([]config.RosterEntry{{LoginSession: "tok", ID: "u1"}})

	id, err := v.Validate("tok")
	require.NoError(t, err)
	assert.Equal(t, help.RoleStudent, id.Role)
	assert.False(t, id.Role.StaffCapable())
}

func TestRosterValidatorEmptyRoster(t *testing.T) {
	v := NewRosterValidator(nil)

	_, err := v.Validate("anything")
	assert.ErrorIs(t, err, ErrUnknownLoginSession)
}
