package help

// Role classifies a verified identity.
type Role string

// Roles known to the help core.
const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

// StaffCapable reports whether the role authorizes viewing staff-only
// content such as student notes.
func (r Role) StaffCapable() bool {
	return r == RoleTutor || r == RoleAdmin
}

// Identity is an externally verified participant. The help core never
// authenticates; it only reads the role classification.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// Validator resolves a login-session token to a verified identity.
// Implementations live outside the help core.
type Validator interface {
	Validate(loginSession string) (Identity, error)
}
