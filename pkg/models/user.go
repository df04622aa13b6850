package models

// SystemActor is the caller id background workers act as. It never names a
// stored user.
const SystemActor = "system"

// Role is the identity collaborator's classification of a user.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleResearcher   Role = "Researcher"
	RolePeerReviewer Role = "Peer Reviewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleResearcher, RolePeerReviewer:
		return true
	default:
		return false
	}
}

// User is the subset of profile data the workflow core reads.
type User struct {
	ID          string `json:"id"           validate:"required"`
	Role        Role   `json:"role"         validate:"required"`
	Email       string `json:"email"        validate:"omitempty,email"`
	DisplayName string `json:"display_name"`
}
