package entity

type Role string

const (
	RoleAthlete Role = "athlete"
	RoleOwner   Role = "owner"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
}

func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) IsOwner() bool {
	return a.Authenticated() && a.Role == RoleOwner
}
