package models

import "github.com/google/uuid"

type Role string

const (
	RoleManager Role = "manager"
	RoleCleaner Role = "cleaner"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleCleaner
}

// Actor is the resolved identity of a request.
type Actor struct {
	Role      Role      `json:"role"`
	SubjectID uuid.UUID `json:"subject_id"`
}

func (a Actor) IsManager() bool { return a.Role == RoleManager }
func (a Actor) IsCleaner() bool { return a.Role == RoleCleaner }

// AccountUser is what the account identity provider knows about a bearer token.
type AccountUser struct {
	ID    uuid.UUID
	Email string
}
