// Package actor carries the identity an operation is attributed to. It is
// passed explicitly into every payment operation.
package actor

import "github.com/google/uuid"

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleUser       = "user"
	RoleSystem     = "system"
)

type Actor struct {
	ProfileID uuid.UUID  `json:"profile_id"`
	CenterID  *uuid.UUID `json:"center_id,omitempty"`
	Role      string     `json:"role"`
}

// System is the actor used for webhook and background reconciliation work.
func System() Actor {
	return Actor{ProfileID: uuid.Nil, Role: RoleSystem}
}

func (a Actor) IsSystem() bool { return a.Role == RoleSystem }
