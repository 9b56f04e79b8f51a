package models

import "time"

// Party roles used by role-scoped push fan-out.
const (
	RoleRequester  = "requester"
	RoleOccupant   = "occupant"
	RoleAdmin      = "admin"
	RoleContractor = "contractor"
)

// Party is any person the pipeline talks to: requesters, occupants,
// organization admins, and contractor contacts. Email and Phone may be
// empty; delivery to a party with no reachable channel is a recorded no-op.
type Party struct {
	ID        string `gorm:"primaryKey;size:64"`
	OrgID     string `gorm:"size:64;not null;index"`
	Name      string `gorm:"size:128"`
	Role      string `gorm:"size:16;index"`
	Email     string `gorm:"size:128"`
	Phone     string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
