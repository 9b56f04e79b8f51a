package models

import "time"

// Appointment statuses persisted on the row. The approval workflow only
// ever moves proposed -> approved or proposed -> cancelled; a second
// response against a resolved appointment is rejected.
const (
	AppointmentPending   = "pending"
	AppointmentProposed  = "proposed"
	AppointmentApproved  = "approved"
	AppointmentCancelled = "cancelled"
)

// Appointment is a proposed site visit for a case. Occupant consent is
// gathered through a signed approval token stored alongside the row.
type Appointment struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrgID          string `gorm:"size:64;not null;index"`
	CaseID         string `gorm:"size:32;index"`
	ContractorID   string `gorm:"size:32;index"`
	OccupantID     string `gorm:"size:64;index"`
	Status         string `gorm:"size:16;default:pending;index"`
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	ApprovalToken  string `gorm:"size:512"`
	TokenExpiresAt *time.Time
	CounterStart   *time.Time // occupant's counter-proposed window
	CounterEnd     *time.Time
	ResponseReason string `gorm:"type:text"`
	RespondedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
