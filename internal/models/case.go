package models

import "time"

// Case is the core maintenance request record. It is created from a triage
// session's extracted draft and flows through matching and scheduling.
type Case struct {
	ID           string `gorm:"primaryKey;size:32"`
	OrgID        string `gorm:"size:64;not null;index"`
	RequesterID  string `gorm:"size:64;index"`
	Title        string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	Urgency      string `gorm:"size:16;default:Routine;index"` // Emergency, Urgent, Routine
	Category     string `gorm:"size:64;index"`
	Location     string `gorm:"size:256"`
	Contact      string `gorm:"size:128"`
	Status       string `gorm:"size:16;default:open;index"` // open, assigned, resolved, cancelled
	ContractorID string `gorm:"size:32;index"`
	SessionID    string `gorm:"size:64;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time

	Appointments []Appointment `gorm:"foreignKey:CaseID"`
}
