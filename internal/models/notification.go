package models

import "time"

// NotificationRecord is the delivery audit row written after each dispatch.
// Total channel failure never aborts the calling workflow, so this row is
// how operators detect a full outage.
type NotificationRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	PartyID       string `gorm:"size:64;index"`
	OrgID         string `gorm:"size:64;index"`
	CaseID        string `gorm:"size:32;index"`
	AppointmentID string `gorm:"size:32;index"`
	Kind          string `gorm:"size:32"` // case_created, contractor_assigned, case_updated, emergency_alert
	Urgency       string `gorm:"size:16"`
	Subject       string `gorm:"size:256"`
	Attempted     int
	Delivered     int
	FailureNotes  string `gorm:"type:text"`
	CreatedAt     time.Time
}
