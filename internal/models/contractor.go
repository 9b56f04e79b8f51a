package models

import "time"

// Contractor is a service provider that can be assigned to cases.
// The matching engine reads a snapshot of these rows per call; workload
// and capacity are maintained by whoever assigns cases.
type Contractor struct {
	ID                 string   `gorm:"primaryKey;size:32"`
	OrgID              string   `gorm:"size:64;not null;index"`
	Name               string   `gorm:"size:128;not null"`
	Category           string   `gorm:"size:64;index"`
	Specializations    string   `gorm:"type:json"` // JSON array of keywords
	Availability       string   `gorm:"size:256"`  // free text, e.g. "weekdays 8-17"
	ResponseTimeHours  float64  `gorm:"default:24"`
	Workload           int      `gorm:"default:0"`
	MaxDailyCapacity   int      `gorm:"default:5"`
	Rating             *float64 // nil until first review
	EmergencyAvailable bool     `gorm:"default:false"`
	Active             bool     `gorm:"default:true;index"`
	Email              string   `gorm:"size:128"`
	Phone              string   `gorm:"size:32"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
