package models

import "time"

// TriageTurn stores a single message of a triage session's transcript.
// The in-process session manager is authoritative while a session is live;
// these rows exist so an evicted session can be rebuilt.
type TriageTurn struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SessionID     string `gorm:"size:64;not null;index"`
	Sequence      int    `gorm:"not null"`
	Role          string `gorm:"size:16;not null"` // "requester", "assistant"
	ParticipantID string `gorm:"size:64"`          // set on requester rows; empty for assistant
	Content       string `gorm:"type:mediumtext;not null"`
	CreatedAt     time.Time
}
