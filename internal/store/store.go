// Package store is the persistence collaborator for the pipeline core.
// Every upstream component talks to it through a narrow method set;
// writes are last-write-wins with no concurrency token.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/oakline/upkeep/internal/models"
	"gorm.io/gorm"
)

// Store wraps a GORM connection with the queries the core needs.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an open GORM connection.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: db}, nil
}

// GenerateID creates a unique record ID in <prefix>-xxxxxx format (6-char hex).
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("store: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b), nil
}

// CreateCase persists a new case, assigning an ID if one is not set.
func (s *Store) CreateCase(c *models.Case) error {
	if c.Title == "" {
		return fmt.Errorf("store: case title is required")
	}
	if c.OrgID == "" {
		return fmt.Errorf("store: case org is required")
	}
	if c.ID == "" {
		id, err := GenerateID("case")
		if err != nil {
			return err
		}
		c.ID = id
	}
	if c.Status == "" {
		c.Status = "open"
	}
	if err := s.db.Create(c).Error; err != nil {
		return fmt.Errorf("store: create case: %w", err)
	}
	return nil
}

// GetCase loads one case by ID.
func (s *Store) GetCase(id string) (*models.Case, error) {
	var c models.Case
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get case %s: %w", id, err)
	}
	return &c, nil
}

// UpdateCase applies a patch to a case.
func (s *Store) UpdateCase(id string, patch map[string]interface{}) error {
	result := s.db.Model(&models.Case{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("store: update case %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: case not found: %s", id)
	}
	return nil
}

// UnassignedCases returns open cases with no contractor, oldest first.
func (s *Store) UnassignedCases(orgID string) ([]models.Case, error) {
	var cases []models.Case
	if err := s.db.Where("org_id = ? AND status = ? AND contractor_id = ?", orgID, "open", "").
		Order("created_at ASC").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("store: unassigned cases: %w", err)
	}
	return cases, nil
}

// CreateAppointment persists a new appointment, assigning an ID if needed.
func (s *Store) CreateAppointment(a *models.Appointment) error {
	if a.ID == "" {
		id, err := GenerateID("apt")
		if err != nil {
			return err
		}
		a.ID = id
	}
	if a.Status == "" {
		a.Status = models.AppointmentPending
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("store: create appointment: %w", err)
	}
	return nil
}

// GetAppointment loads one appointment by ID.
func (s *Store) GetAppointment(id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get appointment %s: %w", id, err)
	}
	return &a, nil
}

// UpdateAppointment applies a patch to an appointment.
func (s *Store) UpdateAppointment(id string, patch map[string]interface{}) error {
	result := s.db.Model(&models.Appointment{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("store: update appointment %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: appointment not found: %s", id)
	}
	return nil
}

// ProposedAppointments returns appointments still awaiting an occupant
// response for the organization.
func (s *Store) ProposedAppointments(orgID string) ([]models.Appointment, error) {
	var appts []models.Appointment
	if err := s.db.Where("org_id = ? AND status = ?", orgID, models.AppointmentProposed).
		Order("created_at ASC").Find(&appts).Error; err != nil {
		return nil, fmt.Errorf("store: proposed appointments: %w", err)
	}
	return appts, nil
}

// GetParty loads one party by ID.
func (s *Store) GetParty(id string) (*models.Party, error) {
	var p models.Party
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get party %s: %w", id, err)
	}
	return &p, nil
}

// PartiesByRole returns all parties with the given role in an organization.
func (s *Store) PartiesByRole(orgID, role string) ([]models.Party, error) {
	var parties []models.Party
	if err := s.db.Where("org_id = ? AND role = ?", orgID, role).
		Order("id ASC").Find(&parties).Error; err != nil {
		return nil, fmt.Errorf("store: parties by role %s: %w", role, err)
	}
	return parties, nil
}

// ActiveContractors returns a snapshot of active contractors for matching.
func (s *Store) ActiveContractors(orgID string) ([]models.Contractor, error) {
	var contractors []models.Contractor
	if err := s.db.Where("org_id = ? AND active = ?", orgID, true).
		Order("created_at ASC").Find(&contractors).Error; err != nil {
		return nil, fmt.Errorf("store: active contractors: %w", err)
	}
	return contractors, nil
}

// GetContractor loads one contractor by ID.
func (s *Store) GetContractor(id string) (*models.Contractor, error) {
	var c models.Contractor
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get contractor %s: %w", id, err)
	}
	return &c, nil
}

// AppendTurn records one transcript message for a triage session. Sequence
// numbers are assigned from the current maximum, matching in-memory order.
// participantID identifies the requester on their rows so a rebuilt session
// keeps its provenance; assistant rows pass it empty.
func (s *Store) AppendTurn(sessionID, participantID, role, content string) error {
	var maxSeq int
	err := s.db.Model(&models.TriageTurn{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error
	if err != nil {
		return fmt.Errorf("store: append turn: %w", err)
	}

	turn := models.TriageTurn{
		SessionID:     sessionID,
		Sequence:      maxSeq + 1,
		Role:          role,
		ParticipantID: participantID,
		Content:       content,
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return fmt.Errorf("store: append turn: %w", err)
	}
	return nil
}

// TurnsBySession returns a session's transcript rows in order.
func (s *Store) TurnsBySession(sessionID string) ([]models.TriageTurn, error) {
	var turns []models.TriageTurn
	if err := s.db.Where("session_id = ?", sessionID).
		Order("sequence ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("store: turns for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// RecordNotification writes a delivery audit row. Best-effort callers log
// the error and continue.
func (s *Store) RecordNotification(rec *models.NotificationRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("store: record notification: %w", err)
	}
	return nil
}
