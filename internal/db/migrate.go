package db

import (
	"fmt"

	"github.com/oakline/upkeep/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Party{},
		&models.Contractor{},
		&models.Case{},
		&models.Appointment{},
		&models.TriageTurn{},
		&models.NotificationRecord{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDemo upserts a small demo roster for an organization: an admin, a
// requester/occupant pair, and two contractors. Safe to run repeatedly.
func SeedDemo(db *gorm.DB, orgID string) error {
	rating := 4.6
	parties := []models.Party{
		{ID: "party-admin1", OrgID: orgID, Name: "Coordination Desk", Role: models.RoleAdmin, Email: "coordination@example.org"},
		{ID: "party-req1", OrgID: orgID, Name: "Riley Okafor", Role: models.RoleRequester, Email: "riley@example.org", Phone: "+15550101"},
		{ID: "party-occ1", OrgID: orgID, Name: "Sam Veld", Role: models.RoleOccupant, Email: "sam@example.org", Phone: "+15550102"},
	}
	for i := range parties {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "role", "email", "phone"}),
		}).Create(&parties[i])
		if result.Error != nil {
			return fmt.Errorf("db: seed party %s: %w", parties[i].ID, result.Error)
		}
	}

	contractors := []models.Contractor{
		{
			ID: "contractor-hvac1", OrgID: orgID, Name: "Apex Climate Services",
			Category: "HVAC", Specializations: `["boiler","heating","ventilation"]`,
			MaxDailyCapacity: 5, ResponseTimeHours: 2, Rating: &rating,
			EmergencyAvailable: true, Active: true,
			Email: "dispatch@apexclimate.example", Phone: "+15550201",
		},
		{
			ID: "contractor-gen1", OrgID: orgID, Name: "Oddjobs General Repair",
			Category: "general", Specializations: `["carpentry","painting","locks"]`,
			MaxDailyCapacity: 8, ResponseTimeHours: 24,
			Active: true,
			Email:  "jobs@oddjobs.example", Phone: "+15550202",
		},
	}
	for i := range contractors {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "specializations", "max_daily_capacity", "response_time_hours", "emergency_available", "active", "email", "phone"}),
		}).Create(&contractors[i])
		if result.Error != nil {
			return fmt.Errorf("db: seed contractor %s: %w", contractors[i].ID, result.Error)
		}
	}
	return nil
}
