package main

import (
	"github.com/oakline/upkeep/internal/config"
	"github.com/oakline/upkeep/internal/db"
	"github.com/oakline/upkeep/internal/store"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// storeFromConfig is connectFromConfig plus the store wrapper.
func storeFromConfig(configPath string) (*config.Config, *store.Store, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(gormDB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}
