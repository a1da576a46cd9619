package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrations returns the ordered schema history.
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		// Migration 001: observation and session link tables
		{
			ID: "001_observation_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Observation{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&SessionObservation{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("session_observation", "observation")
			},
		},
		// Migration 002: NULL ssar_config_id is kept distinct from 0
		{
			ID: "002_ssar_config_nullable",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("ALTER TABLE observation ALTER COLUMN ssar_config_id DROP DEFAULT").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("ALTER TABLE observation ALTER COLUMN ssar_config_id SET DEFAULT 0").Error
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}
