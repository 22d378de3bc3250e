// Package migrations provides database migration management for episoded.
package migrations

import (
	"github.com/episoded/episoded/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create episode, clip, and job history tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Episode{},
				&models.Clip{},
				&models.ClipAsset{},
				&models.ProcessingLog{},
				&models.JobHistory{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.JobHistory{},
				&models.ProcessingLog{},
				&models.ClipAsset{},
				&models.Clip{},
				&models.Episode{},
			)
		},
	}
}
