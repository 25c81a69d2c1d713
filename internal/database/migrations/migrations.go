package migrations

import (
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in the order they were registered
var migrationsList []*gormigrate.Migration

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		utils.Logger.WithError(err).Error("Could not migrate")
		return err
	}
	utils.Logger.WithField("count", len(migrationsList)).Info("Migrations ran successfully")
	return nil
}
