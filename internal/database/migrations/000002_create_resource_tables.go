package migrations

import (
	"github.com/bisonbooks/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createResourceTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_resource_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Business{},
				&models.Client{},
				&models.Invoice{},
				&models.Estimate{},
				&models.Receipt{},
				&models.Expense{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.Expense{},
				&models.Receipt{},
				&models.Estimate{},
				&models.Invoice{},
				&models.Client{},
				&models.Business{},
			)
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createResourceTablesMigration())
}
