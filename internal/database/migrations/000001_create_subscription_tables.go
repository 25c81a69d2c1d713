package migrations

import (
	"github.com/bisonbooks/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createSubscriptionTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_subscription_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.SubscriptionPlan{},
				&models.Subscription{},
				&models.SubscriptionInvoice{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.SubscriptionInvoice{},
				&models.Subscription{},
				&models.SubscriptionPlan{},
			)
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createSubscriptionTablesMigration())
}
