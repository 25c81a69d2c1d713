package migrations

import (
	"errors"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// DefaultPlans is the reference data shipped with the service
func DefaultPlans() []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Name:        models.FreePlanName,
			Description: "Get started with the essentials",
			Price:       0,
			Currency:    models.CurrencyNGN,
			Active:      true,
			Features: models.FeatureMap{
				models.ResourceClients:          models.Limited(5),
				models.ResourceInvoicesPerMonth: models.Limited(5),
				models.ResourceEstimates:        models.Limited(5),
				models.ResourceReceipts:         models.Limited(5),
				models.ResourceExpenses:         models.Limited(5),
				models.ResourceBusinesses:       models.Limited(5),
			},
		},
		{
			Name:        "Basic",
			Description: "For growing businesses",
			Price:       5000,
			Currency:    models.CurrencyNGN,
			Active:      true,
			Features: models.FeatureMap{
				models.ResourceClients:          models.Limited(100),
				models.ResourceInvoicesPerMonth: models.Limited(100),
				models.ResourceEstimates:        models.Limited(100),
				models.ResourceReceipts:         models.Limited(100),
				models.ResourceExpenses:         models.Limited(200),
				models.ResourceBusinesses:       models.Limited(3),
			},
		},
		{
			Name:        "Enterprise",
			Description: "No limits",
			Price:       20000,
			Currency:    models.CurrencyNGN,
			Active:      true,
			Features: models.FeatureMap{
				models.ResourceClients:          models.Unlimited(),
				models.ResourceInvoicesPerMonth: models.Unlimited(),
				models.ResourceEstimates:        models.Unlimited(),
				models.ResourceReceipts:         models.Unlimited(),
				models.ResourceExpenses:         models.Unlimited(),
				models.ResourceBusinesses:       models.Unlimited(),
			},
		},
	}
}

func seedSubscriptionPlansMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_seed_subscription_plans",
		Migrate: func(tx *gorm.DB) error {
			for _, plan := range DefaultPlans() {
				plan.Code = slug.Make(plan.Name)

				var existing models.SubscriptionPlan
				err := tx.Where("code = ?", plan.Code).First(&existing).Error
				if err == nil {
					continue
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				if err := tx.Create(&plan).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			codes := make([]string, 0, 3)
			for _, plan := range DefaultPlans() {
				codes = append(codes, slug.Make(plan.Name))
			}
			return tx.Unscoped().Where("code IN ?", codes).Delete(&models.SubscriptionPlan{}).Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, seedSubscriptionPlansMigration())
}
