package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence the billing rules need
type Store interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)

	GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	ListExpiredSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error)

	CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) (bool, error)
	ListInvoices(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionInvoice, error)

	CountResources(ctx context.Context, userID uuid.UUID, kind models.ResourceKind, now time.Time) (int64, error)
}

// upsertColumns are overwritten when a user's subscription row already exists
var upsertColumns = []string{
	"plan_id",
	"status",
	"interval",
	"current_period_start",
	"current_period_end",
	"cancel_at_period_end",
	"canceled_at",
	"payment_reference",
	"updated_at",
	"deleted_at",
}

// GormStore implements Store on gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetPlan loads an active plan by id
func (s *GormStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding plan: %w", err)
	}
	return &plan, nil
}

// GetPlanByName loads a plan by its display name
func (s *GormStore) GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding plan %s: %w", name, err)
	}
	return &plan, nil
}

// ListPlans returns active plans, cheapest first
func (s *GormStore) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("price ASC").Order("name ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("error listing plans: %w", err)
	}
	return plans, nil
}

// GetSubscriptionByUser loads the user's subscription with its plan
func (s *GormStore) GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Preload("Plan").Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscription loads a subscription by id with its plan
func (s *GormStore) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Preload("Plan").Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription inserts the user's subscription row, or overwrites it in
// place when one exists. The unique index on user_id makes this a single
// atomic statement, so concurrent callers cannot create two rows.
func (s *GormStore) UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if sub.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(sub).Error
	if err != nil {
		return nil, fmt.Errorf("error saving subscription: %w", err)
	}

	return s.GetSubscriptionByUser(ctx, sub.UserID)
}

// UpdateSubscription applies a partial update to one subscription
func (s *GormStore) UpdateSubscription(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("error updating subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListExpiredSubscriptions finds active subscriptions whose period ended before
// now and that are not waiting to be cancelled
func (s *GormStore) ListExpiredSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SubscriptionStatusActive).
		Where("current_period_end < ?", now).
		Where("(cancel_at_period_end = ? OR cancel_at_period_end IS NULL)", false).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("error finding expired subscriptions: %w", err)
	}
	return subs, nil
}

// CreateInvoice appends an invoice unless one with the same code exists.
// It reports whether a row was written.
func (s *GormStore) CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_code"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, fmt.Errorf("error creating subscription invoice: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListInvoices returns a subscription's invoices, newest first
func (s *GormStore) ListInvoices(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionInvoice, error) {
	var invoices []models.SubscriptionInvoice
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("paid_at DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("error listing subscription invoices: %w", err)
	}
	return invoices, nil
}

// CountResources counts what the user owns of kind. Invoices are counted
// for the calendar month containing now.
func (s *GormStore) CountResources(ctx context.Context, userID uuid.UUID, kind models.ResourceKind, now time.Time) (int64, error) {
	var model interface{}
	query := s.db.WithContext(ctx)

	switch kind {
	case models.ResourceBusinesses:
		model = &models.Business{}
	case models.ResourceClients:
		model = &models.Client{}
	case models.ResourceEstimates:
		model = &models.Estimate{}
	case models.ResourceReceipts:
		model = &models.Receipt{}
	case models.ResourceExpenses:
		model = &models.Expense{}
	case models.ResourceInvoicesPerMonth:
		model = &models.Invoice{}
		start, end := MonthBounds(now)
		query = query.Where("created_at >= ? AND created_at < ?", start, end)
	default:
		return 0, ErrInvalidResource
	}

	var count int64
	if err := query.Model(model).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting %s: %w", kind, err)
	}
	return count, nil
}

// MonthBounds returns the first instant of t's month and of the next month, in UTC
func MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
