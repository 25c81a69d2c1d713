package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingInterval represents the billing interval for a subscription
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

// Valid reports whether i is a supported interval
func (i BillingInterval) Valid() bool {
	return i == BillingIntervalMonthly || i == BillingIntervalYearly
}

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// SubscriptionInvoiceStatus represents the status of a subscription invoice
type SubscriptionInvoiceStatus string

const (
	SubscriptionInvoiceStatusPaid SubscriptionInvoiceStatus = "paid"
)

// FreePlanName is the name of the plan every user falls back to
const FreePlanName = "Free"

// SubscriptionPlan is reference data describing a tier and its quotas
type SubscriptionPlan struct {
	Base
	Code        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Price       float64    `gorm:"type:decimal(20,2);not null;default:0" json:"price"`
	Currency    Currency   `gorm:"type:varchar(3);not null" json:"currency"`
	Features    FeatureMap `gorm:"type:jsonb" json:"features"`
	Active      bool       `gorm:"default:true" json:"active"`
}

// IsFree reports whether this is the Free tier
func (p *SubscriptionPlan) IsFree() bool {
	return p != nil && p.Name == FreePlanName
}

// Subscription is the single subscription row a user owns
type Subscription struct {
	Base
	UserID             uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	PlanID             uuid.UUID          `gorm:"type:uuid;index;not null" json:"plan_id"`
	Plan               *SubscriptionPlan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status             SubscriptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	Interval           BillingInterval    `gorm:"type:varchar(20);not null" json:"interval"`
	CurrentPeriodStart *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `gorm:"index" json:"current_period_end"`
	CancelAtPeriodEnd  bool               `gorm:"not null" json:"cancel_at_period_end"`
	CanceledAt         *time.Time         `json:"canceled_at"`
	AuthorizationCode  string             `gorm:"type:varchar(100)" json:"-"`
	CustomerCode       string             `gorm:"type:varchar(100)" json:"customer_code,omitempty"`
	PaymentReference   string             `gorm:"type:varchar(100);index" json:"payment_reference,omitempty"`
}

// HasPeriod reports whether both period bounds are set and ordered
func (s *Subscription) HasPeriod() bool {
	return s.CurrentPeriodStart != nil && s.CurrentPeriodEnd != nil &&
		s.CurrentPeriodEnd.After(*s.CurrentPeriodStart)
}

// ExpiredAt reports whether the current period ended before t
func (s *Subscription) ExpiredAt(t time.Time) bool {
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(t)
}

// SubscriptionInvoice is an append-only record of a successful payment
type SubscriptionInvoice struct {
	Base
	SubscriptionID uuid.UUID                 `gorm:"type:uuid;index;not null" json:"subscription_id"`
	InvoiceCode    string                    `gorm:"type:varchar(100);uniqueIndex;not null" json:"invoice_code"`
	Amount         float64                   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency       Currency                  `gorm:"type:varchar(3)" json:"currency"`
	Status         SubscriptionInvoiceStatus `gorm:"type:varchar(20);not null" json:"status"`
	PaidAt         time.Time                 `json:"paid_at"`
	Metadata       JSON                      `gorm:"type:jsonb" json:"metadata,omitempty"`
}
