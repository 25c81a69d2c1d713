package models

import (
	"time"

	"github.com/google/uuid"
)

// Business is a company a user bills from
type Business struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug     string    `gorm:"type:varchar(255);index" json:"slug"`
	Email    string    `gorm:"type:varchar(255)" json:"email"`
	Currency Currency  `gorm:"type:varchar(3)" json:"currency"`
}

// Client is a customer of a business
type Client struct {
	Base
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	BusinessID uuid.UUID `gorm:"type:uuid;index;not null" json:"business_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Email      string    `gorm:"type:varchar(255)" json:"email"`
	Phone      string    `gorm:"type:varchar(50)" json:"phone"`
}

// Invoice is a bill issued to a client
type Invoice struct {
	Base
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	BusinessID uuid.UUID  `gorm:"type:uuid;index;not null" json:"business_id"`
	ClientID   *uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	Number     string     `gorm:"type:varchar(50)" json:"number"`
	Amount     float64    `gorm:"type:decimal(20,2)" json:"amount"`
	DueDate    *time.Time `json:"due_date"`
}

// Estimate is a quote issued to a client
type Estimate struct {
	Base
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	BusinessID uuid.UUID  `gorm:"type:uuid;index;not null" json:"business_id"`
	ClientID   *uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	Number     string     `gorm:"type:varchar(50)" json:"number"`
	Amount     float64    `gorm:"type:decimal(20,2)" json:"amount"`
}

// Receipt acknowledges a payment received
type Receipt struct {
	Base
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	BusinessID uuid.UUID  `gorm:"type:uuid;index;not null" json:"business_id"`
	ClientID   *uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	Number     string     `gorm:"type:varchar(50)" json:"number"`
	Amount     float64    `gorm:"type:decimal(20,2)" json:"amount"`
}

// Expense is money spent by a business
type Expense struct {
	Base
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	BusinessID  uuid.UUID `gorm:"type:uuid;index;not null" json:"business_id"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(100)" json:"category"`
	Amount      float64   `gorm:"type:decimal(20,2)" json:"amount"`
}
