package models

import "github.com/google/uuid"

// PaymentProvider represents supported payment providers
type PaymentProvider string

const (
	PaymentProviderPaystack PaymentProvider = "paystack"
)

// PaymentStatus is the gateway's verdict on a transaction
type PaymentStatus string

const (
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusAbandoned PaymentStatus = "abandoned"
	PaymentStatusPending   PaymentStatus = "pending"
)

// CheckoutRequest asks a gateway for a hosted checkout link.
// Amount is in minor currency units (kobo, pesewas, cents).
type CheckoutRequest struct {
	Email       string
	Amount      int64
	Currency    Currency
	Reference   string
	CallbackURL string
	Metadata    CheckoutMetadata
}

// CheckoutMetadata travels with a transaction and comes back on verification
// and in webhooks.
type CheckoutMetadata struct {
	UserID         uuid.UUID       `json:"user_id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	PlanID         uuid.UUID       `json:"plan_id"`
	Interval       BillingInterval `json:"interval"`
}

// CheckoutSession is the gateway's answer to a CheckoutRequest
type CheckoutSession struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// PaymentVerification is the gateway's record of a transaction.
// Amount is in minor currency units.
type PaymentVerification struct {
	Reference         string
	Status            PaymentStatus
	Amount            int64
	Currency          Currency
	AuthorizationCode string
	CustomerCode      string
	CustomerEmail     string
	Metadata          CheckoutMetadata
}
