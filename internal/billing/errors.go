package billing

import "errors"

var (
	// ErrUnauthenticated is returned by writes made without a user identity
	ErrUnauthenticated = errors.New("authentication required")

	// ErrPlanNotFound is returned when a plan id does not resolve to an active plan
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrSubscriptionNotFound is returned when a user or id has no subscription row
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrActiveSubscription refuses a plan change while a paid plan is running
	ErrActiveSubscription = errors.New("you already have an active subscription")

	// ErrInvalidInterval is returned for intervals other than monthly or yearly
	ErrInvalidInterval = errors.New("invalid billing interval")

	// ErrEmailRequired is returned when a paid plan is requested by a user without an email
	ErrEmailRequired = errors.New("an email address is required to pay for a subscription")

	// ErrInvalidResource is returned for unknown resource kinds
	ErrInvalidResource = errors.New("invalid resource kind")

	// ErrPaymentNotSuccessful is returned when the gateway does not report success
	ErrPaymentNotSuccessful = errors.New("payment was not successful")

	// ErrReferenceMismatch is returned when a payment does not match the subscription it would activate
	ErrReferenceMismatch = errors.New("payment reference does not belong to this subscription")

	// ErrFreePlanMissing means the Free plan reference row is absent
	ErrFreePlanMissing = errors.New("free plan is not configured")
)
