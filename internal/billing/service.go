package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BasicPlanName is the paid tier a Free user may always move to
const BasicPlanName = "Basic"

// PaymentGateway is the hosted checkout collaborator
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
	VerifyPayment(ctx context.Context, reference string) (*models.PaymentVerification, error)
}

// Identity is the authenticated caller
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Options configure a Service
type Options struct {
	Provider       models.PaymentProvider
	Currency       models.Currency
	CallbackURL    string
	YearlyDiscount float64
	Cache          SubscriptionCache
	Now            func() time.Time
}

// Service implements plan resolution, limit checks and the subscription lifecycle
type Service struct {
	store   Store
	gateway PaymentGateway
	cache   SubscriptionCache
	opts    Options
	now     func() time.Time
}

// NewService creates a new billing service
func NewService(store Store, gateway PaymentGateway, opts Options) *Service {
	cache := opts.Cache
	if cache == nil {
		cache = noopCache{}
	}

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}

	if opts.Currency == "" {
		opts.Currency = models.CurrencyNGN
	}
	if opts.Provider == "" {
		opts.Provider = models.PaymentProviderPaystack
	}

	return &Service{
		store:   store,
		gateway: gateway,
		cache:   cache,
		opts:    opts,
		now:     now,
	}
}

// InitializeResult is returned by InitializeSubscription
type InitializeResult struct {
	Success      bool                 `json:"success"`
	PaymentURL   string               `json:"payment_url,omitempty"`
	Reference    string               `json:"reference,omitempty"`
	Amount       float64              `json:"amount,omitempty"`
	Subscription *models.Subscription `json:"subscription"`
}

// VerifyResult is returned by VerifySubscriptionPayment
type VerifyResult struct {
	Success      bool                 `json:"success"`
	Subscription *models.Subscription `json:"subscription"`
}

// SweepResult is returned by CheckExpiredSubscriptions
type SweepResult struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// StatusResult is returned by CheckUserSubscriptionStatus
type StatusResult struct {
	Downgraded   bool                 `json:"downgraded"`
	Subscription *models.Subscription `json:"subscription"`
}

// Resolve returns the user's subscription and plan. A missing user, a missing
// row, and a failed lookup all resolve to an empty Resolution.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) Resolution {
	if userID == uuid.Nil {
		return Resolution{}
	}

	if sub, ok := s.cache.Get(ctx, userID); ok {
		return Resolution{Subscription: sub, Plan: sub.Plan}
	}

	generation := s.cache.Generation(ctx, userID)
	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSubscriptionNotFound) {
			utils.Logger.WithError(err).WithField("user_id", userID).Error("Error resolving subscription")
		}
		return Resolution{}
	}

	s.cache.Set(ctx, userID, sub, generation)
	return Resolution{Subscription: sub, Plan: sub.Plan}
}

// CheckPlanLimit evaluates the user's plan against an already known count
func (s *Service) CheckPlanLimit(ctx context.Context, userID uuid.UUID, kind models.ResourceKind, current int64) (LimitResult, error) {
	if !kind.Valid() {
		return LimitResult{}, ErrInvalidResource
	}
	return CheckPlanLimit(s.Resolve(ctx, userID), kind, current, s.now()), nil
}

// CheckUsage counts the user's resources of kind and evaluates the plan limit
func (s *Service) CheckUsage(ctx context.Context, userID uuid.UUID, kind models.ResourceKind) (LimitResult, error) {
	if !kind.Valid() {
		return LimitResult{}, ErrInvalidResource
	}

	now := s.now()
	count, err := s.store.CountResources(ctx, userID, kind, now)
	if err != nil {
		return LimitResult{}, err
	}
	return CheckPlanLimit(s.Resolve(ctx, userID), kind, count, now), nil
}

// Usage evaluates every resource kind for the user
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) ([]LimitResult, error) {
	now := s.now()
	res := s.Resolve(ctx, userID)

	results := make([]LimitResult, 0, len(models.ResourceKinds))
	for _, kind := range models.ResourceKinds {
		count, err := s.store.CountResources(ctx, userID, kind, now)
		if err != nil {
			return nil, err
		}
		results = append(results, CheckPlanLimit(res, kind, count, now))
	}
	return results, nil
}

// ListPlans returns the plans a user can choose from
func (s *Service) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return s.store.ListPlans(ctx)
}

// GetSubscription loads a subscription by id
func (s *Service) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return s.store.GetSubscription(ctx, id)
}

// ListInvoices returns the payment history of the user's subscription
func (s *Service) ListInvoices(ctx context.Context, userID uuid.UUID) ([]models.SubscriptionInvoice, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return []models.SubscriptionInvoice{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListInvoices(ctx, sub.ID)
}

// InitializeSubscription puts the user on planID. The Free plan activates
// immediately; paid plans leave the row pending and return a checkout link.
func (s *Service) InitializeSubscription(ctx context.Context, user Identity, planID uuid.UUID, interval models.BillingInterval) (*InitializeResult, error) {
	if user.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	if interval == "" {
		interval = models.BillingIntervalMonthly
	}
	if !interval.Valid() {
		return nil, ErrInvalidInterval
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetSubscriptionByUser(ctx, user.UserID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	now := s.now()
	if existing != nil && !canReplace(existing, plan, now) {
		return nil, ErrActiveSubscription
	}

	logger := utils.Logger.WithFields(logrus.Fields{
		"user_id": user.UserID,
		"plan":    plan.Name,
	})

	if plan.IsFree() || plan.Price <= 0 {
		start, end := NewPeriod(now, models.BillingIntervalMonthly)
		sub, err := s.store.UpsertSubscription(ctx, &models.Subscription{
			UserID:             user.UserID,
			PlanID:             plan.ID,
			Status:             models.SubscriptionStatusActive,
			Interval:           models.BillingIntervalMonthly,
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
		})
		if err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, user.UserID)

		logger.Info("Activated free subscription")
		return &InitializeResult{Success: true, Subscription: sub}, nil
	}

	if user.Email == "" {
		return nil, ErrEmailRequired
	}

	amount := PlanAmount(plan.Price, interval, s.opts.YearlyDiscount)
	reference := utils.GenerateReference("SUB")
	start, end := NewPeriod(now, interval)

	sub, err := s.store.UpsertSubscription(ctx, &models.Subscription{
		UserID:             user.UserID,
		PlanID:             plan.ID,
		Status:             models.SubscriptionStatusPending,
		Interval:           interval,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		PaymentReference:   reference,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, user.UserID)

	currency := plan.Currency
	if currency == "" {
		currency = s.opts.Currency
	}

	session, err := s.gateway.CreatePaymentLink(ctx, models.CheckoutRequest{
		Email:       user.Email,
		Amount:      ToMinorUnits(amount),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: s.opts.CallbackURL,
		Metadata: models.CheckoutMetadata{
			UserID:         user.UserID,
			SubscriptionID: sub.ID,
			PlanID:         plan.ID,
			Interval:       interval,
		},
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create payment link")
		return nil, fmt.Errorf("error creating payment link: %w", err)
	}

	if session.Reference != "" && session.Reference != reference {
		reference = session.Reference
		if err := s.store.UpdateSubscription(ctx, sub.ID, map[string]interface{}{
			"payment_reference": reference,
		}); err != nil {
			return nil, err
		}
		sub.PaymentReference = reference
	}

	logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"reference":       reference,
		"amount":          amount,
	}).Info("Created pending subscription")

	return &InitializeResult{
		Success:      true,
		PaymentURL:   session.AuthorizationURL,
		Reference:    reference,
		Amount:       amount,
		Subscription: sub,
	}, nil
}

// canReplace reports whether existing may be overwritten by a move to plan.
// Free to Basic is always allowed; otherwise a running paid plan blocks changes.
func canReplace(existing *models.Subscription, plan *models.SubscriptionPlan, now time.Time) bool {
	if existing.Plan.IsFree() && plan.Name == BasicPlanName {
		return true
	}

	running := existing.Status == models.SubscriptionStatusActive && !existing.ExpiredAt(now)
	return !running || existing.Plan.IsFree()
}

// CancelSubscription asks for the user's subscription to end with its period.
// Status and period end are left alone.
func (s *Service) CancelSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.UpdateSubscription(ctx, sub.ID, map[string]interface{}{
		"cancel_at_period_end": true,
		"canceled_at":          now,
	}); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userID)

	utils.Logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": sub.ID,
	}).Info("Subscription set to cancel at period end")

	return s.store.GetSubscription(ctx, sub.ID)
}

// VerifySubscriptionPayment confirms reference with the gateway and activates
// the subscription. Recording the invoice is best effort.
func (s *Service) VerifySubscriptionPayment(ctx context.Context, reference string, subscriptionID uuid.UUID) (*VerifyResult, error) {
	logger := utils.Logger.WithFields(logrus.Fields{
		"reference":       reference,
		"subscription_id": subscriptionID,
	})

	verification, err := s.gateway.VerifyPayment(ctx, reference)
	if err != nil {
		logger.WithError(err).Error("Payment verification failed")
		return nil, fmt.Errorf("error verifying payment: %w", err)
	}

	if verification.Status != models.PaymentStatusSuccess {
		logger.WithField("status", verification.Status).Warn("Payment not successful")
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotSuccessful, verification.Status)
	}

	if verification.Metadata.SubscriptionID != uuid.Nil && verification.Metadata.SubscriptionID != subscriptionID {
		logger.WithField("paid_subscription_id", verification.Metadata.SubscriptionID).Warn("Payment belongs to another subscription")
		return nil, ErrReferenceMismatch
	}

	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if reason := paymentMismatch(sub, reference, verification, s.opts.YearlyDiscount); reason != "" {
		logger.WithFields(logrus.Fields{
			"reason":      reason,
			"paid_plan":   verification.Metadata.PlanID,
			"paid_amount": verification.Amount,
		}).Warn("Payment does not match the pending subscription")
		return nil, fmt.Errorf("%w: %s", ErrReferenceMismatch, reason)
	}

	now := s.now()
	start, end := now, now
	if sub.HasPeriod() && sub.CurrentPeriodEnd.After(now) {
		start, end = *sub.CurrentPeriodStart, *sub.CurrentPeriodEnd
	} else {
		interval := sub.Interval
		if !interval.Valid() {
			interval = models.BillingIntervalMonthly
		}
		start, end = NewPeriod(now, interval)
	}

	if err := s.store.UpdateSubscription(ctx, sub.ID, map[string]interface{}{
		"status":               models.SubscriptionStatusActive,
		"current_period_start": start,
		"current_period_end":   end,
		"authorization_code":   verification.AuthorizationCode,
		"customer_code":        verification.CustomerCode,
		"payment_reference":    reference,
		"cancel_at_period_end": false,
		"canceled_at":          nil,
	}); err != nil {
		logger.WithError(err).Error("Failed to activate subscription")
		return nil, err
	}

	currency := verification.Currency
	if currency == "" && sub.Plan != nil {
		currency = sub.Plan.Currency
	}

	created, err := s.store.CreateInvoice(ctx, &models.SubscriptionInvoice{
		SubscriptionID: sub.ID,
		InvoiceCode:    reference,
		Amount:         FromMinorUnits(verification.Amount),
		Currency:       currency,
		Status:         models.SubscriptionInvoiceStatusPaid,
		PaidAt:         now,
		Metadata: models.JSON{
			"provider":       s.opts.Provider,
			"customer_code":  verification.CustomerCode,
			"customer_email": verification.CustomerEmail,
		},
	})
	switch {
	case err != nil:
		logger.WithError(err).Warn("Subscription activated but invoice could not be recorded")
	case !created:
		logger.Info("Invoice already recorded for reference")
	}

	s.cache.Invalidate(ctx, sub.UserID)

	activated, err := s.store.GetSubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	logger.WithField("user_id", sub.UserID).Info("Subscription payment verified")
	return &VerifyResult{Success: true, Subscription: activated}, nil
}

// paymentMismatch reports why a verified payment cannot activate sub, or ""
// when it can. A pending row only accepts the reference it was initialized
// with, and the payment must cover the plan it now points at.
func paymentMismatch(sub *models.Subscription, reference string, verification *models.PaymentVerification, yearlyDiscount float64) string {
	if sub.Status == models.SubscriptionStatusPending && sub.PaymentReference != "" && reference != sub.PaymentReference {
		return "reference is not the pending checkout"
	}
	if verification.Metadata.PlanID != uuid.Nil && verification.Metadata.PlanID != sub.PlanID {
		return "payment was made for another plan"
	}
	if verification.Metadata.Interval != "" && verification.Metadata.Interval != sub.Interval {
		return "payment was made for another billing interval"
	}
	if sub.Plan != nil {
		due := ToMinorUnits(PlanAmount(sub.Plan.Price, sub.Interval, yearlyDiscount))
		if verification.Amount < due {
			return "amount paid is below the plan price"
		}
	}
	return ""
}

// downgradeFields move a subscription onto the Free plan for a fresh month
func downgradeFields(freePlanID uuid.UUID, now time.Time) map[string]interface{} {
	start, end := NewPeriod(now, models.BillingIntervalMonthly)
	return map[string]interface{}{
		"plan_id":              freePlanID,
		"status":               models.SubscriptionStatusActive,
		"interval":             models.BillingIntervalMonthly,
		"current_period_start": start,
		"current_period_end":   end,
		"cancel_at_period_end": false,
		"canceled_at":          nil,
	}
}

// CheckExpiredSubscriptions downgrades every lapsed subscription to the Free
// plan. A row that fails is logged and skipped.
func (s *Service) CheckExpiredSubscriptions(ctx context.Context) (*SweepResult, error) {
	freePlan, err := s.store.GetPlanByName(ctx, models.FreePlanName)
	if errors.Is(err, ErrPlanNotFound) {
		return nil, ErrFreePlanMissing
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	expired, err := s.store.ListExpiredSubscriptions(ctx, now)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, sub := range expired {
		if err := ctx.Err(); err != nil {
			return &SweepResult{Success: false, Count: count}, err
		}

		if err := s.store.UpdateSubscription(ctx, sub.ID, downgradeFields(freePlan.ID, now)); err != nil {
			utils.Logger.WithError(err).WithFields(logrus.Fields{
				"subscription_id": sub.ID,
				"user_id":         sub.UserID,
			}).Error("Failed to downgrade expired subscription")
			continue
		}
		s.cache.Invalidate(ctx, sub.UserID)
		count++
	}

	utils.Logger.WithFields(logrus.Fields{
		"found":      len(expired),
		"downgraded": count,
	}).Info("Expired subscription sweep finished")

	return &SweepResult{Success: true, Count: count}, nil
}

// CheckUserSubscriptionStatus downgrades the user's subscription if it lapsed
// and returns its current state
func (s *Service) CheckUserSubscriptionStatus(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return &StatusResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	lapsed := sub.Status == models.SubscriptionStatusActive && sub.ExpiredAt(now) && !sub.CancelAtPeriodEnd
	if !lapsed {
		return &StatusResult{Subscription: sub}, nil
	}

	freePlan, err := s.store.GetPlanByName(ctx, models.FreePlanName)
	if errors.Is(err, ErrPlanNotFound) {
		return nil, ErrFreePlanMissing
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateSubscription(ctx, sub.ID, downgradeFields(freePlan.ID, now)); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userID)

	utils.Logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": sub.ID,
	}).Info("Downgraded lapsed subscription to free plan")

	downgraded, err := s.store.GetSubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Downgraded: true, Subscription: downgraded}, nil
}
