package billing

import (
	"fmt"
	"time"

	"github.com/bisonbooks/backend/internal/models"
)

// DefaultFreePlanLimits apply whenever no usable paid plan governs a user
var DefaultFreePlanLimits = models.FeatureMap{
	models.ResourceClients:          models.Limited(5),
	models.ResourceInvoicesPerMonth: models.Limited(5),
	models.ResourceEstimates:        models.Limited(5),
	models.ResourceReceipts:         models.Limited(5),
	models.ResourceExpenses:         models.Limited(5),
	models.ResourceBusinesses:       models.Limited(5),
}

var resourceLabels = map[models.ResourceKind]string{
	models.ResourceClients:          "clients",
	models.ResourceInvoicesPerMonth: "invoices this month",
	models.ResourceEstimates:        "estimates",
	models.ResourceReceipts:         "receipts",
	models.ResourceExpenses:         "expenses",
	models.ResourceBusinesses:       "businesses",
}

// LimitResult is the verdict of a plan limit check
type LimitResult struct {
	Resource  models.ResourceKind `json:"resource"`
	Allowed   bool                `json:"allowed"`
	Message   string              `json:"message"`
	Limit     models.Limit        `json:"limit"`
	Current   int64               `json:"current"`
	Remaining int64               `json:"remaining"`
	PlanName  string              `json:"plan_name"`
}

// Resolution is what the resolver knows about a user's plan
type Resolution struct {
	Subscription *models.Subscription     `json:"subscription"`
	Plan         *models.SubscriptionPlan `json:"plan"`
}

// freeLimit returns the default quota for kind
func freeLimit(kind models.ResourceKind) models.Limit {
	if l, ok := DefaultFreePlanLimits.Lookup(kind); ok {
		return l
	}
	return models.Limited(0)
}

// CheckPlanLimit decides whether one more resource of kind may be created
// when current already exist. It does no I/O.
func CheckPlanLimit(res Resolution, kind models.ResourceKind, current int64, now time.Time) LimitResult {
	sub := res.Subscription

	if sub == nil {
		return evaluate(kind, freeLimit(kind), current, models.FreePlanName, "")
	}

	if sub.Status == models.SubscriptionStatusPending {
		return evaluate(kind, freeLimit(kind), current, models.FreePlanName,
			"Your subscription is awaiting activation, so free plan limits apply. ")
	}

	if sub.Status == models.SubscriptionStatusExpired || (sub.CancelAtPeriodEnd && sub.ExpiredAt(now)) {
		return evaluate(kind, freeLimit(kind), current, models.FreePlanName,
			"Your subscription has ended, so free plan limits apply. ")
	}

	plan := res.Plan
	if plan == nil || plan.Features == nil {
		return evaluate(kind, freeLimit(kind), current, models.FreePlanName,
			"Your plan details could not be loaded, so free plan limits apply. ")
	}

	limit, ok := plan.Features.Lookup(kind)
	if !ok {
		if !plan.IsFree() {
			return evaluate(kind, models.Unlimited(), current, plan.Name, "")
		}
		limit = freeLimit(kind)
	}

	return evaluate(kind, limit, current, plan.Name, "")
}

func evaluate(kind models.ResourceKind, limit models.Limit, current int64, planName, prefix string) LimitResult {
	label := resourceLabels[kind]
	if label == "" {
		label = string(kind)
	}

	result := LimitResult{
		Resource:  kind,
		Allowed:   limit.Allows(current),
		Limit:     limit,
		Current:   current,
		Remaining: limit.Remaining(current),
		PlanName:  planName,
	}

	switch {
	case limit.IsUnlimited():
		result.Message = prefix + fmt.Sprintf("Your %s plan includes unlimited %s.", planName, label)
	case result.Allowed:
		result.Message = prefix + fmt.Sprintf("You can add %d more %s on the %s plan (%d of %d used).",
			result.Remaining, label, planName, current, limit.Max())
	default:
		result.Message = prefix + fmt.Sprintf("You have reached the %s plan limit of %d %s. Upgrade your plan to add more.",
			planName, limit.Max(), label)
	}

	return result
}
