package billing

import (
	"testing"
	"time"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

var limitsNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func activeResolution(plan *models.SubscriptionPlan) Resolution {
	end := limitsNow.AddDate(0, 1, 0)
	return Resolution{
		Subscription: &models.Subscription{
			Status:           models.SubscriptionStatusActive,
			CurrentPeriodEnd: &end,
			Plan:             plan,
		},
		Plan: plan,
	}
}

func TestCheckPlanLimitWithoutSubscription(t *testing.T) {
	result := CheckPlanLimit(Resolution{}, models.ResourceClients, 4, limitsNow)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(5), result.Limit.Max())
	assert.Equal(t, int64(1), result.Remaining)
	assert.Equal(t, models.FreePlanName, result.PlanName)

	result = CheckPlanLimit(Resolution{}, models.ResourceClients, 5, limitsNow)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "Upgrade your plan")
}

func TestCheckPlanLimitPendingMatchesNoSubscription(t *testing.T) {
	enterprise := &models.SubscriptionPlan{
		Name:     "Enterprise",
		Features: models.FeatureMap{models.ResourceClients: models.Unlimited()},
	}
	pending := Resolution{
		Subscription: &models.Subscription{Status: models.SubscriptionStatusPending, Plan: enterprise},
		Plan:         enterprise,
	}

	for _, kind := range models.ResourceKinds {
		for count := int64(0); count <= 7; count++ {
			none := CheckPlanLimit(Resolution{}, kind, count, limitsNow)
			got := CheckPlanLimit(pending, kind, count, limitsNow)
			assert.Equal(t, none.Allowed, got.Allowed, "%s at %d", kind, count)
			assert.Equal(t, none.Limit, got.Limit)
		}
	}

	result := CheckPlanLimit(pending, models.ResourceClients, 0, limitsNow)
	assert.Contains(t, result.Message, "awaiting activation")
}

func TestCheckPlanLimitIsMonotonic(t *testing.T) {
	basic := &models.SubscriptionPlan{
		Name: "Basic",
		Features: models.FeatureMap{
			models.ResourceClients:  models.Limited(10),
			models.ResourceExpenses: models.Limited(0),
		},
	}

	resolutions := []Resolution{{}, activeResolution(basic)}
	for _, res := range resolutions {
		for _, kind := range models.ResourceKinds {
			denied := false
			for count := int64(0); count < 50; count++ {
				allowed := CheckPlanLimit(res, kind, count, limitsNow).Allowed
				if denied {
					assert.False(t, allowed, "%s allowed again at %d", kind, count)
				}
				if !allowed {
					denied = true
				}
			}
		}
	}
}

func TestCheckPlanLimitUnlimited(t *testing.T) {
	enterprise := &models.SubscriptionPlan{
		Name:     "Enterprise",
		Features: models.FeatureMap{models.ResourceInvoicesPerMonth: models.Unlimited()},
	}

	for _, count := range []int64{0, 5, 1_000_000} {
		result := CheckPlanLimit(activeResolution(enterprise), models.ResourceInvoicesPerMonth, count, limitsNow)
		assert.True(t, result.Allowed)
		assert.True(t, result.Limit.IsUnlimited())
		assert.Equal(t, int64(-1), result.Remaining)
	}
}

func TestCheckPlanLimitMissingFeatureKey(t *testing.T) {
	basic := &models.SubscriptionPlan{
		Name:     "Basic",
		Features: models.FeatureMap{models.ResourceClients: models.Limited(10)},
	}
	result := CheckPlanLimit(activeResolution(basic), models.ResourceReceipts, 500, limitsNow)
	assert.True(t, result.Allowed)
	assert.True(t, result.Limit.IsUnlimited())

	free := &models.SubscriptionPlan{
		Name:     models.FreePlanName,
		Features: models.FeatureMap{models.ResourceClients: models.Limited(5)},
	}
	result = CheckPlanLimit(activeResolution(free), models.ResourceReceipts, 5, limitsNow)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(5), result.Limit.Max())
}

func TestCheckPlanLimitWithoutFeatureMapUsesFreeLimits(t *testing.T) {
	broken := &models.SubscriptionPlan{Name: "Basic"}

	result := CheckPlanLimit(activeResolution(broken), models.ResourceClients, 4, limitsNow)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(5), result.Limit.Max())

	result = CheckPlanLimit(Resolution{Subscription: &models.Subscription{Status: models.SubscriptionStatusActive}}, models.ResourceClients, 5, limitsNow)
	assert.False(t, result.Allowed)
}

func TestCheckPlanLimitEndedCancelledSubscription(t *testing.T) {
	basic := &models.SubscriptionPlan{
		Name:     "Basic",
		Features: models.FeatureMap{models.ResourceClients: models.Limited(100)},
	}
	res := activeResolution(basic)
	ended := limitsNow.Add(-time.Hour)
	res.Subscription.CurrentPeriodEnd = &ended
	res.Subscription.CancelAtPeriodEnd = true

	result := CheckPlanLimit(res, models.ResourceClients, 10, limitsNow)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "has ended")

	res.Subscription.CancelAtPeriodEnd = false
	assert.True(t, CheckPlanLimit(res, models.ResourceClients, 10, limitsNow).Allowed)
}
