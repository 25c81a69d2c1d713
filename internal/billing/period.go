package billing

import (
	"math"
	"time"

	"github.com/bisonbooks/backend/internal/models"
)

// PeriodEnd returns the end of a billing period beginning at start.
// It uses calendar arithmetic, so Jan 31 + 1 month normalizes into March
// the same way time.AddDate does.
func PeriodEnd(start time.Time, interval models.BillingInterval) time.Time {
	if interval == models.BillingIntervalYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// NewPeriod returns the bounds of a fresh period beginning at start
func NewPeriod(start time.Time, interval models.BillingInterval) (time.Time, time.Time) {
	return start, PeriodEnd(start, interval)
}

// PlanAmount is what a plan costs for one interval, in major currency units.
// Yearly billing is twelve months less the discount, rounded to a whole unit.
func PlanAmount(monthlyPrice float64, interval models.BillingInterval, yearlyDiscount float64) float64 {
	if interval == models.BillingIntervalYearly {
		return math.Round(monthlyPrice * 12 * (1 - yearlyDiscount))
	}
	return monthlyPrice
}

// ToMinorUnits converts a major-unit amount into kobo/pesewas/cents
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts kobo/pesewas/cents into major units
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
