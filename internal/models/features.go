package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ResourceKind identifies a metered entity category
type ResourceKind string

const (
	ResourceClients          ResourceKind = "clients"
	ResourceInvoicesPerMonth ResourceKind = "invoices_per_month"
	ResourceEstimates        ResourceKind = "estimates"
	ResourceReceipts         ResourceKind = "receipts"
	ResourceExpenses         ResourceKind = "expenses"
	ResourceBusinesses       ResourceKind = "businesses"
)

// ResourceKinds lists every metered kind in display order
var ResourceKinds = []ResourceKind{
	ResourceClients,
	ResourceInvoicesPerMonth,
	ResourceEstimates,
	ResourceReceipts,
	ResourceExpenses,
	ResourceBusinesses,
}

// Valid reports whether k is one of the metered kinds
func (k ResourceKind) Valid() bool {
	for _, kind := range ResourceKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// unlimitedSentinel is how an unlimited quota is spelled in stored feature maps
const unlimitedSentinel = "Unlimited"

// Limit is a per-resource quota: either a fixed number or unlimited.
type Limit struct {
	max       int64
	unlimited bool
}

// Limited returns a quota capped at n
func Limited(n int64) Limit {
	return Limit{max: n}
}

// Unlimited returns a quota with no cap
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// IsUnlimited reports whether the quota has no cap
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Max returns the cap. It is meaningless for unlimited quotas.
func (l Limit) Max() int64 {
	return l.max
}

// Allows reports whether one more resource fits when current already exist
func (l Limit) Allows(current int64) bool {
	return l.unlimited || current < l.max
}

// Remaining returns how many more resources fit, never negative.
// Unlimited quotas report -1.
func (l Limit) Remaining(current int64) int64 {
	if l.unlimited {
		return -1
	}
	if current >= l.max {
		return 0
	}
	return l.max - current
}

func (l Limit) String() string {
	if l.unlimited {
		return unlimitedSentinel
	}
	return strconv.FormatInt(l.max, 10)
}

// MarshalJSON writes a number, or the "Unlimited" string
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal(unlimitedSentinel)
	}
	return json.Marshal(l.max)
}

// UnmarshalJSON accepts a number, a numeric string, or "Unlimited"
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return l.parseString(s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid limit %s: %w", string(data), err)
	}
	*l = Limited(int64(math.Floor(f)))
	return nil
}

func (l *Limit) parseString(s string) error {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, unlimitedSentinel) {
		*l = Unlimited()
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid limit %q", s)
	}
	*l = Limited(int64(math.Floor(f)))
	return nil
}

// FeatureMap holds the per-resource quotas of a plan
type FeatureMap map[ResourceKind]Limit

// Lookup returns the quota for kind and whether the plan defines one
func (f FeatureMap) Lookup(kind ResourceKind) (Limit, bool) {
	if f == nil {
		return Limit{}, false
	}
	l, ok := f[kind]
	return l, ok
}

// Value implements the driver.Valuer interface for FeatureMap
func (f FeatureMap) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[ResourceKind]Limit(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for FeatureMap
func (f *FeatureMap) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	bytes, err := columnBytes(value)
	if err != nil {
		return err
	}

	var result map[ResourceKind]Limit
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*f = FeatureMap(result)
	return nil
}
