package model

import "time"

// Rule represents a deterministic pattern for labeling records. Rules are the
// first and cheapest decision tier; a match is treated as near-certain.
type Rule struct {
	CreatedAt          time.Time `json:"created_at"`
	AmountMin          *float64  `json:"amount_min,omitempty"`
	AmountMax          *float64  `json:"amount_max,omitempty"`
	TenantID           string    `json:"tenant_id"`
	Name               string    `json:"name"`
	CounterpartyRegex  string    `json:"counterparty_regex"`
	Label              string    `json:"label"`
	ID                 int       `json:"id"`
	Priority           int       `json:"priority"`
	UseCount           int       `json:"use_count"`
	IsActive           bool      `json:"is_active"`
}

// TenantSettings holds per-tenant decision configuration. Thresholds outside
// [MinThreshold, MaxThreshold] are clamped on read.
type TenantSettings struct {
	TenantID        string
	ClearingAccount string
	Threshold       float64
	BudgetCap       float64
	ColdStartMin    int
}

// Threshold bounds for tenant overrides.
const (
	MinThreshold     = 0.80
	MaxThreshold     = 0.98
	DefaultThreshold = 0.90
	DefaultColdStart = 3
)

// ClampThreshold forces a tenant threshold into the allowed range.
func ClampThreshold(t float64) float64 {
	if t < MinThreshold {
		return MinThreshold
	}
	if t > MaxThreshold {
		return MaxThreshold
	}
	return t
}
