package model

import "time"

// BudgetState tracks rolling generative-tier spend for a tenant. Fallback
// mode, once active, stays active until the budget is reset.
type BudgetState struct {
	UpdatedAt      time.Time
	TenantID       string
	FallbackReason string
	SpendAccrued   float64
	SpendCap       float64
	CallCount      int
	FallbackActive bool
}

// AverageCost returns the rolling average cost per generative call.
func (b *BudgetState) AverageCost() float64 {
	if b.CallCount == 0 {
		return 0
	}
	return b.SpendAccrued / float64(b.CallCount)
}
