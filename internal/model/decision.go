package model

import "time"

// ReasonCode explains why a record was not auto-posted.
type ReasonCode string

// Reason code constants.
const (
	ReasonNone           ReasonCode = ""
	ReasonBelowThreshold ReasonCode = "below_threshold"
	ReasonColdStart      ReasonCode = "cold_start"
	ReasonImbalance      ReasonCode = "imbalance"
	ReasonBudgetFallback ReasonCode = "budget_fallback"
	ReasonNoCandidate    ReasonCode = "no_candidate"
)

// Decision is the calibrated outcome of one pipeline run for one record.
// Decisions are append-only: re-runs create new entries, never mutate old ones.
type Decision struct {
	DecidedAt   time.Time  `json:"decided_at"`
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	RecordID    string     `json:"record_id"`
	Label       string     `json:"label,omitempty"`
	Rationale   string     `json:"rationale,omitempty"`
	Tier        Tier       `json:"tier,omitempty"`
	Reason      ReasonCode `json:"reason,omitempty"`
	Probability float64    `json:"probability"`  // Calibrated, in [0,1]
	Threshold   float64    `json:"threshold"`    // Tenant threshold in force at decision time
	PriorLabels int        `json:"prior_labels"` // Consistent labels seen for this counterparty
	Eligible    bool       `json:"eligible"`     // Auto-post eligibility
}
